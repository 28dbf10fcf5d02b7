// pkg/eos_io/context.go

package eos_io

import (
	"context"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/eos_err"
	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/telemetry"
	cerr "github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Version is stamped at build time with -ldflags.
var Version = "dev"

// RuntimeContext carries the per-invocation context, logger and root span
// through every step of a run.
type RuntimeContext struct {
	Ctx        context.Context
	Log        *zap.Logger
	Timestamp  time.Time
	Span       trace.Span
	Command    string
	Component  string
	RunID      string
	Attributes map[string]string

	step string
}

// NewContext sets up tracing and logging for one command invocation.
func NewContext(parent context.Context, cmdName string) *RuntimeContext {
	runID := uuid.NewString()
	ctx, span := telemetry.Start(parent, cmdName, attribute.String("run_id", runID))

	comp, _ := resolveCallContext(3)
	logger := zap.L().With(
		zap.String("component", comp),
		zap.String("command", cmdName),
		zap.String("run_id", runID),
	).Named(comp)

	return &RuntimeContext{
		Ctx:        ctx,
		Span:       span,
		Log:        logger,
		Timestamp:  time.Now(),
		Component:  comp,
		Command:    cmdName,
		RunID:      runID,
		Attributes: make(map[string]string),
	}
}

// Step returns a child context whose Ctx and Span belong to one pipeline
// step. Close it with End on the child.
func (rc *RuntimeContext) Step(name string, attrs ...attribute.KeyValue) (*RuntimeContext, trace.Span) {
	ctx, span := telemetry.Start(rc.Ctx, name, attrs...)
	child := *rc
	child.Ctx = ctx
	child.Span = span
	child.Timestamp = time.Now()
	child.Log = rc.Log.With(zap.String("step", name))
	child.Attributes = make(map[string]string)
	child.step = name
	return &child, span
}

// HandlePanic recovers panics, logs them, and converts to an error.
func (rc *RuntimeContext) HandlePanic(errPtr *error) {
	if r := recover(); r != nil {
		*errPtr = cerr.AssertionFailedf("panic: %v", r)
		rc.Log.Error("Panic recovered", zap.Any("panic", r))
	}
}

// End logs outcome, records the outcome on the root span, and ends it.
func (rc *RuntimeContext) End(errPtr *error) {
	defer rc.Span.End()

	duration := time.Since(rc.Timestamp)
	var err error
	if errPtr != nil {
		err = *errPtr
	}
	success := err == nil

	switch {
	case rc.step != "" && success:
		rc.Log.Debug("Step completed", zap.Duration("duration", duration))
	case rc.step != "":
		rc.Log.Debug("Step failed", zap.Duration("duration", duration), zap.Error(err))
		rc.Span.RecordError(err)
	case success:
		rc.Log.Info("Command completed", zap.Duration("duration", duration))
	default:
		rc.Log.Error("Command failed", zap.Duration("duration", duration), zap.Error(err))
		rc.Span.RecordError(err)
	}

	attrs := []attribute.KeyValue{
		attribute.Bool("success", success),
		attribute.Int64("duration_ms", duration.Milliseconds()),
		attribute.String("os", runtime.GOOS),
		attribute.String("args", telemetry.TruncateArgs(os.Args[1:])),
		attribute.String("version", Version),
		attribute.String("error_type", classifyError(err)),
	}
	for k, v := range rc.Attributes {
		attrs = append(attrs, attribute.String(k, v))
	}
	rc.Span.SetAttributes(attrs...)
}

func resolveCallContext(skip int) (component, action string) {
	pc, file, _, ok := runtime.Caller(skip)
	if !ok {
		return "unknown", "unknown"
	}
	parts := strings.Split(file, "/")
	if len(parts) >= 2 {
		component = parts[len(parts)-2]
	} else {
		component = "unknown"
	}
	if fn := runtime.FuncForPC(pc); fn != nil {
		fields := strings.Split(fn.Name(), ".")
		action = fields[len(fields)-1]
	} else {
		action = "unknown"
	}
	return
}

func classifyError(err error) string {
	if err == nil {
		return ""
	}
	return eos_err.CategoryOf(err).String()
}
