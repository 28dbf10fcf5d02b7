// Package testutil holds helpers shared by package tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/eos_io"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// NewTestContext creates a RuntimeContext suitable for testing. Log output
// goes through t.Log, including the otelzap global used by Ctx loggers.
func NewTestContext(t *testing.T) *eos_io.RuntimeContext {
	t.Helper()
	return NewTestContextWith(t, context.Background())
}

// NewTestContextWith is NewTestContext over a caller-supplied context.
func NewTestContextWith(t *testing.T, ctx context.Context) *eos_io.RuntimeContext {
	t.Helper()

	logger := zaptest.NewLogger(t)
	restoreZap := zap.ReplaceGlobals(logger)
	restoreOtel := otelzap.ReplaceGlobals(otelzap.New(logger))
	t.Cleanup(func() {
		restoreOtel()
		restoreZap()
	})

	_, span := noop.NewTracerProvider().Tracer("test").Start(ctx, t.Name())

	return &eos_io.RuntimeContext{
		Ctx:        ctx,
		Log:        logger,
		Timestamp:  time.Now(),
		Span:       span,
		Component:  "test",
		Command:    t.Name(),
		RunID:      "test-run",
		Attributes: make(map[string]string),
	}
}
