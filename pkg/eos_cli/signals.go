// pkg/eos_cli/signals.go
//
// Interrupt handling: the first SIGINT/SIGTERM cancels the run context so
// in-flight git and HTTP calls abort; a second one exits immediately.

package eos_cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// SignalHandler cancels a context when the process is interrupted.
type SignalHandler struct {
	ctx         context.Context
	cancel      context.CancelFunc
	sigChan     chan os.Signal
	doneChan    chan struct{}
	interrupted atomic.Bool
	stopOnce    sync.Once

	// exit is swapped in tests
	exit func(code int)
}

// NewSignalHandler creates a new signal handler
func NewSignalHandler(ctx context.Context) *SignalHandler {
	ctx, cancel := context.WithCancel(ctx)

	handler := &SignalHandler{
		ctx:      ctx,
		cancel:   cancel,
		sigChan:  make(chan os.Signal, 2),
		doneChan: make(chan struct{}),
		exit:     os.Exit,
	}

	signal.Notify(handler.sigChan, os.Interrupt, syscall.SIGTERM)
	go handler.handleSignals()

	return handler
}

// Context returns the cancellable context
// Operations should use this context to detect cancellation
func (h *SignalHandler) Context() context.Context {
	return h.ctx
}

// Interrupted reports whether a signal cancelled the context.
func (h *SignalHandler) Interrupted() bool {
	return h.interrupted.Load()
}

func (h *SignalHandler) handleSignals() {
	logger := otelzap.Ctx(h.ctx)

	select {
	case sig := <-h.sigChan:
		logger.Warn("Received signal, cancelling run", zap.String("signal", sig.String()))
		fmt.Fprintf(os.Stderr, "\nReceived %v, stopping after the current step...\n", sig)
		h.interrupted.Store(true)
		h.cancel()
	case <-h.doneChan:
		return
	}

	select {
	case sig := <-h.sigChan:
		logger.Error("Received second signal, forcing exit", zap.String("signal", sig.String()))
		fmt.Fprintln(os.Stderr, "Received second interrupt, forcing exit")
		h.exit(130)
	case <-h.doneChan:
	}
}

// Stop releases the signal subscription and the context.
func (h *SignalHandler) Stop() {
	h.stopOnce.Do(func() {
		signal.Stop(h.sigChan)
		close(h.doneChan)
		h.cancel()
	})
}
