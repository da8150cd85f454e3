package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/scalux/scalux/internal/logging"
)

// SignalContext is the context a long-running command (serve, mcp) runs
// under. It ends on the first shutdown signal and remembers which one it was,
// so the command can report it.
type SignalContext struct {
	context.Context
	stop context.CancelFunc

	mu  sync.Mutex
	sig os.Signal
}

// NewSignalContext derives a context from parent that is cancelled by the
// first of sigs, or by SIGINT and SIGTERM when none are given.
func NewSignalContext(parent context.Context, sigs ...os.Signal) *SignalContext {
	if len(sigs) == 0 {
		sigs = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	ctx, cancel := context.WithCancel(parent)
	sc := &SignalContext{Context: ctx, stop: cancel}

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)
	go func() {
		defer signal.Stop(ch)
		select {
		case sig := <-ch:
			sc.mu.Lock()
			sc.sig = sig
			sc.mu.Unlock()
			cancel()
		case <-ctx.Done():
		}
	}()
	return sc
}

// Stop cancels the context and releases the signal subscription.
func (sc *SignalContext) Stop() { sc.stop() }

// Signal returns the signal that ended the context, or nil when it ended
// any other way.
func (sc *SignalContext) Signal() os.Signal {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.sig
}

// NewLogger builds the command logger. Debug forces the debug level.
func NewLogger(level string, debug bool) (*slog.Logger, error) {
	if debug {
		return logging.New(slog.LevelDebug), nil
	}
	lvl, err := logging.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return logging.New(lvl), nil
}

// PrintSystemMessage prints a standardized system message.
func PrintSystemMessage(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, ">>> %s\n", fmt.Sprintf(format, args...))
}

// PrintJSON writes v as indented JSON.
func PrintJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// IsInterrupted reports whether err only signals a user interruption.
func IsInterrupted(err error) bool {
	return errors.Is(err, context.Canceled)
}
