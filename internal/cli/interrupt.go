package cli

import (
	"context"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
)

// InterruptHandler cancels a batch on SIGINT or SIGTERM and tells the user
// what was kept.
type InterruptHandler struct {
	writer       io.Writer
	cancel       context.CancelFunc
	once         sync.Once
	interrupted  atomic.Bool
	showProgress bool
}

// NewInterruptHandler reports to writer, or stdout when nil.
func NewInterruptHandler(writer io.Writer) *InterruptHandler {
	if writer == nil {
		writer = os.Stdout
	}
	return &InterruptHandler{writer: writer}
}

// HandleInterrupts derives a context that ends on the first signal.
// showProgress adds a note that already remembered tags are kept.
// Canceling the parent stops listening without counting as an interrupt.
func (h *InterruptHandler) HandleInterrupts(ctx context.Context, showProgress bool) context.Context {
	ctx, h.cancel = context.WithCancel(ctx)
	h.showProgress = showProgress

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(signals)
		select {
		case <-signals:
			h.interrupt()
		case <-ctx.Done():
		}
	}()

	return ctx
}

func (h *InterruptHandler) interrupt() {
	h.once.Do(func() {
		h.interrupted.Store(true)
		h.showInterruptMessage()
		if h.cancel != nil {
			h.cancel()
		}
	})
}

func (h *InterruptHandler) showInterruptMessage() {
	var b strings.Builder
	b.WriteString("\n\n" + FormatWarning("Batch interrupted!") + "\n")
	if h.showProgress {
		b.WriteString(FormatInfo("Tags confirmed so far have been remembered.") + "\n")
		b.WriteString(FormatInfo("Run the batch again to tag the remaining payees.") + "\n")
	}
	// Nowhere left to report a failed write; the process is stopping.
	_, _ = io.WriteString(h.writer, b.String())
}

// WasInterrupted reports whether a signal ended the batch.
func (h *InterruptHandler) WasInterrupted() bool {
	return h.interrupted.Load()
}
