package logger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Closer allows flushing and stopping the async handler.
type Closer interface {
	Close()
}

// nopCloser is a no-op Closer for synchronous mode.
type nopCloser struct{}

func (nopCloser) Close() {}

// asyncState is shared by an AsyncHandler and every handler derived from it
// through WithAttrs/WithGroup.
type asyncState struct {
	queue   chan queued
	wg      sync.WaitGroup
	dropped atomic.Int64
	once    sync.Once
}

// queued pairs a record with the handler that must format it, so derived
// handlers keep their attributes while sharing one queue.
type queued struct {
	h   slog.Handler
	rec slog.Record
}

// AsyncHandler keeps logging off the request path: records are queued and
// written by a small worker pool. When the queue is full the record is
// dropped and counted rather than blocking the caller.
type AsyncHandler struct {
	inner slog.Handler
	st    *asyncState
}

// NewAsyncHandler creates an AsyncHandler with the given queue capacity and worker count.
func NewAsyncHandler(inner slog.Handler, queueSize, workers int) *AsyncHandler {
	st := &asyncState{queue: make(chan queued, queueSize)}
	for range workers {
		st.wg.Add(1)
		go func() {
			defer st.wg.Done()
			for q := range st.queue {
				_ = q.h.Handle(context.Background(), q.rec)
			}
		}()
	}
	return &AsyncHandler{inner: inner, st: st}
}

// Enabled delegates to the inner handler.
func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle enqueues the record. Drops if the queue is full.
func (h *AsyncHandler) Handle(_ context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	select {
	case h.st.queue <- queued{h: h.inner, rec: rec.Clone()}:
	default:
		h.st.dropped.Add(1)
	}
	return nil
}

// WithAttrs returns a handler sharing the same queue with attrs added.
func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithAttrs(attrs), st: h.st}
}

// WithGroup returns a handler sharing the same queue within the named group.
func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithGroup(name), st: h.st}
}

// DroppedCount returns the number of dropped records.
func (h *AsyncHandler) DroppedCount() int64 {
	return h.st.dropped.Load()
}

// Close drains the queue and stops the workers. If records were dropped a
// final summary line is written synchronously. Close is safe to call twice.
func (h *AsyncHandler) Close() {
	h.st.once.Do(func() {
		close(h.st.queue)
		h.st.wg.Wait()
		if n := h.st.dropped.Load(); n > 0 {
			rec := slog.NewRecord(time.Now(), slog.LevelWarn, "async logger dropped records", 0)
			rec.AddAttrs(slog.Int64("dropped", n))
			_ = h.inner.Handle(context.Background(), rec)
		}
	})
}
