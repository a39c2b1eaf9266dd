// Package notify delivers operator notifications without blocking or failing
// the lending operations that produce them.
package notify

import (
	"context"
	"log/slog"
	"sync"
)

// Sink accepts messages for delivery. Send never fails the caller; delivery
// problems are the sink's to log.
type Sink interface {
	Send(ctx context.Context, message string)
}

// Sender performs one delivery attempt sequence for a message.
type Sender interface {
	Deliver(ctx context.Context, message string) error
}

// LogSender writes messages to the structured log. It is used when no chat
// transport is configured.
type LogSender struct {
	Log *slog.Logger
}

func (s LogSender) Deliver(_ context.Context, message string) error {
	s.Log.Info("notification", "message", message)
	return nil
}

// Recorder is a synchronous Sink that keeps every message in memory.
type Recorder struct {
	mu       sync.Mutex
	messages []string
}

func (r *Recorder) Send(_ context.Context, message string) {
	r.mu.Lock()
	r.messages = append(r.messages, message)
	r.mu.Unlock()
}

func (r *Recorder) Deliver(ctx context.Context, message string) error {
	r.Send(ctx, message)
	return nil
}

// Messages returns a copy of the recorded messages in send order.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}
