package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// gatedSender blocks every delivery until release is closed.
type gatedSender struct {
	release chan struct{}
	rec     Recorder
}

func (g *gatedSender) Deliver(ctx context.Context, message string) error {
	select {
	case <-g.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	return g.rec.Deliver(ctx, message)
}

func TestDispatcherDeliversAndDrains(t *testing.T) {
	rec := &Recorder{}
	d, err := NewDispatcher(rec, DispatcherConfig{QueueSize: 4, Workers: 1}, discard)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		d.Send(context.Background(), fmt.Sprintf("m%d", i))
	}
	require.NoError(t, d.Close(context.Background()))

	msgs := rec.Messages()
	require.Len(t, msgs, 10)
	assert.Equal(t, "m0", msgs[0])
	assert.Equal(t, "m9", msgs[9])

	d.Send(context.Background(), "late")
	assert.Len(t, rec.Messages(), 10)
	assert.ErrorIs(t, d.Close(context.Background()), ErrClosed)
}

func TestDispatcherDropOldest(t *testing.T) {
	g := &gatedSender{release: make(chan struct{})}
	d, err := NewDispatcher(g, DispatcherConfig{QueueSize: 2, Workers: 1, Overflow: OverflowDropOldest}, discard)
	require.NoError(t, err)

	// The worker takes m0 and blocks; m1..m4 compete for two slots.
	d.Send(context.Background(), "m0")
	require.Eventually(t, func() bool { return len(d.queue) == 0 }, time.Second, time.Millisecond)
	for i := 1; i <= 4; i++ {
		d.Send(context.Background(), fmt.Sprintf("m%d", i))
	}
	assert.Equal(t, 2, d.Dropped())

	close(g.release)
	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, []string{"m0", "m3", "m4"}, g.rec.Messages())
}

func TestDispatcherBlockRespectsContext(t *testing.T) {
	g := &gatedSender{release: make(chan struct{})}
	d, err := NewDispatcher(g, DispatcherConfig{QueueSize: 1, Workers: 1}, discard)
	require.NoError(t, err)

	d.Send(context.Background(), "m0")
	require.Eventually(t, func() bool { return len(d.queue) == 0 }, time.Second, time.Millisecond)
	d.Send(context.Background(), "m1")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	d.Send(ctx, "m2")
	assert.Equal(t, 1, d.Dropped())

	close(g.release)
	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, []string{"m0", "m1"}, g.rec.Messages())
}

func TestDispatcherRejectsUnknownPolicy(t *testing.T) {
	_, err := NewDispatcher(&Recorder{}, DispatcherConfig{Overflow: "drop-newest"}, discard)
	assert.Error(t, err)
}

func TestTelegramSender(t *testing.T) {
	var (
		mu    sync.Mutex
		forms []map[string]string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		mu.Lock()
		forms = append(forms, map[string]string{"chat_id": r.PostForm.Get("chat_id"), "text": r.PostForm.Get("text")})
		mu.Unlock()
		io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()

	s := NewTelegramSender(TelegramConfig{Token: "TOKEN", ChatID: "-100", BaseURL: srv.URL, MessagesPerSecond: 100}, discard)
	require.NoError(t, s.Deliver(context.Background(), "✅ Payment success!"))

	require.Len(t, forms, 1)
	assert.Equal(t, "-100", forms[0]["chat_id"])
	assert.Equal(t, "✅ Payment success!", forms[0]["text"])
}

func TestTelegramSenderRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			io.WriteString(w, `{"ok":false,"description":"Bad Gateway"}`)
			return
		}
		io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()

	s := NewTelegramSender(TelegramConfig{Token: "T", ChatID: "1", BaseURL: srv.URL, MessagesPerSecond: 100}, discard)
	require.NoError(t, s.Deliver(context.Background(), "hello"))
	assert.Equal(t, int32(3), calls.Load())
}

func TestTelegramSenderDoesNotRetryRejections(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"ok":false,"description":"Bad Request: chat not found"}`)
	}))
	defer srv.Close()

	s := NewTelegramSender(TelegramConfig{Token: "T", ChatID: "1", BaseURL: srv.URL, MessagesPerSecond: 100}, discard)
	err := s.Deliver(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
	assert.Equal(t, int32(1), calls.Load())
}
