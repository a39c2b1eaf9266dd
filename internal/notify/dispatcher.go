package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Overflow policies applied when the queue is full.
const (
	OverflowBlock      = "block"
	OverflowDropOldest = "drop-oldest"
)

// ErrClosed is returned by Close when called twice.
var ErrClosed = errors.New("dispatcher closed")

// DispatcherConfig sizes the delivery pipeline.
type DispatcherConfig struct {
	QueueSize int
	Workers   int
	Overflow  string
	// DeliveryTimeout bounds each message's delivery, retries included.
	DeliveryTimeout time.Duration
}

// Dispatcher is a Sink backed by a bounded queue and a pool of workers that
// hand messages to a Sender.
type Dispatcher struct {
	sender  Sender
	log     *slog.Logger
	cfg     DispatcherConfig
	queue   chan string
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

var _ Sink = (*Dispatcher)(nil)

func NewDispatcher(sender Sender, cfg DispatcherConfig, log *slog.Logger) (*Dispatcher, error) {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = 30 * time.Second
	}
	switch cfg.Overflow {
	case "":
		cfg.Overflow = OverflowBlock
	case OverflowBlock, OverflowDropOldest:
	default:
		return nil, fmt.Errorf("unknown overflow policy %q", cfg.Overflow)
	}

	d := &Dispatcher{
		sender: sender,
		log:    log,
		cfg:    cfg,
		queue:  make(chan string, cfg.QueueSize),
	}
	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
	return d, nil
}

// Send enqueues message. With the block policy it waits for room or for ctx;
// with drop-oldest it evicts the oldest queued message instead.
func (d *Dispatcher) Send(ctx context.Context, message string) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.log.Warn("notification dropped after shutdown", "message", message)
		return
	}

	if d.cfg.Overflow == OverflowDropOldest {
		for {
			select {
			case d.queue <- message:
				return
			default:
			}
			select {
			case old := <-d.queue:
				d.countDrop()
				d.log.Warn("notification queue full, dropped oldest", "message", old)
			default:
			}
		}
	}

	select {
	case d.queue <- message:
	case <-ctx.Done():
		d.countDrop()
		d.log.Warn("notification dropped", "message", message, "error", ctx.Err())
	}
}

func (d *Dispatcher) countDrop() { d.dropped.Add(1) }

// Dropped is the number of messages discarded by the overflow policy.
func (d *Dispatcher) Dropped() int { return int(d.dropped.Load()) }

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()
	for message := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), d.cfg.DeliveryTimeout)
		if err := d.sender.Deliver(ctx, message); err != nil {
			d.log.Error("notification delivery failed", "worker", id, "error", err)
		}
		cancel()
	}
}

// Close stops accepting messages and waits for queued ones to be delivered
// or for ctx to expire.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("notification queue not drained: %w", ctx.Err())
	}
}
