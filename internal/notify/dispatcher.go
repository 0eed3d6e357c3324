package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BradenHooton/tally/pkg/logger"
	"github.com/sethvargo/go-retry"
)

// DispatcherConfig sizes the queue and bounds each delivery
type DispatcherConfig struct {
	QueueSize  int
	Workers    int
	Timeout    time.Duration // per attempt
	MaxRetries uint64
	BaseDelay  time.Duration // first retry backoff
}

// ErrDispatcherClosed is logged when Enqueue is called after Shutdown
var ErrDispatcherClosed = errors.New("notification dispatcher closed")

// Dispatcher delivers notifications on a fixed pool of workers. Enqueue never
// blocks; a full queue drops the notification and logs it.
type Dispatcher struct {
	sender Sender
	config DispatcherConfig
	logger *slog.Logger

	queue  chan Notification
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(sender Sender, config DispatcherConfig, logger *slog.Logger) *Dispatcher {
	if config.QueueSize < 1 {
		config.QueueSize = 1
	}
	if config.Workers < 1 {
		config.Workers = 1
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = 200 * time.Millisecond
	}

	return &Dispatcher{
		sender: sender,
		config: config,
		logger: logger,
		queue:  make(chan Notification, config.QueueSize),
	}
}

// Start launches the workers
func (d *Dispatcher) Start() {
	for i := 0; i < d.config.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	d.logger.Info("notification dispatcher started",
		slog.Int("workers", d.config.Workers),
		slog.Int("queue_size", d.config.QueueSize),
	)
}

func (d *Dispatcher) Enqueue(n Notification) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logDropped(n, ErrDispatcherClosed)
		return
	}

	select {
	case d.queue <- n:
	default:
		d.logDropped(n, errors.New("queue full"))
	}
}

// Shutdown stops accepting notifications and waits for queued ones to drain
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("notification dispatcher drained")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("notification dispatcher shutdown: %w", ctx.Err())
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for n := range d.queue {
		d.deliver(n)
	}
}

func (d *Dispatcher) deliver(n Notification) {
	backoff := retry.WithMaxRetries(d.config.MaxRetries, retry.NewExponential(d.config.BaseDelay))

	attempts := 0
	err := retry.Do(context.Background(), backoff, func(ctx context.Context) error {
		attempts++
		attemptCtx, cancel := context.WithTimeout(ctx, d.config.Timeout)
		defer cancel()

		if err := d.sender.Send(attemptCtx, n); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		d.logger.Error("notification delivery failed",
			slog.String("kind", string(n.Kind)),
			slog.String("email", logger.SanitizedEmail(n.To)),
			slog.Int("attempts", attempts),
			slog.String("error", err.Error()),
		)
	}
}

func (d *Dispatcher) logDropped(n Notification, reason error) {
	d.logger.Warn("notification dropped",
		slog.String("kind", string(n.Kind)),
		slog.String("email", logger.SanitizedEmail(n.To)),
		slog.String("reason", reason.Error()),
	)
}
