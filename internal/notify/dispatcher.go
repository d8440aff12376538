package notify

import (
	"context"
	"sync"
	"time"

	"github.com/wolfman30/medtrack/internal/observability/metrics"
	"github.com/wolfman30/medtrack/pkg/logging"
)

// DispatcherConfig tunes the background delivery pool.
type DispatcherConfig struct {
	Workers int
	Buffer  int
	Timeout time.Duration
}

type job struct {
	ctx context.Context
	n   Notification
}

// Dispatcher hands notifications to a Publisher from a small worker pool so
// that request handlers never wait on the network. When the buffer is full the
// notification is dropped and counted.
type Dispatcher struct {
	publisher Publisher
	cfg       DispatcherConfig
	metrics   *metrics.ClinicMetrics
	logger    *logging.Logger

	jobs   chan job
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts cfg.Workers goroutines delivering through publisher.
func NewDispatcher(publisher Publisher, cfg DispatcherConfig, m *metrics.ClinicMetrics, logger *logging.Logger) *Dispatcher {
	if publisher == nil {
		panic("notify: publisher cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 64
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	d := &Dispatcher{
		publisher: publisher,
		cfg:       cfg,
		metrics:   m,
		logger:    logger,
		jobs:      make(chan job, cfg.Buffer),
	}
	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	return d
}

// Notify enqueues n for delivery. It never blocks and never fails the caller.
func (d *Dispatcher) Notify(ctx context.Context, n Notification) {
	if ctx == nil {
		ctx = context.Background()
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.drop(n, "dispatcher closed")
		return
	}
	select {
	case d.jobs <- job{ctx: context.WithoutCancel(ctx), n: n}:
	default:
		d.drop(n, "buffer full")
	}
}

// Close stops accepting notifications and waits for queued ones to be
// delivered or for ctx to expire.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
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
		return ctx.Err()
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for j := range d.jobs {
		d.deliver(j)
	}
}

func (d *Dispatcher) deliver(j job) {
	provider := d.publisher.Name()
	ctx, cancel := context.WithTimeout(j.ctx, d.cfg.Timeout)
	defer cancel()

	start := time.Now()
	err := d.publisher.Publish(ctx, j.n)
	d.metrics.ObserveNotifyLatency(provider, time.Since(start).Seconds())
	if err != nil {
		d.metrics.ObserveNotification(provider, "failed")
		d.logger.Error("notification delivery failed",
			"provider", provider,
			"appointment_id", j.n.AppointmentID,
			"error", err,
		)
		return
	}
	d.metrics.ObserveNotification(provider, "sent")
}

func (d *Dispatcher) drop(n Notification, reason string) {
	d.metrics.ObserveNotification(d.publisher.Name(), "dropped")
	d.logger.Warn("notification dropped", "reason", reason, "appointment_id", n.AppointmentID)
}
