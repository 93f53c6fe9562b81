package alerting

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/spawn-mcp/tripsynth/pkg/retry"
	"github.com/spawn-mcp/tripsynth/pkg/telemetry"
)

// Notifier delivers an alert to an external sink
type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(ctx context.Context, alert Alert) error

// Notify calls f
func (f NotifierFunc) Notify(ctx context.Context, alert Alert) error {
	return f(ctx, alert)
}

// Dispatcher delivers created alerts to notifiers from a single background
// goroutine. Enqueue never blocks; alerts are dropped when the queue is full
// or the dispatcher is closed.
type Dispatcher struct {
	notifiers []Notifier
	limiter   *rate.Limiter
	retry     retry.Config
	logger    telemetry.Logger

	mu      sync.Mutex
	queue   chan Alert
	closed  bool
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewDispatcher creates a dispatcher. Delivery starts with Start.
func NewDispatcher(cfg DispatchConfig, logger telemetry.Logger, notifiers ...Notifier) *Dispatcher {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().Dispatch.QueueSize
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Dispatcher{
		notifiers: notifiers,
		limiter:   rate.NewLimiter(limit, burst),
		retry:     retry.DefaultConfigs.Fast,
		logger:    logger,
		queue:     make(chan Alert, cfg.QueueSize),
		done:      make(chan struct{}),
	}
}

// AddNotifier registers a notifier. It must be called before Start.
func (d *Dispatcher) AddNotifier(n Notifier) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notifiers = append(d.notifiers, n)
}

// Start launches the delivery goroutine. It runs until ctx is cancelled or
// Close is called.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true
	ctx, d.cancel = context.WithCancel(ctx)
	notifiers := append([]Notifier(nil), d.notifiers...)
	go d.run(ctx, notifiers)
}

// Enqueue queues an alert for delivery and reports whether it was accepted
func (d *Dispatcher) Enqueue(ctx context.Context, a Alert) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false
	}
	select {
	case d.queue <- a:
		return true
	default:
		d.logger.Warn(ctx, "alert queue full, dropping notification", "alert_id", a.ID, "kind", string(a.Kind))
		return false
	}
}

// Close stops accepting alerts, delivers what is already queued and waits
// for the delivery goroutine to exit.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	started, cancel := d.started, d.cancel
	d.mu.Unlock()

	if started {
		<-d.done
		cancel()
	}
}

func (d *Dispatcher) run(ctx context.Context, notifiers []Notifier) {
	defer close(d.done)
	for {
		select {
		case <-ctx.Done():
			return
		case a, ok := <-d.queue:
			if !ok {
				return
			}
			d.deliver(ctx, notifiers, a)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, notifiers []Notifier, a Alert) {
	if err := d.limiter.Wait(ctx); err != nil {
		d.logger.Warn(ctx, "alert delivery cancelled", "alert_id", a.ID, "err", err)
		return
	}
	for _, n := range notifiers {
		err := retry.Do(ctx, func(ctx context.Context) error {
			return n.Notify(ctx, a)
		}, d.retry)
		if err != nil {
			d.logger.Error(ctx, "alert delivery failed", "err", err, "alert_id", a.ID, "kind", string(a.Kind))
		}
	}
}
