package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Config controls dispatcher buffering. With DropIfFull a full buffer drops
// the event and counts it instead of blocking the request that produced it.
// SinkTimeout bounds each sink call; zero means no deadline.
type Config struct {
	Enabled     bool
	BufferSize  int
	DropIfFull  bool
	SinkTimeout time.Duration
}

// dropLogEvery limits drop warnings to the first drop and every Nth after.
const dropLogEvery = 1000

// Dispatcher forwards audit events to a sink from a single goroutine so
// slow sinks (kafka) never sit on the login path.
type Dispatcher struct {
	cfg     Config
	sink    Sink
	log     zerolog.Logger
	events  chan Event
	mu      sync.RWMutex
	closed  bool
	stopped chan struct{}
	dropped atomic.Uint64
}

// NewDispatcher starts a dispatcher. It returns nil when auditing is
// disabled; every method is safe on a nil *Dispatcher.
func NewDispatcher(cfg Config, sink Sink, log zerolog.Logger) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		cfg:     cfg,
		sink:    sink,
		log:     log.With().Str("component", "audit").Logger(),
		events:  make(chan Event, cfg.BufferSize),
		stopped: make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer close(d.stopped)
	for event := range d.events {
		d.deliver(event)
	}
}

func (d *Dispatcher) deliver(event Event) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().Interface("panic", r).Str("event", event.EventType).Msg("audit sink panicked")
		}
	}()

	ctx := context.Background()
	if d.cfg.SinkTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.SinkTimeout)
		defer cancel()
	}
	d.sink.Emit(ctx, event)
}

// Emit queues event. Events emitted after Close are discarded.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	if d.cfg.DropIfFull {
		select {
		case d.events <- event:
		default:
			d.drop(event)
		}
		return
	}

	select {
	case d.events <- event:
	case <-ctx.Done():
		d.drop(event)
	}
}

func (d *Dispatcher) drop(event Event) {
	if n := d.dropped.Add(1); n == 1 || n%dropLogEvery == 0 {
		d.log.Warn().Uint64("dropped_total", n).Str("event", event.EventType).Msg("audit event dropped")
	}
}

// Close stops accepting events and waits until the queued ones reach the
// sink.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.events)
	}
	d.mu.Unlock()
	<-d.stopped
}

// Dropped reports how many events never reached the sink.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
