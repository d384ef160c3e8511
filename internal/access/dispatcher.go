package access

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultQueueSize      = 64
	defaultObserveTimeout = 10 * time.Second
)

// Dispatcher is an Observer that hands outcomes to slower observers on a
// background goroutine. When the queue is full the outcome is dropped and
// counted; the cycle never waits for a sink.
type Dispatcher struct {
	observers []Observer
	logger    Logger
	timeout   time.Duration

	queue chan Outcome
	done  chan struct{}

	closeOnce sync.Once
	dropped   atomic.Uint64
}

// NewDispatcher starts a dispatcher with the given queue size (0 selects
// the default). Close must be called to stop it.
func NewDispatcher(queueSize int, logger Logger, observers ...Observer) *Dispatcher {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if logger == nil {
		logger = noopLogger{}
	}
	d := &Dispatcher{
		observers: observers,
		logger:    logger,
		timeout:   defaultObserveTimeout,
		queue:     make(chan Outcome, queueSize),
		done:      make(chan struct{}),
	}
	go d.loop()
	return d
}

// Observe enqueues the outcome without blocking.
func (d *Dispatcher) Observe(_ context.Context, o Outcome) error {
	select {
	case d.queue <- o:
	default:
		d.dropped.Add(1)
		d.logger.Warn("observer queue full, outcome dropped", "door", o.DoorID)
	}
	return nil
}

// Dropped returns how many outcomes were discarded.
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

// Close drains the queue and stops the worker. Observe must not be called
// after Close.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.queue)
	})
	<-d.done
}

func (d *Dispatcher) loop() {
	defer close(d.done)

	for o := range d.queue {
		for _, obs := range d.observers {
			d.deliver(obs, o)
		}
	}
}

// deliver uses its own context: the cycle's context may already be
// cancelled during shutdown while queued outcomes still need recording.
func (d *Dispatcher) deliver(obs Observer, o Outcome) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("observer panicked", "door", o.DoorID, "panic", r)
		}
	}()
	if err := obs.Observe(ctx, o); err != nil {
		d.logger.Warn("observer failed", "door", o.DoorID, "error", err)
	}
}
