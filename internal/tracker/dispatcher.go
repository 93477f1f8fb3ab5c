package tracker

import (
	"context"
	"hash/fnv"
	"sync"

	"go.uber.org/zap"
)

const (
	defaultWorkers   = 8
	defaultQueueSize = 128
)

// Dispatcher fans incoming notifications out to a bounded set of workers.
// Events hash by user id to a worker, so one user's events apply in arrival
// order while different users proceed concurrently. A full queue drops the
// event: delivery is at most once and the gateway does not redeliver.
type Dispatcher struct {
	log    *zap.Logger
	queues []chan func(context.Context)

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher with the given worker count and
// per-worker queue size. Zero values pick sensible defaults.
func NewDispatcher(log *zap.Logger, workers, queueSize int) *Dispatcher {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	queues := make([]chan func(context.Context), workers)
	for i := range queues {
		queues[i] = make(chan func(context.Context), queueSize)
	}
	return &Dispatcher{log: log, queues: queues}
}

// Start launches the workers. Queued events run with ctx.
func (d *Dispatcher) Start(ctx context.Context) {
	for _, queue := range d.queues {
		d.wg.Add(1)
		go func(queue chan func(context.Context)) {
			defer d.wg.Done()
			for fn := range queue {
				fn(ctx)
			}
		}(queue)
	}
}

// Dispatch enqueues fn on the worker that owns key. Drops the event with a
// warning when that worker's queue is full or the dispatcher has stopped.
func (d *Dispatcher) Dispatch(key string, fn func(context.Context)) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	queue := d.queues[h.Sum32()%uint32(len(d.queues))]

	select {
	case queue <- fn:
	default:
		eventsDropped.Inc()
		d.log.Warn("event queue full, dropping notification", zap.String("user", key))
	}
}

// Stop closes the queues and waits for in-flight events to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()

	for _, queue := range d.queues {
		close(queue)
	}
	d.wg.Wait()
}
