package review

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
)

var (
	// ErrQueueFull is returned by Enqueue when no slot is free.
	ErrQueueFull = errors.New("review: queue full")

	// ErrQueueClosed is returned by Enqueue once Run's context is done.
	ErrQueueClosed = errors.New("review: queue closed")
)

// Processor handles one event. *Orchestrator implements it.
type Processor interface {
	Process(ctx context.Context, ev Event) Outcome
}

// Queue hands events from request handlers to a fixed set of workers.
// Enqueue never blocks.
type Queue struct {
	events  chan Event
	proc    Processor
	workers int
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewQueue returns a queue holding up to size pending events, served by
// the given number of workers once Run is called.
func NewQueue(proc Processor, size, workers int, logger *slog.Logger) *Queue {
	if size < 1 {
		size = 1
	}
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		events:  make(chan Event, size),
		proc:    proc,
		workers: workers,
		logger:  logger,
	}
}

// Enqueue schedules ev and returns immediately.
func (q *Queue) Enqueue(ev Event) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.events <- ev:
		return nil
	default:
		return ErrQueueFull
	}
}

// Len is the number of events waiting for a worker.
func (q *Queue) Len() int {
	return len(q.events)
}

// Run starts the workers and blocks until ctx is done and every in-flight
// event has finished. The queue refuses new events as soon as ctx is done,
// and events still waiting at that point are dropped. In-flight events are
// not cancelled by ctx.
func (q *Queue) Run(ctx context.Context) error {
	q.logger.Info("review workers started", "workers", q.workers, "capacity", cap(q.events))

	var wg sync.WaitGroup
	for id := range q.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.work(ctx, id)
		}()
	}

	<-ctx.Done()
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	wg.Wait()

	if n := len(q.events); n > 0 {
		q.logger.Warn("review queue stopped with pending events", "dropped", n)
	}
	q.logger.Info("review workers stopped")
	return nil
}

// Drain processes waiting events on the calling goroutine until the queue
// is empty or ctx is done, and returns how many it handled.
func (q *Queue) Drain(ctx context.Context) int {
	n := 0
	for {
		if ctx.Err() != nil {
			return n
		}
		select {
		case ev := <-q.events:
			q.handle(ctx, 0, ev)
			n++
		default:
			return n
		}
	}
}

func (q *Queue) work(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-q.events:
			q.handle(context.WithoutCancel(ctx), id, ev)
		}
	}
}

func (q *Queue) handle(ctx context.Context, worker int, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("review worker recovered from panic",
				"worker", worker,
				"project_id", ev.ProjectID,
				"mr_iid", ev.MRIID,
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()
	q.proc.Process(ctx, ev)
}
