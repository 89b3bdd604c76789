package engine

import (
	"context"
	"sync"
)

// triageWork is one queued raw event. resultC is nil for async submissions.
type triageWork struct {
	raw     map[string]any
	resultC chan *TriageResult
}

// workerPool is a fixed-size goroutine pool with a bounded input queue.
// Each worker runs the triage pipeline sequentially, so per-event
// processing has no internal concurrency; parallelism exists only across
// independent events.
type workerPool struct {
	queue   chan *triageWork
	process func(ctx context.Context, w *triageWork)
	wg      sync.WaitGroup
}

// newWorkerPool creates and starts a pool with n goroutines and queue capacity cap.
func newWorkerPool(ctx context.Context, n, cap int, fn func(context.Context, *triageWork)) *workerPool {
	p := &workerPool{
		queue:   make(chan *triageWork, cap),
		process: fn,
	}
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.run(ctx)
		}()
	}
	return p
}

func (p *workerPool) run(ctx context.Context) {
	for {
		select {
		case w, ok := <-p.queue:
			if !ok {
				return
			}
			p.process(ctx, w)
		case <-ctx.Done():
			return
		}
	}
}

// Submit enqueues work without blocking (returns false if full).
func (p *workerPool) Submit(w *triageWork) bool {
	select {
	case p.queue <- w:
		return true
	default:
		return false
	}
}

// Drain closes the queue and waits for all workers to finish.
func (p *workerPool) Drain() {
	close(p.queue)
	p.wg.Wait()
}

// QueueLen returns how many events are currently queued.
func (p *workerPool) QueueLen() int {
	return len(p.queue)
}

// QueueCap returns the total queue capacity.
func (p *workerPool) QueueCap() int {
	return cap(p.queue)
}
