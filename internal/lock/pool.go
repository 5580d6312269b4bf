package lock

import (
	"context"
	"fmt"
	"sync"

	"github.com/cenkalti/backoff/v4"
)

// Task is one unit of work submitted to the WorkerPool: the executing user
// and connection identify which session the task belongs to.
type Task func(ctx context.Context) error

type workItem struct {
	user, connection string
	task             Task
}

// WorkerPool runs a small set of long-lived goroutines, each serving one
// queued item at a time (spec §4.I/§5). Submitting a second task for a
// connection that is already executing is a bug, not a queueing case, and
// returns an error rather than blocking.
type WorkerPool struct {
	items chan workItem

	mu        sync.Mutex
	executing map[string]bool

	wg       sync.WaitGroup
	shutdown chan struct{}
}

// NewWorkerPool starts n worker goroutines.
func NewWorkerPool(n int) *WorkerPool {
	p := &WorkerPool{
		items:     make(chan workItem),
		executing: map[string]bool{},
		shutdown:  make(chan struct{}),
	}
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go p.run()
	}
	return p
}

func (p *WorkerPool) run() {
	defer p.wg.Done()
	for {
		select {
		case item, ok := <-p.items:
			if !ok {
				return
			}
			_ = item.task(context.Background())
			p.mu.Lock()
			delete(p.executing, item.connection)
			p.mu.Unlock()
		case <-p.shutdown:
			return
		}
	}
}

// Execute submits task to be run by a worker. If connection already has a
// task in flight, it returns an error immediately instead of queueing a
// second one (double-submit is a caller bug per spec §4.I).
func (p *WorkerPool) Execute(user, connection string, task Task) error {
	p.mu.Lock()
	if p.executing[connection] {
		p.mu.Unlock()
		return fmt.Errorf("lock: connection %q is already executing a task", connection)
	}
	p.executing[connection] = true
	p.mu.Unlock()

	select {
	case p.items <- workItem{user: user, connection: connection, task: task}:
		return nil
	case <-p.shutdown:
		p.mu.Lock()
		delete(p.executing, connection)
		p.mu.Unlock()
		return fmt.Errorf("lock: worker pool is shutting down")
	}
}

// Shutdown stops accepting new work and waits for in-flight tasks to
// drain, retrying the wait with backoff until ctx is done.
func (p *WorkerPool) Shutdown(ctx context.Context) error {
	close(p.shutdown)
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	b := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
	return backoff.Retry(func() error {
		select {
		case <-done:
			return nil
		default:
			return fmt.Errorf("lock: workers still draining")
		}
	}, b)
}
