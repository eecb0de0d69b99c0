package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

var ErrPoolClosed = errors.New("ingest pool closed")

// Task asks for one document to be (re-)ingested.
type Task struct {
	DocumentID string
	OwnerID    string
}

type Handler func(ctx context.Context, task Task)

// Pool runs tasks on a fixed number of workers. At most one task per
// document id runs at a time; a task submitted while another for the same
// id is waiting replaces the waiting one.
type Pool struct {
	handler Handler
	ctx     context.Context

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []string
	pending map[string]Task
	running map[string]bool
	closed  bool

	wg sync.WaitGroup
}

func NewPool(ctx context.Context, workers int, handler Handler) *Pool {
	if workers <= 0 {
		workers = 1
	}
	p := &Pool{
		handler: handler,
		ctx:     context.WithoutCancel(ctx),
		pending: make(map[string]Task),
		running: make(map[string]bool),
	}
	p.cond = sync.NewCond(&p.mu)
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) Submit(task Task) error {
	if task.DocumentID == "" {
		return fmt.Errorf("task without document id")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}
	_, waiting := p.pending[task.DocumentID]
	p.pending[task.DocumentID] = task
	if !waiting && !p.running[task.DocumentID] {
		p.queue = append(p.queue, task.DocumentID)
		p.cond.Signal()
	}
	return nil
}

// IsActive reports whether a task for the document is queued or running.
func (p *Pool) IsActive(documentID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, waiting := p.pending[documentID]
	return waiting || p.running[documentID]
}

// Close stops accepting tasks and waits for the queue to drain or ctx to
// expire, whichever comes first.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}
		id := p.queue[0]
		p.queue = p.queue[1:]
		task := p.pending[id]
		delete(p.pending, id)
		p.running[id] = true
		p.mu.Unlock()

		p.run(task)

		p.mu.Lock()
		delete(p.running, id)
		if _, again := p.pending[id]; again {
			p.queue = append(p.queue, id)
			p.cond.Signal()
		}
		p.mu.Unlock()
	}
}

func (p *Pool) run(task Task) {
	defer func() {
		if r := recover(); r != nil {
			logutil.GetLogger(p.ctx).Error("ingest task panic",
				zap.String("document_id", task.DocumentID), zap.Any("panic", r))
		}
	}()
	p.handler(p.ctx, task)
}
