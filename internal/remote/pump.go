package remote

import (
	"context"
	"sync"

	"aprsbot/pkg/logx"
)

// Job is a unit of diagnostic work executed off the bot loop.
type Job interface {
	Name() string
	Run(ctx context.Context) Result
}

// ResultKind discriminates completed job results.
type ResultKind int

const (
	// ResultSystemStatus carries a rendered system-status line.
	ResultSystemStatus ResultKind = iota
)

// Result is a completed job outcome. Consumers switch on Kind.
type Result struct {
	Kind   ResultKind
	Status string
}

const (
	jobQueueDepth    = 16
	resultQueueDepth = 16
)

// Pump runs jobs on background workers and buffers their results until the
// bot loop drains them. Submit and Poll never block.
type Pump struct {
	log     logx.Logger
	workers int

	jobs    chan Job
	results chan Result

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPump(workers int, log logx.Logger) *Pump {
	if workers <= 0 {
		workers = 1
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Pump{
		log:     log,
		workers: workers,
		jobs:    make(chan Job, jobQueueDepth),
		results: make(chan Result, resultQueueDepth),
	}
}

func (p *Pump) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

func (p *Pump) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		p.wg.Wait()
	}
}

// Submit enqueues a job. When the queue is full the job is dropped with a
// warning; the next periodic submission will try again.
func (p *Pump) Submit(j Job) {
	select {
	case p.jobs <- j:
	default:
		p.log.Warn("remote job queue full, dropping", logx.String("job", j.Name()))
	}
}

// Poll returns one completed result without blocking.
func (p *Pump) Poll() (Result, bool) {
	select {
	case r := <-p.results:
		return r, true
	default:
		return Result{}, false
	}
}

func (p *Pump) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-p.jobs:
			p.log.Debug("remote job started", logx.String("job", j.Name()))
			res := j.Run(ctx)
			select {
			case p.results <- res:
			default:
				p.log.Warn("remote result queue full, dropping", logx.String("job", j.Name()))
			}
		}
	}
}
