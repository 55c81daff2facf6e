package store

import (
	"sync"

	"github.com/zeebo/xxh3"
)

type job struct {
	op   string
	path string
	run  func()
}

// pool runs jobs on a fixed set of workers, each with its own bounded FIFO
// queue. Jobs for the same path always land on the same worker, so they
// run in submission order.
type pool struct {
	// mu guards closed and the send side of the queues. It is only held for
	// non-blocking work.
	mu       sync.Mutex
	closed   bool
	flushers sync.WaitGroup

	queues []chan job
	wg     sync.WaitGroup
}

func newPool(workers, queueSize int) *pool {
	p := &pool{queues: make([]chan job, workers)}
	for i := range p.queues {
		q := make(chan job, queueSize)
		p.queues[i] = q
		p.wg.Add(1)
		go p.processLoop(q)
	}
	return p
}

func (p *pool) processLoop(q chan job) {
	defer p.wg.Done()
	for j := range q {
		j.run()
	}
}

func (p *pool) queueFor(path string) chan job {
	return p.queues[xxh3.HashString(path)%uint64(len(p.queues))]
}

// submit enqueues without blocking. It reports false when the pool is
// closed or the path's queue is full.
func (p *pool) submit(j job) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		logger.Warn().Str("op", j.op).Str("path", j.path).Msg("store closed, dropping job")
		return false
	}

	select {
	case p.queueFor(j.path) <- j:
		return true
	default:
		logger.Warn().Str("op", j.op).Str("path", j.path).Msg("store queue full, dropping job")
		return false
	}
}

// submitLinked enqueues j on its own path's worker and holds the worker of
// other until j has run. Later jobs for either path therefore run after j.
// If either queue is full the job is dropped.
func (p *pool) submitLinked(j job, other string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		logger.Warn().Str("op", j.op).Str("path", j.path).Msg("store closed, dropping job")
		return false
	}

	own, held := p.queueFor(j.path), p.queueFor(other)
	if own == held {
		select {
		case own <- j:
			return true
		default:
			logger.Warn().Str("op", j.op).Str("path", j.path).Msg("store queue full, dropping job")
			return false
		}
	}

	done := make(chan struct{})
	select {
	case held <- job{op: j.op + "-wait", path: other, run: func() { <-done }}:
	default:
		logger.Warn().Str("op", j.op).Str("path", j.path).Str("other", other).Msg("store queue full, dropping job")
		return false
	}

	run := j.run
	j.run = func() {
		defer close(done)
		run()
	}
	select {
	case own <- j:
		return true
	default:
		// release the queued wait so it runs as a no-op
		close(done)
		logger.Warn().Str("op", j.op).Str("path", j.path).Msg("store queue full, dropping job")
		return false
	}
}

// flush blocks until every job accepted before the call has run
func (p *pool) flush() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.flushers.Add(1)
	p.mu.Unlock()
	defer p.flushers.Done()

	// close waits for flushers before closing the queues, so these blocking
	// sends never hit a closed channel
	var barrier sync.WaitGroup
	for _, q := range p.queues {
		barrier.Add(1)
		q <- job{op: "flush", run: barrier.Done}
	}
	barrier.Wait()
}

// close stops intake and waits for queued jobs to drain
func (p *pool) close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.flushers.Wait()
	for _, q := range p.queues {
		close(q)
	}
	p.wg.Wait()
}
