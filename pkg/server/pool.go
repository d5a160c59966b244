package server

import (
	"context"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/NicolasHaas/mustangchat/pkg/model"
)

// HandlerFunc processes one datagram.
type HandlerFunc func(ep model.Endpoint, data []byte)

type datagram struct {
	from model.Endpoint
	data []byte
}

// Pool fans datagrams out to a fixed set of workers. An endpoint always
// maps to the same worker, so datagrams from one endpoint are handled in
// the order they were submitted.
type Pool struct {
	queues []chan datagram
	handle HandlerFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewPool creates a pool of workers goroutines, each with a queue of
// queueSize datagrams. Workers below 1 are treated as 1.
func NewPool(workers, queueSize int, handle HandlerFunc) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	p := &Pool{
		queues: make([]chan datagram, workers),
		handle: handle,
	}
	for i := range p.queues {
		p.queues[i] = make(chan datagram, queueSize)
	}
	return p
}

// Start launches the workers.
func (p *Pool) Start() {
	for _, q := range p.queues {
		p.wg.Add(1)
		go func(q <-chan datagram) {
			defer p.wg.Done()
			for dg := range q {
				p.handle(dg.from, dg.data)
			}
		}(q)
	}
}

// Workers returns the worker count.
func (p *Pool) Workers() int { return len(p.queues) }

// Shard returns the worker index ep is pinned to.
func (p *Pool) Shard(ep model.Endpoint) int {
	b, _ := ep.MarshalBinary()
	return int(xxhash.Sum64(b) % uint64(len(p.queues)))
}

// Submit queues a datagram, blocking while the endpoint's worker queue is
// full. The pool takes ownership of data. Submit must not be called after
// Close.
func (p *Pool) Submit(ctx context.Context, ep model.Endpoint, data []byte) error {
	select {
	case p.queues[p.Shard(ep)] <- datagram{from: ep, data: data}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting work and waits for queued datagrams to drain.
func (p *Pool) Close() {
	p.once.Do(func() {
		for _, q := range p.queues {
			close(q)
		}
	})
	p.wg.Wait()
}
