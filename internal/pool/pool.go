// Package pool fans a ticker list out across a fixed set of workers, each
// owning one contiguous chunk of the list.
package pool

import (
	"context"
	"errors"
	"slices"
	"sync"

	"go.uber.org/zap"
)

// ParseFunc produces one ticker's record batch.
type ParseFunc[T any] func(ctx context.Context, ticker string) ([]T, error)

// Sink receives one ticker's record batch as soon as it is produced. A Sink
// error terminates the worker that raised it; sibling workers keep running.
type Sink[T any] func(ctx context.Context, ticker string, records []T) error

// Pool runs a parser over a pre-partitioned ticker list. With a sink, each
// batch is delivered as it completes; without one, batches accumulate in a
// shared result list guarded by a mutex. There is no ordering guarantee
// between workers.
type Pool[T any] struct {
	parse  ParseFunc[T]
	chunks [][]string
	sink   Sink[T]

	wg      sync.WaitGroup
	mu      sync.Mutex
	results [][]T
	errs    []error
}

// New creates a Pool splitting tickers into workers contiguous chunks. A nil
// sink selects shared-result accumulation.
func New[T any](parse ParseFunc[T], tickers []string, workers int, sink Sink[T]) *Pool[T] {
	return &Pool[T]{
		parse:  parse,
		chunks: Split(tickers, workers),
		sink:   sink,
	}
}

// Split partitions list into n contiguous chunks whose sizes differ by at most
// one and whose concatenation reproduces list. When n exceeds the list length
// the excess chunks are empty.
func Split(list []string, n int) [][]string {
	if n < 1 {
		n = 1
	}
	chunks := make([][]string, n)
	length := len(list)
	for i := range n {
		chunks[i] = list[i*length/n : (i+1)*length/n]
	}
	return chunks
}

// Start launches one worker per chunk. Workers process their chunk in order;
// a ticker failure terminates only its worker, and the error is surfaced by
// Wait.
func (p *Pool[T]) Start(ctx context.Context) {
	for i, chunk := range p.chunks {
		p.wg.Add(1)
		go func(worker int, tickers []string) {
			defer p.wg.Done()
			p.runWorker(ctx, worker, tickers)
		}(i, chunk)
	}
}

// Wait blocks until every worker has completed or failed, then returns the
// collected worker errors joined, or nil when all workers succeeded.
func (p *Pool[T]) Wait() error {
	p.wg.Wait()
	p.mu.Lock()
	defer p.mu.Unlock()
	return errors.Join(p.errs...)
}

// Results returns a copy of the accumulated batches. Only meaningful when the
// pool was built without a sink, and only after Wait has returned.
func (p *Pool[T]) Results() [][]T {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.results)
}

func (p *Pool[T]) runWorker(ctx context.Context, worker int, tickers []string) {
	log := zap.L().With(zap.Int("worker", worker))
	for _, ticker := range tickers {
		records, err := p.parse(ctx, ticker)
		if err != nil {
			log.Warn("worker aborted",
				zap.String("ticker", ticker),
				zap.Error(err),
			)
			p.collectErr(err)
			return
		}
		if p.sink != nil {
			if err := p.sink(ctx, ticker, records); err != nil {
				log.Warn("sink failed",
					zap.String("ticker", ticker),
					zap.Error(err),
				)
				p.collectErr(err)
				return
			}
			continue
		}
		p.mu.Lock()
		p.results = append(p.results, records)
		p.mu.Unlock()
	}
}

func (p *Pool[T]) collectErr(err error) {
	p.mu.Lock()
	p.errs = append(p.errs, err)
	p.mu.Unlock()
}
