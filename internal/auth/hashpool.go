package auth

import (
	"context"
	"errors"
	"sync"
)

// ErrPoolClosed is returned when a comparison is submitted after Close.
var ErrPoolClosed = errors.New("auth: hash pool closed")

type hashJob struct {
	hash   string
	secret string
	result chan error
}

// HashPool runs the deliberately CPU-expensive hash comparisons on a fixed
// set of workers so request-handling goroutines only wait on a channel
// instead of occupying a scheduling slot for the full hashing duration.
type HashPool struct {
	hasher    Hasher
	jobs      chan hashJob
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewHashPool starts workers goroutines over the given hasher.
func NewHashPool(workers int, hasher Hasher) *HashPool {
	if workers <= 0 {
		workers = 4
	}
	p := &HashPool{
		hasher: hasher,
		jobs:   make(chan hashJob),
		done:   make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *HashPool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.done:
			return
		case job := <-p.jobs:
			job.result <- p.hasher.Compare(job.hash, job.secret)
		}
	}
}

// Compare dispatches the comparison to the pool and awaits its handle,
// honoring context cancellation while queued or in flight.
func (p *HashPool) Compare(ctx context.Context, hash, secret string) error {
	job := hashJob{hash: hash, secret: secret, result: make(chan error, 1)}
	select {
	case p.jobs <- job:
	case <-p.done:
		return ErrPoolClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-job.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the workers and waits for them to drain.
func (p *HashPool) Close() {
	p.closeOnce.Do(func() { close(p.done) })
	p.wg.Wait()
}
