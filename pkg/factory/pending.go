package factory

import (
	"context"
	"sync"
)

// Pending is the handle of an in-flight CreateAsync call.
type Pending struct {
	done chan struct{}
	once sync.Once
	rec  Record
	err  error
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

func (p *Pending) resolve(rec Record, err error) {
	p.once.Do(func() {
		p.rec = rec
		p.err = err
		close(p.done)
	})
}

// Done is closed once the store call has finished.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the record is stored or ctx ends. Giving up on ctx does
// not cancel the store call.
func (p *Pending) Wait(ctx context.Context) (Record, error) {
	select {
	case <-p.done:
		return p.rec, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
