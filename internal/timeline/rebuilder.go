package timeline

import (
	"context"
	"errors"
	"sync"
)

// ErrSuperseded is returned by a build that a newer Rebuild replaced.
var ErrSuperseded = errors.New("timeline build superseded")

// Rebuilder runs timeline builds where only the newest one counts. Starting
// a build cancels the one in flight, and a build publishes its sections only
// if no newer build was started meanwhile.
type Rebuilder struct {
	mu        sync.Mutex
	seq       uint64
	cancel    context.CancelFunc
	latest    []Section
	published uint64

	build func(context.Context, Input) ([]Section, error)
}

func NewRebuilder() *Rebuilder {
	return &Rebuilder{build: build}
}

// Rebuild builds sections for in and publishes them. It returns
// ErrSuperseded when a later call replaced it before it finished.
func (r *Rebuilder) Rebuild(ctx context.Context, in Input) ([]Section, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.seq++
	seq := r.seq
	r.cancel = cancel
	r.mu.Unlock()

	sections, err := r.build(ctx, in)

	r.mu.Lock()
	defer r.mu.Unlock()
	if seq != r.seq {
		return nil, ErrSuperseded
	}
	r.cancel = nil
	if err != nil {
		return nil, err
	}
	r.latest = sections
	r.published = seq
	return sections, nil
}

// Latest returns the most recently published sections and the sequence
// number of the build that produced them. Zero means nothing was published.
func (r *Rebuilder) Latest() ([]Section, uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latest, r.published
}

// Cancel stops the build in flight, if any.
func (r *Rebuilder) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}
