// Package pager implements sequential disclosure of a media batch: one item
// at a time, advanced by explicit next requests.
package pager

import (
	"errors"
	"sync"
	"time"

	"github.com/amparo-ai/amparo/pkg/core/types"
)

var (
	// ErrNoSession means an advance was requested with no active batch.
	ErrNoSession = errors.New("no active paging session")
	// ErrExhausted means the cursor was already on the last item; the state
	// has been cleared and a fresh first-page request is required.
	ErrExhausted = errors.New("no more items")
)

// Pager holds at most one active batch. It is owned by a single session but
// tool dispatches may touch it from their own goroutines, so it locks
// internally; the cursor only moves forward and the state is destroyed on
// exhaustion or replacement.
type Pager struct {
	mu    sync.Mutex
	state *batch
	now   func() time.Time
}

type batch struct {
	items     []types.Photo
	cursor    int
	createdAt time.Time
}

func New() *Pager {
	return &Pager{now: time.Now}
}

// Start replaces any existing batch with a new one and returns its first
// item. Empty batches are rejected and leave the pager without state.
func (p *Pager) Start(items []types.Photo) (types.Photo, bool, error) {
	if p == nil {
		return types.Photo{}, false, ErrNoSession
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(items) == 0 {
		p.state = nil
		return types.Photo{}, false, ErrNoSession
	}
	now := time.Now
	if p.now != nil {
		now = p.now
	}
	p.state = &batch{
		items:     append([]types.Photo(nil), items...),
		cursor:    0,
		createdAt: now(),
	}
	return p.state.items[0], len(p.state.items) > 1, nil
}

// Advance moves the cursor forward by one and returns the item there.
// Advancing past the last item clears the state and reports ErrExhausted.
func (p *Pager) Advance() (types.Photo, bool, error) {
	if p == nil {
		return types.Photo{}, false, ErrNoSession
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == nil {
		return types.Photo{}, false, ErrNoSession
	}
	if p.state.cursor >= len(p.state.items)-1 {
		p.state = nil
		return types.Photo{}, false, ErrExhausted
	}
	p.state.cursor++
	item := p.state.items[p.state.cursor]
	hasMore := p.state.cursor < len(p.state.items)-1
	return item, hasMore, nil
}

// Active reports whether a batch is in progress.
func (p *Pager) Active() bool {
	if p == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state != nil
}

// Reset drops any active batch.
func (p *Pager) Reset() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = nil
}

// Remaining reports how many items are left after the cursor, zero when idle.
func (p *Pager) Remaining() int {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == nil {
		return 0
	}
	return len(p.state.items) - 1 - p.state.cursor
}
