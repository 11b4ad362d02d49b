package pager

import (
	"errors"
	"testing"

	"github.com/amparo-ai/amparo/pkg/core/types"
)

func photos(ids ...string) []types.Photo {
	out := make([]types.Photo, 0, len(ids))
	for _, id := range ids {
		out = append(out, types.Photo{ID: id, URL: "https://photos.example/" + id})
	}
	return out
}

func TestPager_ExhaustionSequence(t *testing.T) {
	p := New()

	item, hasMore, err := p.Start(photos("a", "b", "c"))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if item.ID != "a" || !hasMore {
		t.Fatalf("first=%q hasMore=%v, want a/true", item.ID, hasMore)
	}

	item, hasMore, err = p.Advance()
	if err != nil {
		t.Fatalf("advance to b: %v", err)
	}
	if item.ID != "b" || !hasMore {
		t.Fatalf("second=%q hasMore=%v, want b/true", item.ID, hasMore)
	}

	item, hasMore, err = p.Advance()
	if err != nil {
		t.Fatalf("advance to c: %v", err)
	}
	if item.ID != "c" || hasMore {
		t.Fatalf("third=%q hasMore=%v, want c/false", item.ID, hasMore)
	}

	if _, _, err = p.Advance(); !errors.Is(err, ErrExhausted) {
		t.Fatalf("fourth advance err=%v, want ErrExhausted", err)
	}
	if p.Active() {
		t.Fatalf("state should be cleared after exhaustion")
	}

	// A fifth call behaves like a fresh pager with no batch.
	if _, _, err = p.Advance(); !errors.Is(err, ErrNoSession) {
		t.Fatalf("fifth advance err=%v, want ErrNoSession", err)
	}
}

func TestPager_AdvanceWithoutBatch(t *testing.T) {
	p := New()
	if _, _, err := p.Advance(); !errors.Is(err, ErrNoSession) {
		t.Fatalf("err=%v, want ErrNoSession", err)
	}
}

func TestPager_EmptyBatchRejected(t *testing.T) {
	p := New()
	if _, _, err := p.Start(nil); !errors.Is(err, ErrNoSession) {
		t.Fatalf("err=%v, want ErrNoSession", err)
	}
	if p.Active() {
		t.Fatalf("empty start should leave pager idle")
	}
}

func TestPager_StartReplacesExistingBatch(t *testing.T) {
	p := New()
	if _, _, err := p.Start(photos("a", "b")); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, _, err := p.Advance(); err != nil {
		t.Fatalf("advance: %v", err)
	}

	item, hasMore, err := p.Start(photos("x", "y", "z"))
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if item.ID != "x" || !hasMore {
		t.Fatalf("restart item=%q hasMore=%v", item.ID, hasMore)
	}
	if got := p.Remaining(); got != 2 {
		t.Fatalf("remaining=%d, want 2", got)
	}
}

func TestPager_SingleItemBatch(t *testing.T) {
	p := New()
	item, hasMore, err := p.Start(photos("only"))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if item.ID != "only" || hasMore {
		t.Fatalf("item=%q hasMore=%v, want only/false", item.ID, hasMore)
	}
	if _, _, err := p.Advance(); !errors.Is(err, ErrExhausted) {
		t.Fatalf("err=%v, want ErrExhausted", err)
	}
}
