package shipment

import (
	"errors"
	"sync"
	"testing"
	"time"

	"laju/internal/quote"
)

func TestBook_UpdateIsAtomic(t *testing.T) {
	b := NewBook()
	d := newTestDraft(t, quote.Prepaid)
	_ = d.Commit(t0)
	b.Put(d)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := b.Update("LAJU-1", func(d *Draft) error { return d.MarkPaid("ref", t0) })
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if succeeded != 1 {
		t.Fatalf("expected exactly one payment to succeed, got %d", succeeded)
	}
}

func TestBook_FailedUpdateLeavesDraft(t *testing.T) {
	b := NewBook()
	b.Put(newTestDraft(t, quote.COD))
	got, err := b.Update("LAJU-1", func(d *Draft) error { return d.PrintLabel(t0) })
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if got.State != Quoted {
		t.Fatalf("expected quoted, got %s", got.State)
	}
}

func TestBook_GetUnknown(t *testing.T) {
	if _, err := NewBook().Get("LAJU-404"); !errors.Is(err, ErrDraftNotFound) {
		t.Fatalf("expected ErrDraftNotFound, got %v", err)
	}
}

func TestBook_ListNewestFirst(t *testing.T) {
	b := NewBook()
	req := quote.ShipmentRequest{Tier: quote.Cargo, Weight: quote.Kilograms(1), PaymentMethod: quote.COD}
	b.Put(NewDraft("LAJU-1", req, quote.Result{}, "a", "x", t0))
	b.Put(NewDraft("LAJU-2", req, quote.Result{}, "a", "x", t0.Add(time.Hour)))
	list := b.List()
	if len(list) != 2 || list[0].Resi != "LAJU-2" {
		t.Fatalf("unexpected order: %+v", list)
	}
	b.Delete("LAJU-2")
	if len(b.List()) != 1 {
		t.Fatalf("expected one draft after delete")
	}
}

func TestBook_AdoptKeepsLiveDraft(t *testing.T) {
	b := NewBook()
	live := newTestDraft(t, quote.Prepaid)
	_ = live.Commit(t0)
	b.Put(live)

	stale := newTestDraft(t, quote.Prepaid)
	if b.Adopt(stale) {
		t.Fatalf("adopt replaced a live draft")
	}
	if got, _ := b.Get("LAJU-1"); got.State != AwaitingPayment {
		t.Fatalf("expected live draft kept, got %s", got.State)
	}
	b.Delete("LAJU-1")
	if !b.Adopt(stale) || b.Len() != 1 {
		t.Fatalf("expected adopt into an empty slot")
	}
}
