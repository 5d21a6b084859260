package shipment

import (
	"errors"
	"sort"
	"sync"
)

// ErrDraftNotFound is returned for an unknown resi.
var ErrDraftNotFound = errors.New("draft not found")

// Book keeps open drafts keyed by resi. Each draft has its own lock so one
// operator's transition does not block another's.
type Book struct {
	mu     sync.RWMutex
	drafts map[string]*entry
}

type entry struct {
	mu    sync.Mutex
	draft *Draft
}

func NewBook() *Book {
	return &Book{drafts: make(map[string]*entry)}
}

func (b *Book) Put(d *Draft) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.drafts[d.Resi] = &entry{draft: d}
}

// Adopt stores d unless the resi is already held, so a draft rebuilt from
// storage never replaces a live one. It reports whether d was stored.
func (b *Book) Adopt(d *Draft) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.drafts[d.Resi]; ok {
		return false
	}
	b.drafts[d.Resi] = &entry{draft: d}
	return true
}

// Len reports how many drafts are held.
func (b *Book) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.drafts)
}

// Get returns a copy of the draft.
func (b *Book) Get(resi string) (Draft, error) {
	e, err := b.lookup(resi)
	if err != nil {
		return Draft{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return *e.draft, nil
}

// Update runs fn against the stored draft under its lock and returns the
// resulting copy. The draft is left untouched when fn fails.
func (b *Book) Update(resi string, fn func(*Draft) error) (Draft, error) {
	e, err := b.lookup(resi)
	if err != nil {
		return Draft{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	next := *e.draft
	if err := fn(&next); err != nil {
		return *e.draft, err
	}
	e.draft = &next
	return next, nil
}

// List returns copies of all drafts, newest first.
func (b *Book) List() []Draft {
	b.mu.RLock()
	entries := make([]*entry, 0, len(b.drafts))
	for _, e := range b.drafts {
		entries = append(entries, e)
	}
	b.mu.RUnlock()

	out := make([]Draft, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, *e.draft)
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (b *Book) Delete(resi string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.drafts, resi)
}

func (b *Book) lookup(resi string) (*entry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.drafts[resi]
	if !ok {
		return nil, ErrDraftNotFound
	}
	return e, nil
}
