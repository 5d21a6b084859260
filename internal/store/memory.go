package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"laju/internal/apperr"
	"laju/internal/identity"
	"laju/internal/shipment"
)

// Memory is an in-process store for tests and throwaway demos.
type Memory struct {
	mu        sync.RWMutex
	users     map[string]identity.UserRecord
	shipments map[string]shipment.Record
}

func NewMemory() *Memory {
	return &Memory{
		users:     make(map[string]identity.UserRecord),
		shipments: make(map[string]shipment.Record),
	}
}

func (m *Memory) FindByUsername(ctx context.Context, username string) (identity.UserRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[username]
	if !ok {
		return identity.UserRecord{}, identity.ErrNotFound
	}
	return u, nil
}

func (m *Memory) PutUser(ctx context.Context, u identity.UserRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.Username] = u
	return nil
}

func (m *Memory) GetShipment(ctx context.Context, resi string) (shipment.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.shipments[resi]
	if !ok {
		return shipment.Record{}, shipment.ErrRecordNotFound
	}
	return r, nil
}

// ListActiveShipments returns active records oldest first.
func (m *Memory) ListActiveShipments(ctx context.Context) ([]shipment.Record, error) {
	return m.list(ctx, "list shipments", func(s shipment.Status) bool { return s.Active() })
}

// ListArchivedShipments returns delivered records oldest first.
func (m *Memory) ListArchivedShipments(ctx context.Context) ([]shipment.Record, error) {
	return m.list(ctx, "list archive", func(s shipment.Status) bool { return !s.Active() })
}

func (m *Memory) list(ctx context.Context, op string, keep func(shipment.Status) bool) ([]shipment.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperr.Unavailable(op, err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]shipment.Record, 0, len(m.shipments))
	for _, r := range m.shipments {
		if keep(r.Status) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) SaveShipment(ctx context.Context, r shipment.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shipments[r.Resi] = r
	return nil
}

func (m *Memory) UpdateStatus(ctx context.Context, resi string, status shipment.Status, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.shipments[resi]
	if !ok {
		return shipment.ErrRecordNotFound
	}
	if err := shipment.CheckAdvance(r.Status, status); err != nil {
		return err
	}
	r.Status = status
	r.UpdatedAt = at.UTC()
	m.shipments[resi] = r
	return nil
}
