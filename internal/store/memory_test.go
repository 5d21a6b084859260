package store

import (
	"context"
	"errors"
	"testing"

	"laju/internal/apperr"
	"laju/internal/identity"
	"laju/internal/shipment"
)

func TestMemory_FiltersDelivered(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_ = m.SaveShipment(ctx, sampleRecord("a", shipment.StatusLabelPrinted))
	_ = m.SaveShipment(ctx, sampleRecord("b", shipment.StatusDelivered))
	list, err := m.ListActiveShipments(ctx)
	if err != nil || len(list) != 1 || list[0].Resi != "a" {
		t.Fatalf("unexpected list %+v, %v", list, err)
	}
	if err := m.UpdateStatus(ctx, "a", shipment.StatusDelivered, created); err != nil {
		t.Fatalf("update: %v", err)
	}
	if list, _ := m.ListActiveShipments(ctx); len(list) != 0 {
		t.Fatalf("expected no active shipments")
	}
	archived, err := m.ListArchivedShipments(ctx)
	if err != nil || len(archived) != 2 {
		t.Fatalf("expected both delivered records archived, got %+v, %v", archived, err)
	}
	if _, err := m.FindByUsername(ctx, "nobody"); !errors.Is(err, identity.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemory_UpdateStatusGuardsPayment(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_ = m.SaveShipment(ctx, sampleRecord("a", shipment.StatusAwaitingPayment))
	for _, st := range []shipment.Status{shipment.StatusInTransit, shipment.StatusDelivered} {
		if err := m.UpdateStatus(ctx, "a", st, created); !errors.Is(err, shipment.ErrInvalidTransition) {
			t.Fatalf("%s: expected ErrInvalidTransition, got %v", st, err)
		}
	}
	if r, _ := m.GetShipment(ctx, "a"); r.Status != shipment.StatusAwaitingPayment {
		t.Fatalf("record changed to %s", r.Status)
	}
	if _, err := m.GetShipment(ctx, "zzz"); !errors.Is(err, shipment.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestMemory_CanceledContextIsUnavailable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewMemory().ListActiveShipments(ctx); !errors.Is(err, apperr.ErrCollaboratorUnavailable) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected wrapped cancellation, got %v", err)
	}
}
