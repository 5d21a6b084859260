package store

import (
	"errors"
	"os"
	"testing"

	"laju/internal/db"
	"laju/internal/shipment"
)

func TestPostgresIntegration(t *testing.T) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
		return
	}
	pool, err := db.NewPool(testContext(t), dbURL)
	if err != nil {
		t.Fatalf("failed to connect db: %v", err)
	}
	defer pool.Close()

	p := NewPostgres(pool)
	if err := p.EnsureSchema(testContext(t)); err != nil {
		t.Fatalf("schema: %v", err)
	}
	rec := sampleRecord("LAJU-PGTEST-1", shipment.StatusLabelPrinted)
	if err := p.SaveShipment(testContext(t), rec); err != nil {
		t.Fatalf("save: %v", err)
	}
	defer func() { _, _ = pool.Exec(testContext(t), `DELETE FROM shipments WHERE resi = $1`, rec.Resi) }()

	if err := p.UpdateStatus(testContext(t), rec.Resi, shipment.StatusInTransit, created); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := p.UpdateStatus(testContext(t), rec.Resi, shipment.StatusPaid, created); !errors.Is(err, shipment.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if _, err := p.GetShipment(testContext(t), "LAJU-PGTEST-404"); !errors.Is(err, shipment.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
	list, err := p.ListActiveShipments(testContext(t))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	found := false
	for _, r := range list {
		if r.Resi == rec.Resi {
			found = true
			if r.Status != shipment.StatusInTransit || r.Total != rec.Total {
				t.Fatalf("unexpected record %+v", r)
			}
		}
	}
	if !found {
		t.Fatalf("saved shipment not listed")
	}

	if err := p.UpdateStatus(testContext(t), rec.Resi, shipment.StatusDelivered, created); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	got, err := p.GetShipment(testContext(t), rec.Resi)
	if err != nil || got.Status != shipment.StatusDelivered {
		t.Fatalf("unexpected record %+v, %v", got, err)
	}
	archived, err := p.ListArchivedShipments(testContext(t))
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	found = false
	for _, r := range archived {
		found = found || r.Resi == rec.Resi
	}
	if !found {
		t.Fatalf("delivered shipment not archived")
	}
}
