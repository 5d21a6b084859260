package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"laju/internal/identity"
	"laju/internal/quote"
	"laju/internal/shipment"
)

var created = time.Date(2026, 2, 10, 9, 30, 0, 0, time.UTC)

func sampleRecord(resi string, status shipment.Status) shipment.Record {
	return shipment.Record{
		Resi:               resi,
		Tier:               quote.Cargo,
		Weight:             2500,
		DeclaredValue:      quote.Rupiah(1_000_000),
		InsuranceRequested: true,
		PaymentMethod:      quote.COD,
		BaseFee:            quote.Rupiah(10_000),
		InsuranceFee:       quote.Rupiah(3_000),
		CODSurcharge:       quote.Rupiah(650),
		Total:              quote.Rupiah(13_650),
		Status:             status,
		Branch:             "Bandung",
		Operator:           "budi",
		CreatedAt:          created,
		UpdatedAt:          created,
	}
}

func TestWorkbook_CreatesSheets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "laju.xlsx")
	w, err := OpenWorkbook(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	w.Close()

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer f.Close()
	sheets := f.GetSheetList()
	want := map[string]bool{SheetUser: true, SheetActive: true, SheetArchive: true}
	if len(sheets) != len(want) {
		t.Fatalf("unexpected sheets %v", sheets)
	}
	for _, s := range sheets {
		if !want[s] {
			t.Fatalf("unexpected sheet %q", s)
		}
	}
}

func TestWorkbook_ShipmentRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "laju.xlsx")
	w, err := OpenWorkbook(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	rec := sampleRecord("LAJU-100", shipment.StatusPaid)
	if err := w.SaveShipment(ctx, rec); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := w.SaveShipment(ctx, sampleRecord("LAJU-101", shipment.StatusAwaitingPayment)); err != nil {
		t.Fatalf("save: %v", err)
	}
	w.Close()

	// reopen from disk to prove the write was flushed
	w, err = OpenWorkbook(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer w.Close()
	list, err := w.ListActiveShipments(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 records, got %d", len(list))
	}
	if list[0] != rec {
		t.Fatalf("round trip mismatch:\nwant %+v\ngot  %+v", rec, list[0])
	}
}

func TestWorkbook_UpsertAndArchive(t *testing.T) {
	ctx := context.Background()
	w, err := OpenWorkbook(filepath.Join(t.TempDir(), "laju.xlsx"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer w.Close()

	rec := sampleRecord("LAJU-1", shipment.StatusAwaitingPayment)
	_ = w.SaveShipment(ctx, rec)
	_ = w.SaveShipment(ctx, sampleRecord("LAJU-2", shipment.StatusPaid))
	if err := w.UpdateStatus(ctx, "LAJU-1", shipment.StatusInTransit, created); !errors.Is(err, shipment.ErrInvalidTransition) {
		t.Fatalf("unpaid shipment left the counter: %v", err)
	}
	rec.Status = shipment.StatusLabelPrinted
	rec.PaymentRef = "TRX-1"
	if err := w.SaveShipment(ctx, rec); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	list, _ := w.ListActiveShipments(ctx)
	if len(list) != 2 || list[0].PaymentRef != "TRX-1" {
		t.Fatalf("expected upsert in place, got %+v", list)
	}

	if err := w.UpdateStatus(ctx, "LAJU-1", shipment.StatusDelivered, created.Add(time.Hour)); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	list, _ = w.ListActiveShipments(ctx)
	if len(list) != 1 || list[0].Resi != "LAJU-2" {
		t.Fatalf("expected LAJU-1 archived, got %+v", list)
	}
	archived, err := w.ListArchivedShipments(ctx)
	if err != nil || len(archived) != 1 || archived[0].Status != shipment.StatusDelivered {
		t.Fatalf("unexpected archive %+v, %v", archived, err)
	}
	got, err := w.GetShipment(ctx, "LAJU-1")
	if err != nil || got.Status != shipment.StatusDelivered || got.PaymentRef != "TRX-1" {
		t.Fatalf("expected archived record, got %+v, %v", got, err)
	}
	if err := w.UpdateStatus(ctx, "LAJU-1", shipment.StatusInTransit, created); !errors.Is(err, shipment.ErrInvalidTransition) {
		t.Fatalf("expected delivered to be final, got %v", err)
	}
	if _, err := w.GetShipment(ctx, "LAJU-404"); !errors.Is(err, shipment.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}

	if err := w.UpdateStatus(ctx, "LAJU-404", shipment.StatusInTransit, created); !errors.Is(err, shipment.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestWorkbook_Users(t *testing.T) {
	ctx := context.Background()
	w, err := OpenWorkbook(filepath.Join(t.TempDir(), "laju.xlsx"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer w.Close()

	u := identity.UserRecord{Username: "siti", Name: "Siti", Branch: "Jakarta", Role: "admin", PasswordHash: "$argon2id$x"}
	if err := w.PutUser(ctx, u); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := w.FindByUsername(ctx, "siti")
	if err != nil || got != u {
		t.Fatalf("expected %+v, got %+v, %v", u, got, err)
	}
	if _, err := w.FindByUsername(ctx, "Siti"); !errors.Is(err, identity.ErrNotFound) {
		t.Fatalf("usernames are case sensitive; got %v", err)
	}
}

func TestWorkbook_ReadsLegacyHeaders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.xlsx")
	f := excelize.NewFile()
	_, _ = f.NewSheet(SheetUser)
	_ = f.SetSheetRow(SheetUser, "A1", &[]interface{}{"Username", "Nama", "Cabang", "PasswordHash"})
	_ = f.SetSheetRow(SheetUser, "A2", &[]interface{}{"ani", "Ani Lestari", "Medan", "$argon2id$y"})
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	f.Close()

	w, err := OpenWorkbook(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer w.Close()
	u, err := w.FindByUsername(context.Background(), "ani")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if u.Name != "Ani Lestari" || u.Branch != "Medan" {
		t.Fatalf("expected legacy columns to map, got %+v", u)
	}
}

func TestFormatAmount(t *testing.T) {
	cases := map[quote.Money]string{
		quote.Rupiah(45_150):      "45150",
		quote.Rupiah(100_000) - 1: "99999.99",
		5:                         "0.05",
	}
	for m, want := range cases {
		if got := formatAmount(m); got != want {
			t.Fatalf("%d: expected %q, got %q", m, want, got)
		}
		back, err := quote.ParseMoney(formatAmount(m))
		if err != nil || back != m {
			t.Fatalf("%d: parse back gave %d, %v", m, back, err)
		}
	}
}

func TestWorkbook_FailedWriteReloadsFromDisk(t *testing.T) {
	ctx := context.Background()
	w, err := OpenWorkbook(filepath.Join(t.TempDir(), "laju.xlsx"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer w.Close()
	if err := w.SaveShipment(ctx, sampleRecord("LAJU-1", shipment.StatusPaid)); err != nil {
		t.Fatalf("save: %v", err)
	}

	boom := errors.New("disk full")
	err = w.write(func() error {
		if err := w.setRow(SheetActive, 3, encodeRecord(sampleRecord("LAJU-2", shipment.StatusPaid))); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected write error, got %v", err)
	}
	list, err := w.ListActiveShipments(ctx)
	if err != nil || len(list) != 1 || list[0].Resi != "LAJU-1" {
		t.Fatalf("unsaved row survived in memory: %+v, %v", list, err)
	}
}
