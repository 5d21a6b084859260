package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"

	"laju/internal/apperr"
	"laju/internal/identity"
	"laju/internal/quote"
	"laju/internal/shipment"
)

// Sheet names of the Laju workbook.
const (
	SheetUser    = "User"
	SheetActive  = "Data Active"
	SheetArchive = "Arsip"
)

var userHeader = []string{"Username", "Name", "Branch", "Role", "PasswordHash"}

var shipmentHeader = []string{
	"Resi", "Tier", "WeightKg", "DeclaredValue", "Insurance", "PaymentMethod",
	"BaseFee", "InsuranceFee", "CODSurcharge", "Total", "Status",
	"Branch", "Operator", "PaymentRef", "CreatedAt", "UpdatedAt",
}

// Column aliases accepted when reading. The login column is matched only as
// "Username"; the legacy "Nama" column is the display name.
var columnAliases = map[string][]string{
	"name":   {"nama"},
	"branch": {"cabang"},
	"tier":   {"layanan"},
}

// Workbook is an xlsx file used as the shipment and user database. All
// access is serialized; every write is flushed to disk.
type Workbook struct {
	mu   sync.Mutex
	path string
	f    *excelize.File
}

// OpenWorkbook opens path, creating the file and any missing sheets.
func OpenWorkbook(path string) (*Workbook, error) {
	var f *excelize.File
	fresh := false
	if _, err := os.Stat(path); err == nil {
		f, err = excelize.OpenFile(path)
		if err != nil {
			return nil, apperr.Unavailable("open workbook", err)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		f = excelize.NewFile()
		fresh = true
	} else {
		return nil, apperr.Unavailable("stat workbook", err)
	}

	w := &Workbook{path: path, f: f}
	changed := false
	for _, s := range []struct {
		name   string
		header []string
	}{
		{SheetUser, userHeader},
		{SheetActive, shipmentHeader},
		{SheetArchive, shipmentHeader},
	} {
		created, err := w.ensureSheet(s.name, s.header)
		if err != nil {
			_ = f.Close()
			return nil, apperr.Unavailable("prepare workbook", err)
		}
		changed = changed || created
	}
	if fresh {
		// drop the empty default sheet of a new file
		if err := f.DeleteSheet("Sheet1"); err != nil {
			_ = f.Close()
			return nil, apperr.Unavailable("prepare workbook", err)
		}
	}
	if changed {
		if err := w.flush(); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *Workbook) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Close()
}

func (w *Workbook) ensureSheet(name string, header []string) (bool, error) {
	idx, err := w.f.GetSheetIndex(name)
	if err != nil {
		return false, err
	}
	if idx >= 0 {
		return false, nil
	}
	if _, err := w.f.NewSheet(name); err != nil {
		return false, err
	}
	row := make([]interface{}, len(header))
	for i, h := range header {
		row[i] = h
	}
	return true, w.f.SetSheetRow(name, "A1", &row)
}

func (w *Workbook) flush() error {
	if err := w.f.SaveAs(w.path); err != nil {
		return apperr.Unavailable("save workbook", err)
	}
	return nil
}

// write applies fn and saves. If either step fails the file is reloaded
// from disk so memory never holds rows that were not saved.
func (w *Workbook) write(fn func() error) error {
	err := fn()
	if err == nil {
		err = w.flush()
	}
	if err != nil {
		w.reload()
	}
	return err
}

func (w *Workbook) reload() {
	f, err := excelize.OpenFile(w.path)
	if err != nil {
		return
	}
	_ = w.f.Close()
	w.f = f
}

// columns maps normalized header names to column indexes.
type columns map[string]int

func headerIndex(header []string) columns {
	c := make(columns, len(header))
	for i, h := range header {
		c[normalizeHeader(h)] = i
	}
	return c
}

func (c columns) get(row []string, name string) string {
	key := normalizeHeader(name)
	if idx, ok := c[key]; ok {
		return cellValue(row, idx)
	}
	for _, alias := range columnAliases[key] {
		if idx, ok := c[alias]; ok {
			return cellValue(row, idx)
		}
	}
	return ""
}

func normalizeHeader(header string) string {
	return strings.ToLower(strings.TrimSpace(header))
}

func cellValue(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func (w *Workbook) rows(sheet string) (columns, [][]string, error) {
	rows, err := w.f.GetRows(sheet)
	if err != nil {
		return nil, nil, apperr.Unavailable("read "+sheet, err)
	}
	if len(rows) == 0 {
		return nil, nil, apperr.Unavailable("read "+sheet, fmt.Errorf("sheet %q has no header row", sheet))
	}
	return headerIndex(rows[0]), rows[1:], nil
}

// FindByUsername implements identity.UserStore.
func (w *Workbook) FindByUsername(ctx context.Context, username string) (identity.UserRecord, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	cols, rows, err := w.rows(SheetUser)
	if err != nil {
		return identity.UserRecord{}, err
	}
	if _, ok := cols["username"]; !ok {
		return identity.UserRecord{}, apperr.Unavailable("read "+SheetUser, errors.New("missing Username column"))
	}
	for _, row := range rows {
		if cols.get(row, "Username") != username {
			continue
		}
		return identity.UserRecord{
			Username:     username,
			Name:         cols.get(row, "Name"),
			Branch:       cols.get(row, "Branch"),
			Role:         cols.get(row, "Role"),
			PasswordHash: cols.get(row, "PasswordHash"),
		}, nil
	}
	return identity.UserRecord{}, identity.ErrNotFound
}

// PutUser inserts or replaces a user row.
func (w *Workbook) PutUser(ctx context.Context, u identity.UserRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	cols, rows, err := w.rows(SheetUser)
	if err != nil {
		return err
	}
	rowNum := len(rows) + 2
	for i, row := range rows {
		if cols.get(row, "Username") == u.Username {
			rowNum = i + 2
			break
		}
	}
	values := []interface{}{u.Username, u.Name, u.Branch, u.Role, u.PasswordHash}
	return w.write(func() error { return w.setRow(SheetUser, rowNum, values) })
}

// GetShipment looks in Data Active, then in Arsip.
func (w *Workbook) GetShipment(ctx context.Context, resi string) (shipment.Record, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, sheet := range []string{SheetActive, SheetArchive} {
		rowNum, rec, err := w.findResi(sheet, resi)
		if err != nil {
			return shipment.Record{}, err
		}
		if rowNum != 0 {
			return rec, nil
		}
	}
	return shipment.Record{}, shipment.ErrRecordNotFound
}

// ListActiveShipments implements shipment.Store.
func (w *Workbook) ListActiveShipments(ctx context.Context) ([]shipment.Record, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	cols, rows, err := w.rows(SheetActive)
	if err != nil {
		return nil, err
	}
	out := make([]shipment.Record, 0, len(rows))
	for i, row := range rows {
		if cols.get(row, "Resi") == "" {
			continue
		}
		r, err := decodeRecord(cols, row)
		if err != nil {
			return nil, apperr.Unavailable(fmt.Sprintf("decode %s row %d", SheetActive, i+2), err)
		}
		if r.Status.Active() {
			out = append(out, r)
		}
	}
	return out, nil
}

// SaveShipment upserts the record into Data Active by resi.
func (w *Workbook) SaveShipment(ctx context.Context, r shipment.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	rowNum, _, err := w.findResi(SheetActive, r.Resi)
	if err != nil {
		return err
	}
	if rowNum == 0 {
		_, rows, err := w.rows(SheetActive)
		if err != nil {
			return err
		}
		rowNum = len(rows) + 2
	}
	return w.write(func() error { return w.setRow(SheetActive, rowNum, encodeRecord(r)) })
}

// UpdateStatus rewrites the status of an active shipment. Delivered
// shipments move to the Arsip sheet.
func (w *Workbook) UpdateStatus(ctx context.Context, resi string, status shipment.Status, at time.Time) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	rowNum, rec, err := w.findResi(SheetActive, resi)
	if err != nil {
		return err
	}
	if rowNum == 0 {
		archived, _, err := w.findResi(SheetArchive, resi)
		if err != nil {
			return err
		}
		if archived != 0 {
			return shipment.CheckAdvance(shipment.StatusDelivered, status)
		}
		return shipment.ErrRecordNotFound
	}
	if err := shipment.CheckAdvance(rec.Status, status); err != nil {
		return err
	}
	rec.Status = status
	rec.UpdatedAt = at.UTC()
	if status.Active() {
		return w.write(func() error { return w.setRow(SheetActive, rowNum, encodeRecord(rec)) })
	}

	_, archived, err := w.rows(SheetArchive)
	if err != nil {
		return err
	}
	return w.write(func() error {
		if err := w.setRow(SheetArchive, len(archived)+2, encodeRecord(rec)); err != nil {
			return err
		}
		if err := w.f.RemoveRow(SheetActive, rowNum); err != nil {
			return apperr.Unavailable("archive shipment", err)
		}
		return nil
	})
}

// ListArchivedShipments returns the Arsip sheet.
func (w *Workbook) ListArchivedShipments(ctx context.Context) ([]shipment.Record, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	cols, rows, err := w.rows(SheetArchive)
	if err != nil {
		return nil, err
	}
	out := make([]shipment.Record, 0, len(rows))
	for _, row := range rows {
		if cols.get(row, "Resi") == "" {
			continue
		}
		r, err := decodeRecord(cols, row)
		if err != nil {
			return nil, apperr.Unavailable("decode "+SheetArchive, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// findResi returns the 1-based row number of resi, or 0 when absent.
func (w *Workbook) findResi(sheet, resi string) (int, shipment.Record, error) {
	cols, rows, err := w.rows(sheet)
	if err != nil {
		return 0, shipment.Record{}, err
	}
	for i, row := range rows {
		if cols.get(row, "Resi") != resi {
			continue
		}
		r, err := decodeRecord(cols, row)
		if err != nil {
			return 0, shipment.Record{}, apperr.Unavailable("decode "+sheet, err)
		}
		return i + 2, r, nil
	}
	return 0, shipment.Record{}, nil
}

func (w *Workbook) setRow(sheet string, rowNum int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return apperr.Unavailable("write "+sheet, err)
	}
	if err := w.f.SetSheetRow(sheet, cell, &values); err != nil {
		return apperr.Unavailable("write "+sheet, err)
	}
	return nil
}

func encodeRecord(r shipment.Record) []interface{} {
	insurance := "no"
	if r.InsuranceRequested {
		insurance = "yes"
	}
	return []interface{}{
		r.Resi,
		string(r.Tier),
		strconv.FormatFloat(r.Weight.Kg(), 'f', -1, 64),
		formatAmount(r.DeclaredValue),
		insurance,
		string(r.PaymentMethod),
		formatAmount(r.BaseFee),
		formatAmount(r.InsuranceFee),
		formatAmount(r.CODSurcharge),
		formatAmount(r.Total),
		string(r.Status),
		r.Branch,
		r.Operator,
		r.PaymentRef,
		r.CreatedAt.UTC().Format(time.RFC3339),
		r.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func decodeRecord(cols columns, row []string) (shipment.Record, error) {
	r := shipment.Record{
		Resi:       cols.get(row, "Resi"),
		Status:     shipment.ParseStatus(cols.get(row, "Status")),
		Branch:     cols.get(row, "Branch"),
		Operator:   cols.get(row, "Operator"),
		PaymentRef: cols.get(row, "PaymentRef"),
	}
	var err error
	if r.Tier, err = quote.ParseTier(cols.get(row, "Tier")); err != nil {
		return r, err
	}
	if v := cols.get(row, "WeightKg"); v != "" {
		if r.Weight, err = quote.ParseWeightKg(v); err != nil {
			return r, err
		}
	}
	if v := cols.get(row, "PaymentMethod"); v != "" {
		if r.PaymentMethod, err = quote.ParsePaymentMethod(v); err != nil {
			return r, err
		}
	}
	switch strings.ToLower(cols.get(row, "Insurance")) {
	case "yes", "ya", "true", "1":
		r.InsuranceRequested = true
	}
	for _, f := range []struct {
		col string
		dst *quote.Money
	}{
		{"DeclaredValue", &r.DeclaredValue},
		{"BaseFee", &r.BaseFee},
		{"InsuranceFee", &r.InsuranceFee},
		{"CODSurcharge", &r.CODSurcharge},
		{"Total", &r.Total},
	} {
		if v := cols.get(row, f.col); v != "" {
			if *f.dst, err = quote.ParseMoney(v); err != nil {
				return r, err
			}
		}
	}
	r.CreatedAt = parseTime(cols.get(row, "CreatedAt"))
	r.UpdatedAt = parseTime(cols.get(row, "UpdatedAt"))
	return r, nil
}

// formatAmount writes rupiah with a dot decimal and no grouping so the
// sheet stays numeric: 45150 or 99999.99.
func formatAmount(m quote.Money) string {
	c := m.Cents()
	sign := ""
	if c < 0 {
		sign, c = "-", -c
	}
	if c%100 == 0 {
		return sign + strconv.FormatInt(c/100, 10)
	}
	return fmt.Sprintf("%s%d.%02d", sign, c/100, c%100)
}

func parseTime(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC()
	}
	if serial, err := strconv.ParseFloat(v, 64); err == nil {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
