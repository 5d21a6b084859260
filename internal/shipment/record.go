package shipment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"laju/internal/quote"
)

// Status is the lifecycle status stored with a shipment record.
type Status string

const (
	StatusCreated         Status = "created"
	StatusAwaitingPayment Status = "awaiting_payment"
	StatusPaid            Status = "paid"
	StatusLabelPrinted    Status = "label_printed"
	StatusInTransit       Status = "in_transit"
	StatusDelivered       Status = "delivered"
)

// ParseStatus accepts the stored values; anything else reads as created.
func ParseStatus(s string) Status {
	switch st := Status(s); st {
	case StatusCreated, StatusAwaitingPayment, StatusPaid, StatusLabelPrinted, StatusInTransit, StatusDelivered:
		return st
	}
	return StatusCreated
}

// Active reports whether the shipment still belongs on the active list.
func (s Status) Active() bool { return s != StatusDelivered }

// Settled reports whether payment has been secured for the shipment.
func (s Status) Settled() bool {
	switch s {
	case StatusPaid, StatusLabelPrinted, StatusInTransit, StatusDelivered:
		return true
	}
	return false
}

// CheckAdvance validates a hand-over step on a stored record. Only printed
// shipments leave the counter, and delivered is final.
func CheckAdvance(from, to Status) error {
	switch {
	case from == StatusLabelPrinted && (to == StatusInTransit || to == StatusDelivered):
		return nil
	case from == StatusInTransit && to == StatusDelivered:
		return nil
	}
	return fmt.Errorf("%w: cannot move shipment from %s to %s", ErrInvalidTransition, from, to)
}

// Record is one persisted shipment row.
type Record struct {
	Resi               string              `json:"resi"`
	Tier               quote.Tier          `json:"service_tier"`
	Weight             quote.Weight        `json:"weight_g"`
	DeclaredValue      quote.Money         `json:"declared_value"`
	InsuranceRequested bool                `json:"insurance_requested"`
	PaymentMethod      quote.PaymentMethod `json:"payment_method"`
	BaseFee            quote.Money         `json:"base_fee"`
	InsuranceFee       quote.Money         `json:"insurance_fee"`
	CODSurcharge       quote.Money         `json:"cod_surcharge"`
	Total              quote.Money         `json:"total_payable"`
	Status             Status              `json:"status"`
	Branch             string              `json:"branch"`
	Operator           string              `json:"operator"`
	PaymentRef         string              `json:"payment_ref,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

// ErrRecordNotFound is returned when no stored shipment has the resi.
var ErrRecordNotFound = errors.New("shipment record not found")

// Store persists shipment records. Implementations wrap their own failures
// with apperr.Unavailable.
// UpdateStatus applies CheckAdvance against the stored status.
type Store interface {
	GetShipment(ctx context.Context, resi string) (Record, error)
	ListActiveShipments(ctx context.Context) ([]Record, error)
	SaveShipment(ctx context.Context, r Record) error
	UpdateStatus(ctx context.Context, resi string, status Status, at time.Time) error
}

// ArchiveLister is implemented by stores that keep delivered shipments.
type ArchiveLister interface {
	ListArchivedShipments(ctx context.Context) ([]Record, error)
}

// Metrics summarises the active shipments for the dashboard.
type Metrics struct {
	TotalPackages   int         `json:"total_packages"`
	Dispatched      int         `json:"dispatched"`
	InTransit       int         `json:"in_transit"`
	AwaitingPayment int         `json:"awaiting_payment"`
	Income          quote.Money `json:"income"`
}

// ComputeMetrics counts active records only; income is the total payable of
// settled ones.
func ComputeMetrics(records []Record) Metrics {
	var m Metrics
	for _, r := range records {
		if !r.Status.Active() {
			continue
		}
		m.TotalPackages++
		switch r.Status {
		case StatusLabelPrinted:
			m.Dispatched++
		case StatusInTransit:
			m.Dispatched++
			m.InTransit++
		case StatusAwaitingPayment:
			m.AwaitingPayment++
		}
		if r.Status.Settled() {
			m.Income += r.Total
		}
	}
	return m
}
