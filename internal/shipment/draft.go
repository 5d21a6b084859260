package shipment

import (
	"errors"
	"fmt"
	"time"

	"laju/internal/quote"
)

// State is the payment gating state of a draft.
type State string

const (
	Quoted          State = "quoted"
	AwaitingPayment State = "awaiting_payment"
	Paid            State = "paid"
	LabelPrinted    State = "label_printed"
)

// ErrInvalidTransition is returned when an action is not allowed in the
// draft's current state.
var ErrInvalidTransition = errors.New("invalid state transition")

func transitionError(action string, from State) error {
	return fmt.Errorf("%w: cannot %s while %s", ErrInvalidTransition, action, from)
}

// Draft is one shipment being registered by an operator.
type Draft struct {
	Resi       string
	Request    quote.ShipmentRequest
	Quote      quote.Result
	State      State
	Operator   string
	Branch     string
	CreatedAt  time.Time
	PaidAt     *time.Time
	PrintedAt  *time.Time
	PaymentRef string
}

// NewDraft starts a draft in Quoted.
func NewDraft(resi string, req quote.ShipmentRequest, q quote.Result, operator, branch string, now time.Time) *Draft {
	return &Draft{
		Resi:      resi,
		Request:   req,
		Quote:     q,
		State:     Quoted,
		Operator:  operator,
		Branch:    branch,
		CreatedAt: now.UTC(),
	}
}

// Requote replaces the request and its quote. Only allowed before commit.
func (d *Draft) Requote(req quote.ShipmentRequest, q quote.Result) error {
	if d.State != Quoted {
		return transitionError("requote", d.State)
	}
	d.Request = req
	d.Quote = q
	return nil
}

// Commit fixes the payment method. COD drafts are payable on delivery and
// go straight to Paid; Prepaid drafts wait for a payment confirmation.
func (d *Draft) Commit(now time.Time) error {
	if d.State != Quoted {
		return transitionError("commit", d.State)
	}
	switch d.Request.PaymentMethod {
	case quote.COD:
		t := now.UTC()
		d.State = Paid
		d.PaidAt = &t
	case quote.Prepaid:
		d.State = AwaitingPayment
	default:
		return fmt.Errorf("%w: unknown payment method %q", quote.ErrInvalidInput, d.Request.PaymentMethod)
	}
	return nil
}

// MarkPaid confirms a prepaid payment.
func (d *Draft) MarkPaid(ref string, now time.Time) error {
	if d.State != AwaitingPayment {
		return transitionError("mark as paid", d.State)
	}
	t := now.UTC()
	d.State = Paid
	d.PaidAt = &t
	d.PaymentRef = ref
	return nil
}

// PrintLabel moves a paid draft to its terminal state.
func (d *Draft) PrintLabel(now time.Time) error {
	if d.State != Paid {
		return transitionError("print label", d.State)
	}
	t := now.UTC()
	d.State = LabelPrinted
	d.PrintedAt = &t
	return nil
}

// Printable reports whether the label and barcode may be produced.
func (d *Draft) Printable() bool {
	return d.State == Paid || d.State == LabelPrinted
}

// Record projects the draft into its persisted row.
func (d *Draft) Record() Record {
	r := Record{
		Resi:               d.Resi,
		Tier:               d.Request.Tier,
		Weight:             d.Request.Weight,
		InsuranceRequested: d.Request.InsuranceRequested,
		PaymentMethod:      d.Request.PaymentMethod,
		BaseFee:            d.Quote.BaseFee,
		InsuranceFee:       d.Quote.InsuranceFee,
		CODSurcharge:       d.Quote.CODSurcharge,
		Total:              d.Quote.Total,
		Status:             statusFor(d.State),
		Branch:             d.Branch,
		Operator:           d.Operator,
		PaymentRef:         d.PaymentRef,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.CreatedAt,
	}
	if d.Request.DeclaredValue != nil {
		r.DeclaredValue = *d.Request.DeclaredValue
	}
	if d.PaidAt != nil {
		r.UpdatedAt = *d.PaidAt
	}
	if d.PrintedAt != nil {
		r.UpdatedAt = *d.PrintedAt
	}
	return r
}

// DraftFromRecord rebuilds a draft from its persisted row. Shipments past
// printing come back as LabelPrinted. Records carry one timestamp, so the
// paid and printed times are taken from UpdatedAt.
func DraftFromRecord(r Record) *Draft {
	d := &Draft{
		Resi: r.Resi,
		Request: quote.ShipmentRequest{
			Tier:               r.Tier,
			Weight:             r.Weight,
			InsuranceRequested: r.InsuranceRequested,
			PaymentMethod:      r.PaymentMethod,
		},
		Quote: quote.Result{
			BaseFee:      r.BaseFee,
			InsuranceFee: r.InsuranceFee,
			CODSurcharge: r.CODSurcharge,
			Total:        r.Total,
		},
		Operator:   r.Operator,
		Branch:     r.Branch,
		PaymentRef: r.PaymentRef,
		CreatedAt:  r.CreatedAt.UTC(),
	}
	if r.InsuranceRequested || r.DeclaredValue != 0 {
		v := r.DeclaredValue
		d.Request.DeclaredValue = &v
	}
	at := r.UpdatedAt.UTC()
	switch r.Status {
	case StatusAwaitingPayment:
		d.State = AwaitingPayment
	case StatusPaid:
		d.State = Paid
		d.PaidAt = &at
	case StatusLabelPrinted, StatusInTransit, StatusDelivered:
		d.State = LabelPrinted
		d.PaidAt = &at
		d.PrintedAt = &at
	default:
		d.State = Quoted
	}
	return d
}

func statusFor(s State) Status {
	switch s {
	case AwaitingPayment:
		return StatusAwaitingPayment
	case Paid:
		return StatusPaid
	case LabelPrinted:
		return StatusLabelPrinted
	}
	return StatusCreated
}
