package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"laju/internal/events"
	"laju/internal/label"
	"laju/internal/logger"
	"laju/internal/quote"
	"laju/internal/shipment"
)

type draftResponse struct {
	Resi               string              `json:"resi"`
	State              shipment.State      `json:"state"`
	ServiceTier        quote.Tier          `json:"service_tier"`
	WeightGrams        int64               `json:"weight_g"`
	DeclaredValue      *quote.Money        `json:"declared_value,omitempty"`
	InsuranceRequested bool                `json:"insurance_requested"`
	PaymentMethod      quote.PaymentMethod `json:"payment_method"`
	Quote              quoteResponse       `json:"quote"`
	Printable          bool                `json:"printable"`
	Operator           string              `json:"operator"`
	Branch             string              `json:"branch"`
	PaymentRef         string              `json:"payment_ref,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
	PaidAt             *time.Time          `json:"paid_at,omitempty"`
	PrintedAt          *time.Time          `json:"printed_at,omitempty"`
}

func newDraftResponse(d shipment.Draft) draftResponse {
	return draftResponse{
		Resi:               d.Resi,
		State:              d.State,
		ServiceTier:        d.Request.Tier,
		WeightGrams:        d.Request.Weight.Grams(),
		DeclaredValue:      d.Request.DeclaredValue,
		InsuranceRequested: d.Request.InsuranceRequested,
		PaymentMethod:      d.Request.PaymentMethod,
		Quote:              newQuoteResponse(d.Quote),
		Printable:          d.Printable(),
		Operator:           d.Operator,
		Branch:             d.Branch,
		PaymentRef:         d.PaymentRef,
		CreatedAt:          d.CreatedAt,
		PaidAt:             d.PaidAt,
		PrintedAt:          d.PrintedAt,
	}
}

func resiParam(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "resi"))
}

// owner is the operator whose drafts the request may touch.
func owner(r *http.Request) string {
	return sessionFrom(r.Context()).Operator.Username
}

// errForeignDraft reads exactly like a missing draft.
var errForeignDraft = fmt.Errorf("%w", shipment.ErrDraftNotFound)

func checkOwner(d *shipment.Draft, owner string) error {
	if owner != "" && d.Operator != owner {
		return errForeignDraft
	}
	return nil
}

// loadDraft returns the draft for resi, rebuilding it from the stored record
// when it is not held in memory. An empty owner allows any operator's draft.
func (s *Server) loadDraft(ctx context.Context, resi, owner string) (shipment.Draft, error) {
	d, err := s.Drafts.Get(resi)
	if errors.Is(err, shipment.ErrDraftNotFound) {
		d, err = s.restoreDraft(ctx, resi)
	}
	if err != nil {
		return shipment.Draft{}, err
	}
	if err := checkOwner(&d, owner); err != nil {
		return shipment.Draft{}, err
	}
	return d, nil
}

func (s *Server) restoreDraft(ctx context.Context, resi string) (shipment.Draft, error) {
	rec, err := s.Shipments.GetShipment(ctx, resi)
	if errors.Is(err, shipment.ErrRecordNotFound) {
		return shipment.Draft{}, fmt.Errorf("%w: %s", shipment.ErrDraftNotFound, resi)
	}
	if err != nil {
		return shipment.Draft{}, err
	}
	return *shipment.DraftFromRecord(rec), nil
}

// updateDraft runs fn on the owner's draft under its lock. Drafts missing
// from the book are restored from storage first. Printed drafts are not kept
// in the book: fn runs on a copy and the draft is dropped once printed.
func (s *Server) updateDraft(ctx context.Context, resi, owner string, fn func(*shipment.Draft) error) (shipment.Draft, error) {
	guarded := func(d *shipment.Draft) error {
		if err := checkOwner(d, owner); err != nil {
			return err
		}
		return fn(d)
	}
	for attempt := 0; ; attempt++ {
		d, err := s.Drafts.Update(resi, guarded)
		if err == nil {
			if d.State == shipment.LabelPrinted {
				s.Drafts.Delete(resi)
			}
			return d, nil
		}
		if errors.Is(err, errForeignDraft) || !errors.Is(err, shipment.ErrDraftNotFound) || attempt > 0 {
			return shipment.Draft{}, err
		}

		restored, err := s.restoreDraft(ctx, resi)
		if err != nil {
			return shipment.Draft{}, err
		}
		if restored.State == shipment.LabelPrinted {
			if err := guarded(&restored); err != nil {
				return shipment.Draft{}, err
			}
			return restored, nil
		}
		s.Drafts.Adopt(&restored)
	}
}

// priced decodes and prices a quote body.
func (s *Server) priced(w http.ResponseWriter, r *http.Request) (quote.ShipmentRequest, quote.Result, bool) {
	var in quoteInput
	if !s.decodeJSON(w, r, &in) {
		return quote.ShipmentRequest{}, quote.Result{}, false
	}
	req, err := in.request()
	if err != nil {
		s.writeError(w, r, err)
		return quote.ShipmentRequest{}, quote.Result{}, false
	}
	res, err := s.Engine.Quote(req)
	if err != nil {
		s.writeError(w, r, err)
		return quote.ShipmentRequest{}, quote.Result{}, false
	}
	return req, res, true
}

// handleCreateDraft quotes a new shipment, assigns its resi and makes it the
// session's current draft.
func (s *Server) handleCreateDraft(w http.ResponseWriter, r *http.Request) {
	req, res, ok := s.priced(w, r)
	if !ok {
		return
	}
	sess := sessionFrom(r.Context())
	d := shipment.NewDraft(s.Resi.Next(), req, res, sess.Operator.Username, sess.Operator.Branch, s.Now())
	s.Drafts.Put(d)

	sess.DraftResi = d.Resi
	if err := s.Sessions.Update(r.Context(), sess); err != nil {
		s.Drafts.Delete(d.Resi)
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newDraftResponse(*d))
}

func (s *Server) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	d, err := s.loadDraft(r.Context(), resiParam(r), owner(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newDraftResponse(d))
}

func (s *Server) handleRequote(w http.ResponseWriter, r *http.Request) {
	req, res, ok := s.priced(w, r)
	if !ok {
		return
	}
	d, err := s.updateDraft(r.Context(), resiParam(r), owner(r), func(d *shipment.Draft) error {
		return d.Requote(req, res)
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newDraftResponse(d))
}

// handleCommit fixes the payment method and persists the shipment record.
// The draft only moves when the record is stored.
func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	now := s.Now()
	d, err := s.updateDraft(r.Context(), resiParam(r), owner(r), func(d *shipment.Draft) error {
		if err := d.Commit(now); err != nil {
			return err
		}
		return s.Shipments.SaveShipment(r.Context(), d.Record())
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.publish(r, events.ShipmentCommitted, d)
	writeJSON(w, http.StatusOK, newDraftResponse(d))
}

type markPaidRequest struct {
	Reference string `json:"reference" validate:"max=128"`
}

// handleMarkPaid is the operator's manual payment confirmation.
func (s *Server) handleMarkPaid(w http.ResponseWriter, r *http.Request) {
	var req markPaidRequest
	if r.ContentLength != 0 {
		if !s.decodeJSON(w, r, &req) {
			return
		}
	}
	ref := strings.TrimSpace(req.Reference)
	now := s.Now()
	d, err := s.updateDraft(r.Context(), resiParam(r), owner(r), func(d *shipment.Draft) error {
		return s.settle(r.Context(), d, ref, now)
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.paid(r, d)
	writeJSON(w, http.StatusOK, newDraftResponse(d))
}

// settle marks the draft paid and persists it.
func (s *Server) settle(ctx context.Context, d *shipment.Draft, ref string, now time.Time) error {
	if err := d.MarkPaid(ref, now); err != nil {
		return err
	}
	return s.Shipments.SaveShipment(ctx, d.Record())
}

func (s *Server) paid(r *http.Request, d shipment.Draft) {
	logger.FromContext(r.Context(), s.Logger).Info("draft paid",
		zap.String("resi", d.Resi), zap.String("reference", d.PaymentRef))
	s.publish(r, events.ShipmentPaid, d)
}

// handlePrint renders the label and moves the draft to its terminal state.
func (s *Server) handlePrint(w http.ResponseWriter, r *http.Request) {
	now := s.Now()
	var png []byte
	d, err := s.updateDraft(r.Context(), resiParam(r), owner(r), func(d *shipment.Draft) error {
		if err := d.PrintLabel(now); err != nil {
			return err
		}
		var err error
		if png, err = label.RenderLabel(labelData(*d)); err != nil {
			return err
		}
		return s.Shipments.SaveShipment(r.Context(), d.Record())
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.publish(r, events.ShipmentLabelPrinted, d)
	writePNG(w, png)
}

// handleLabel reprints the label of an already printed draft.
func (s *Server) handleLabel(w http.ResponseWriter, r *http.Request) {
	d, err := s.loadDraft(r.Context(), resiParam(r), owner(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if d.State != shipment.LabelPrinted {
		s.writeError(w, r, fmt.Errorf("%w: label not printed yet, state %s", shipment.ErrInvalidTransition, d.State))
		return
	}
	png, err := label.RenderLabel(labelData(d))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writePNG(w, png)
}

func (s *Server) handleBarcode(w http.ResponseWriter, r *http.Request) {
	d, err := s.loadDraft(r.Context(), resiParam(r), owner(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !d.Printable() {
		s.writeError(w, r, fmt.Errorf("%w: barcode blocked until paid, state %s", shipment.ErrInvalidTransition, d.State))
		return
	}
	png, err := label.RenderBarcode(d.Resi)
	if err != nil {
		if errors.Is(err, label.ErrEmptyPayload) {
			s.writeError(w, r, fmt.Errorf("%w: %v", quote.ErrInvalidInput, err))
			return
		}
		s.writeError(w, r, err)
		return
	}
	writePNG(w, png)
}

func labelData(d shipment.Draft) label.Data {
	lines := []string{
		"Layanan: " + string(d.Request.Tier),
		"Berat: " + d.Request.Weight.String(),
		"Bayar: " + string(d.Request.PaymentMethod),
		"Total: " + d.Quote.Total.String(),
		"Cabang: " + d.Branch,
		"Operator: " + d.Operator,
	}
	if d.PaymentRef != "" {
		lines = append(lines, "Ref: "+d.PaymentRef)
	}
	return label.Data{Heading: "LAJU", Resi: d.Resi, Lines: lines}
}
