package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"laju/internal/logger"
	"laju/internal/payment"
	"laju/internal/shipment"
)

const maxWebhookBody = 1 << 20

type webhookResponse struct {
	Resi      string         `json:"resi,omitempty"`
	Reference string         `json:"reference,omitempty"`
	Status    string         `json:"status"`
	State     shipment.State `json:"state,omitempty"`
}

// handleWebhook ingests payment confirmations. The body signature is checked
// before anything is parsed; a paid confirmation releases the draft's print
// gate.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	source := chi.URLParam(r, "source")
	if strings.TrimSpace(source) == "" {
		writeErrorJSON(w, http.StatusBadRequest, "invalid_request", "source required")
		return
	}
	verifier, secret, ok := payment.NewVerifier(source, s.WebhookSecrets)
	if !ok {
		writeErrorJSON(w, http.StatusNotFound, "unsupported_source", "unsupported source")
		return
	}
	if secret == "" {
		writeErrorJSON(w, http.StatusUnauthorized, "secret_not_configured", "webhook secret not configured")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "read_error", "read error")
		return
	}
	c, err := verifier.Verify(body, r.Header)
	switch {
	case err == nil:
	case errors.Is(err, payment.ErrMissingSignature):
		writeErrorJSON(w, http.StatusUnauthorized, "missing_signature", "missing signature")
		return
	case errors.Is(err, payment.ErrInvalidSignatureFormat):
		writeErrorJSON(w, http.StatusUnauthorized, "invalid_signature_format", "invalid signature format")
		return
	case errors.Is(err, payment.ErrSignatureMismatch):
		writeErrorJSON(w, http.StatusUnauthorized, "signature_mismatch", "signature mismatch")
		return
	case errors.Is(err, payment.ErrIgnored):
		writeJSON(w, http.StatusAccepted, webhookResponse{Status: "ignored"})
		return
	case errors.Is(err, payment.ErrMissingResi):
		writeErrorJSON(w, http.StatusBadRequest, "invalid_input", "resi required")
		return
	default:
		writeErrorJSON(w, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}

	log := logger.FromContext(r.Context(), s.Logger).With(
		zap.String("source", c.Source), zap.String("resi", c.Resi), zap.String("reference", c.Reference))
	if c.Status != payment.StatusPaid {
		log.Info("payment not settled", zap.String("status", c.Status))
		writeJSON(w, http.StatusAccepted, webhookResponse{Resi: c.Resi, Reference: c.Reference, Status: "ignored"})
		return
	}

	// Providers retry deliveries; a repeat of the applied reference is a no-op.
	redelivered := false
	now := s.Now()
	d, err := s.updateDraft(r.Context(), c.Resi, "", func(d *shipment.Draft) error {
		if c.Reference != "" && d.Printable() && d.PaymentRef == c.Reference {
			redelivered = true
			return nil
		}
		return s.settle(r.Context(), d, c.Reference, now)
	})
	if err != nil {
		log.Warn("payment confirmation rejected", zap.Error(err))
		s.writeError(w, r, err)
		return
	}
	if !redelivered {
		s.paid(r, d)
	}
	writeJSON(w, http.StatusOK, webhookResponse{Resi: d.Resi, Reference: d.PaymentRef, Status: payment.StatusPaid, State: d.State})
}
