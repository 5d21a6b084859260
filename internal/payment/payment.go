package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

// Status of a payment confirmation.
const (
	StatusPaid   = "paid"
	StatusFailed = "failed"
)

var (
	ErrMissingSignature       = errors.New("missing signature")
	ErrInvalidSignatureFormat = errors.New("invalid signature format")
	ErrSignatureMismatch      = errors.New("signature mismatch")
	ErrMissingResi            = errors.New("missing resi")
	ErrMalformedPayload       = errors.New("malformed payload")
	// ErrIgnored marks well-formed events the service does not act on.
	ErrIgnored = errors.New("event ignored")
)

// Confirmation is a provider payment notification normalized to a draft.
type Confirmation struct {
	Source    string `json:"source"`
	Resi      string `json:"resi"`
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

// Verifier authenticates a webhook body and maps it to a Confirmation.
type Verifier interface {
	Verify(body []byte, header http.Header) (Confirmation, error)
}

// NewVerifier selects a verifier for source. ok is false for unsupported
// sources.
func NewVerifier(source string, secrets map[string]string) (v Verifier, secret string, ok bool) {
	source = strings.ToLower(strings.TrimSpace(source))
	secret = strings.TrimSpace(secrets[source])
	switch source {
	case "bank":
		return &HMACVerifier{Source: source, Secret: secret}, secret, true
	case "stripe":
		return &StripeVerifier{Secret: secret}, secret, true
	}
	return nil, "", false
}

// HMACVerifier checks a hex HMAC-SHA256 of the body in X-Signature, with an
// optional "sha256=" prefix.
type HMACVerifier struct {
	Source string
	Secret string
}

type bankPayload struct {
	Resi      string `json:"resi"`
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

func (h *HMACVerifier) Verify(body []byte, header http.Header) (Confirmation, error) {
	sig := strings.TrimSpace(header.Get("X-Signature"))
	sig = strings.TrimPrefix(sig, "sha256=")
	if sig == "" {
		return Confirmation{}, ErrMissingSignature
	}
	provided, err := hex.DecodeString(sig)
	if err != nil {
		return Confirmation{}, ErrInvalidSignatureFormat
	}
	mac := hmac.New(sha256.New, []byte(h.Secret))
	mac.Write(body)
	if !hmac.Equal(mac.Sum(nil), provided) {
		return Confirmation{}, ErrSignatureMismatch
	}

	var p bankPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return Confirmation{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	c := Confirmation{
		Source:    h.Source,
		Resi:      strings.TrimSpace(p.Resi),
		Reference: strings.TrimSpace(p.Reference),
		Status:    normalizeStatus(p.Status),
	}
	if c.Resi == "" {
		return Confirmation{}, ErrMissingResi
	}
	return c, nil
}

func normalizeStatus(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "paid", "success", "succeeded", "settlement", "lunas":
		return StatusPaid
	}
	return StatusFailed
}

// StripeVerifier accepts payment_intent events carrying the resi in the
// intent metadata.
type StripeVerifier struct {
	Secret string
}

func (s *StripeVerifier) Verify(body []byte, header http.Header) (Confirmation, error) {
	sig := header.Get("Stripe-Signature")
	if strings.TrimSpace(sig) == "" {
		return Confirmation{}, ErrMissingSignature
	}
	event, err := webhook.ConstructEventWithOptions(body, sig, s.Secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Confirmation{}, fmt.Errorf("%w: %v", ErrSignatureMismatch, err)
	}

	var status string
	switch event.Type {
	case "payment_intent.succeeded":
		status = StatusPaid
	case "payment_intent.payment_failed":
		status = StatusFailed
	default:
		return Confirmation{}, ErrIgnored
	}
	if event.Data == nil {
		return Confirmation{}, ErrMalformedPayload
	}
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return Confirmation{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	resi := strings.TrimSpace(pi.Metadata["resi"])
	if resi == "" {
		return Confirmation{}, ErrMissingResi
	}
	return Confirmation{Source: "stripe", Resi: resi, Reference: pi.ID, Status: status}, nil
}
