package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"laju/internal/quote"
)

// flexNumber accepts a JSON number or a string such as "2,5".
type flexNumber string

func (f *flexNumber) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexNumber(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexNumber(n.String())
	return nil
}

// amount is a rupiah value. Strings may use local separators ("1.000.000");
// JSON numbers are plain decimals.
type amount struct {
	text    string
	literal bool
}

func (a *amount) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		a.text = strings.TrimSpace(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	a.text, a.literal = n.String(), true
	return nil
}

func (a amount) money() (*quote.Money, error) {
	if a.text == "" {
		return nil, nil
	}
	parse := quote.ParseMoney
	if a.literal {
		parse = quote.MoneyFromDecimal
	}
	m, err := parse(a.text)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// quoteInput is the shipment request as operators submit it.
type quoteInput struct {
	ServiceTier        string     `json:"service_tier" validate:"required"`
	WeightKg           flexNumber `json:"weight_kg" validate:"required"`
	DeclaredValue      amount     `json:"declared_value"`
	InsuranceRequested bool       `json:"insurance_requested"`
	PaymentMethod      string     `json:"payment_method" validate:"required"`
}

func (in quoteInput) request() (quote.ShipmentRequest, error) {
	tier, err := quote.ParseTier(in.ServiceTier)
	if err != nil {
		return quote.ShipmentRequest{}, err
	}
	weight, err := quote.ParseWeightKg(string(in.WeightKg))
	if err != nil {
		return quote.ShipmentRequest{}, err
	}
	declared, err := in.DeclaredValue.money()
	if err != nil {
		return quote.ShipmentRequest{}, err
	}
	method, err := quote.ParsePaymentMethod(in.PaymentMethod)
	if err != nil {
		return quote.ShipmentRequest{}, err
	}
	return quote.ShipmentRequest{
		Tier:               tier,
		Weight:             weight,
		DeclaredValue:      declared,
		InsuranceRequested: in.InsuranceRequested,
		PaymentMethod:      method,
	}, nil
}

type quoteResponse struct {
	quote.Result
	Display map[string]string `json:"display"`
}

func newQuoteResponse(q quote.Result) quoteResponse {
	return quoteResponse{
		Result: q,
		Display: map[string]string{
			"base_fee":      q.BaseFee.String(),
			"insurance_fee": q.InsuranceFee.String(),
			"cod_surcharge": q.CODSurcharge.String(),
			"total_payable": q.Total.String(),
		},
	}
}

// handleGetQuote prices a request from query parameters without creating a
// draft.
func (s *Server) handleGetQuote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	in := quoteInput{
		ServiceTier:   q.Get("service_tier"),
		WeightKg:      flexNumber(strings.TrimSpace(q.Get("weight_kg"))),
		DeclaredValue: amount{text: strings.TrimSpace(q.Get("declared_value"))},
		PaymentMethod: q.Get("payment_method"),
	}
	if v := strings.TrimSpace(q.Get("insurance_requested")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeErrorJSON(w, http.StatusBadRequest, "invalid_input", "insurance_requested must be true or false")
			return
		}
		in.InsuranceRequested = b
	}
	if !s.validStruct(w, in) {
		return
	}
	req, err := in.request()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.Engine.Quote(req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newQuoteResponse(res))
}
