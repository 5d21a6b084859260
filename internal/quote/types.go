package quote

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidInput is returned for any request the engine cannot price.
var ErrInvalidInput = errors.New("invalid input")

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Upper bounds keeping every intermediate product inside int64.
const (
	maxRupiah     = 1_000_000_000_000 // Rp 1 trillion
	maxWeightGram = 100_000_000       // 100 tonnes
)

// Tier is the service class of a shipment.
type Tier string

const (
	Express Tier = "Express"
	Cargo   Tier = "Cargo"
	Food    Tier = "Food"
)

// Tiers lists the service classes in display order.
var Tiers = []Tier{Express, Cargo, Food}

// ParseTier is case-insensitive and accepts "Makanan" for Food.
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "express":
		return Express, nil
	case "cargo":
		return Cargo, nil
	case "food", "makanan":
		return Food, nil
	}
	return "", invalidf("unknown service tier %q", s)
}

// PaymentMethod is how the shipment is settled.
type PaymentMethod string

const (
	COD     PaymentMethod = "COD"
	Prepaid PaymentMethod = "Prepaid"
)

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cod", "cash on delivery":
		return COD, nil
	case "prepaid", "non-cod", "noncod":
		return Prepaid, nil
	}
	return "", invalidf("unknown payment method %q", s)
}

// Weight is a package weight in whole grams.
type Weight int64

// Kilograms is a convenience constructor for whole kilograms.
func Kilograms(n int64) Weight { return Weight(n * 1000) }

// WeightFromKg rounds a kilogram value to the nearest gram.
func WeightFromKg(kg float64) (Weight, error) {
	if math.IsNaN(kg) || math.IsInf(kg, 0) {
		return 0, invalidf("weight is not a number")
	}
	g := math.Round(kg * 1000)
	if g > maxWeightGram {
		return 0, invalidf("weight %.3f kg is too large", kg)
	}
	return Weight(g), nil
}

// ParseWeightKg reads a kilogram value such as "2", "2.5" or "2,5".
func ParseWeightKg(s string) (Weight, error) {
	v := strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	kg, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, invalidf("weight %q is not a number", s)
	}
	return WeightFromKg(kg)
}

func (w Weight) Grams() int64 { return int64(w) }

func (w Weight) Kg() float64 { return float64(w) / 1000 }

func (w Weight) String() string {
	return strconv.FormatFloat(w.Kg(), 'f', -1, 64) + " kg"
}

// ShipmentRequest is the input to a quote. DeclaredValue is nil when the
// sender did not declare one.
type ShipmentRequest struct {
	Tier               Tier
	Weight             Weight
	DeclaredValue      *Money
	InsuranceRequested bool
	PaymentMethod      PaymentMethod
}

// Result is the fee breakdown of one quote.
type Result struct {
	BaseFee      Money `json:"base_fee"`
	InsuranceFee Money `json:"insurance_fee"`
	CODSurcharge Money `json:"cod_surcharge"`
	Total        Money `json:"total_payable"`
}

// Subtotal is the amount the COD surcharge is computed on.
func (r Result) Subtotal() Money { return r.BaseFee + r.InsuranceFee }
