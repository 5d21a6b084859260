package quote

import (
	"fmt"
	"strconv"
	"strings"
)

// Money is an amount in cents (1/100 rupiah).
type Money int64

const centsPerRupiah = 100

// Rupiah converts whole rupiah to Money.
func Rupiah(n int64) Money { return Money(n * centsPerRupiah) }

// Cents returns the raw minor-unit value.
func (m Money) Cents() int64 { return int64(m) }

// String renders Indonesian notation: "Rp 45.150" or "Rp 99.999,99".
func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	whole := strconv.FormatInt(v/centsPerRupiah, 10)
	var b strings.Builder
	for i, c := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(c)
	}
	out := sign + "Rp " + b.String()
	if frac := v % centsPerRupiah; frac != 0 {
		out += fmt.Sprintf(",%02d", frac)
	}
	return out
}

// ParseMoney reads a rupiah amount. It accepts an optional "Rp" prefix and
// both Indonesian (1.000.000,50) and English (1,000,000.50) separators. A
// single separator followed by exactly three digits is a thousands separator.
func ParseMoney(s string) (Money, error) {
	raw := strings.TrimSpace(s)
	neg := false
	if strings.HasPrefix(raw, "-") {
		neg = true
		raw = strings.TrimSpace(raw[1:])
	}
	raw = strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(raw, "Rp"), "rp"))
	raw = strings.ReplaceAll(raw, " ", "")
	if raw == "" {
		return 0, invalidf("empty amount")
	}

	intPart, fracPart := raw, ""
	lastDot := strings.LastIndex(raw, ".")
	lastComma := strings.LastIndex(raw, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		sep := lastDot
		if lastComma > lastDot {
			sep = lastComma
		}
		intPart, fracPart = raw[:sep], raw[sep+1:]
	case lastDot >= 0 || lastComma >= 0:
		sep, ch := lastDot, "."
		if lastComma >= 0 {
			sep, ch = lastComma, ","
		}
		tail := raw[sep+1:]
		if strings.Count(raw, ch) == 1 && len(tail) != 3 {
			intPart, fracPart = raw[:sep], tail
		}
	}
	intPart = strings.NewReplacer(".", "", ",", "").Replace(intPart)
	if intPart == "" {
		intPart = "0"
	}
	if len(fracPart) > 2 {
		return 0, invalidf("amount %q has more than two decimals", s)
	}
	whole, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil || whole < 0 {
		return 0, invalidf("amount %q is not a number", s)
	}
	if whole > maxRupiah {
		return 0, invalidf("amount %q is too large", s)
	}
	var frac int64
	if fracPart != "" {
		for len(fracPart) < 2 {
			fracPart += "0"
		}
		frac, err = strconv.ParseInt(fracPart, 10, 64)
		if err != nil || frac < 0 {
			return 0, invalidf("amount %q is not a number", s)
		}
	}
	m := Money(whole*centsPerRupiah + frac)
	if neg {
		m = -m
	}
	return m, nil
}

// MoneyFromDecimal reads a plain decimal rupiah literal such as "1000000"
// or "99999.99", the form JSON numbers arrive in. Thousands separators are
// not accepted.
func MoneyFromDecimal(s string) (Money, error) {
	raw := strings.TrimSpace(s)
	neg := strings.HasPrefix(raw, "-")
	raw = strings.TrimPrefix(raw, "-")
	whole, frac, _ := strings.Cut(raw, ".")
	if whole == "" || len(frac) > 2 || strings.ContainsAny(raw, "eE+,") {
		return 0, invalidf("amount %q is not a plain decimal with at most two places", s)
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || w < 0 {
		return 0, invalidf("amount %q is not a number", s)
	}
	if w > maxRupiah {
		return 0, invalidf("amount %q is too large", s)
	}
	var f int64
	if frac != "" {
		for len(frac) < 2 {
			frac += "0"
		}
		if f, err = strconv.ParseInt(frac, 10, 64); err != nil || f < 0 {
			return 0, invalidf("amount %q is not a number", s)
		}
	}
	m := Money(w*centsPerRupiah + f)
	if neg {
		m = -m
	}
	return m, nil
}

// percentOf applies a rate in basis points, rounding half up to the cent.
func percentOf(m Money, basisPoints int64) Money {
	return Money((int64(m)*basisPoints + 5000) / 10000)
}
