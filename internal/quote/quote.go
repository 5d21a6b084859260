package quote

// Engine prices a shipment request.
type Engine interface {
	Quote(req ShipmentRequest) (Result, error)
}

// Rates is the tariff an Engine prices with. Tiers missing from
// InsuranceBasisPoints pay FlatInsurance.
type Rates struct {
	PerKg                map[Tier]Money
	InsuranceBasisPoints map[Tier]int64
	FlatInsurance        Money
	CODThreshold         Money
	CODBelowBasisPoints  int64
	CODAboveBasisPoints  int64
}

// DefaultRates is the published Laju tariff.
func DefaultRates() Rates {
	return Rates{
		PerKg: map[Tier]Money{
			Express: Rupiah(17_000),
			Cargo:   Rupiah(4_000),
			Food:    Rupiah(5_000),
		},
		InsuranceBasisPoints: map[Tier]int64{
			Express: 50, // 0.5%
			Cargo:   30, // 0.3%
		},
		FlatInsurance:       Rupiah(5_000),
		CODThreshold:        Rupiah(100_000),
		CODBelowBasisPoints: 500, // 5%
		CODAboveBasisPoints: 250, // 2.5%
	}
}

func (r Rates) validate() error {
	for _, t := range Tiers {
		rate, ok := r.PerKg[t]
		if !ok || rate <= 0 {
			return invalidf("per-kg rate for %s must be positive", t)
		}
	}
	for t, bp := range r.InsuranceBasisPoints {
		if bp < 0 || bp > 10_000 {
			return invalidf("insurance rate for %s out of range", t)
		}
	}
	if r.FlatInsurance < 0 || r.CODThreshold < 0 {
		return invalidf("flat insurance and COD threshold must not be negative")
	}
	if r.CODBelowBasisPoints < 0 || r.CODBelowBasisPoints > 10_000 ||
		r.CODAboveBasisPoints < 0 || r.CODAboveBasisPoints > 10_000 {
		return invalidf("COD rates out of range")
	}
	return nil
}

// Standard is the table-driven engine.
type Standard struct {
	rates Rates
}

// NewStandard returns an engine using DefaultRates.
func NewStandard() *Standard { return &Standard{rates: DefaultRates()} }

// NewEngine returns an engine over a custom tariff.
func NewEngine(r Rates) (*Standard, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	return &Standard{rates: r}, nil
}

// Rates returns a copy of the engine tariff.
func (s *Standard) Rates() Rates {
	out := s.rates
	out.PerKg = make(map[Tier]Money, len(s.rates.PerKg))
	for k, v := range s.rates.PerKg {
		out.PerKg[k] = v
	}
	out.InsuranceBasisPoints = make(map[Tier]int64, len(s.rates.InsuranceBasisPoints))
	for k, v := range s.rates.InsuranceBasisPoints {
		out.InsuranceBasisPoints[k] = v
	}
	return out
}

// BaseFee is rate[tier] × weight, rounded half up to the cent.
func (s *Standard) BaseFee(tier Tier, w Weight) (Money, error) {
	rate, ok := s.rates.PerKg[tier]
	if !ok {
		return 0, invalidf("unknown service tier %q", tier)
	}
	if w <= 0 {
		return 0, invalidf("weight must be positive, got %d g", w)
	}
	if w > maxWeightGram {
		return 0, invalidf("weight %s is too large", w)
	}
	return Money((int64(rate)*int64(w) + 500) / 1000), nil
}

// InsuranceFee is zero unless requested; a requested insurance needs a
// non-negative declared value.
func (s *Standard) InsuranceFee(tier Tier, declared *Money, requested bool) (Money, error) {
	if !requested {
		return 0, nil
	}
	if declared == nil {
		return 0, invalidf("declared value is required when insurance is requested")
	}
	if *declared < 0 {
		return 0, invalidf("declared value must not be negative")
	}
	if *declared > Rupiah(maxRupiah) {
		return 0, invalidf("declared value %s is too large", *declared)
	}
	if bp, ok := s.rates.InsuranceBasisPoints[tier]; ok {
		return percentOf(*declared, bp), nil
	}
	return s.rates.FlatInsurance, nil
}

// CODSurcharge applies to COD only. The threshold comparison is strict, so a
// subtotal equal to the threshold takes the lower rate.
func (s *Standard) CODSurcharge(method PaymentMethod, subtotal Money) (Money, error) {
	switch method {
	case Prepaid:
		return 0, nil
	case COD:
	default:
		return 0, invalidf("unknown payment method %q", method)
	}
	if subtotal < 0 {
		return 0, invalidf("subtotal must not be negative")
	}
	if subtotal < s.rates.CODThreshold {
		return percentOf(subtotal, s.rates.CODBelowBasisPoints), nil
	}
	return percentOf(subtotal, s.rates.CODAboveBasisPoints), nil
}

// Quote runs base fee, insurance and surcharge in that order.
func (s *Standard) Quote(req ShipmentRequest) (Result, error) {
	if _, ok := s.rates.PerKg[req.Tier]; !ok {
		return Result{}, invalidf("unknown service tier %q", req.Tier)
	}
	if req.PaymentMethod != COD && req.PaymentMethod != Prepaid {
		return Result{}, invalidf("unknown payment method %q", req.PaymentMethod)
	}
	base, err := s.BaseFee(req.Tier, req.Weight)
	if err != nil {
		return Result{}, err
	}
	ins, err := s.InsuranceFee(req.Tier, req.DeclaredValue, req.InsuranceRequested)
	if err != nil {
		return Result{}, err
	}
	cod, err := s.CODSurcharge(req.PaymentMethod, base+ins)
	if err != nil {
		return Result{}, err
	}
	return Result{
		BaseFee:      base,
		InsuranceFee: ins,
		CODSurcharge: cod,
		Total:        base + ins + cod,
	}, nil
}

var standard = NewStandard()

// ComputeBaseFee prices weight with the default tariff.
func ComputeBaseFee(tier Tier, w Weight) (Money, error) { return standard.BaseFee(tier, w) }

// ComputeInsuranceFee prices insurance with the default tariff.
func ComputeInsuranceFee(tier Tier, declared *Money, requested bool) (Money, error) {
	return standard.InsuranceFee(tier, declared, requested)
}

// ComputeCODSurcharge prices the COD admin fee with the default tariff.
func ComputeCODSurcharge(method PaymentMethod, subtotal Money) (Money, error) {
	return standard.CODSurcharge(method, subtotal)
}

// ComputeQuote prices a full request with the default tariff.
func ComputeQuote(req ShipmentRequest) (Result, error) { return standard.Quote(req) }
