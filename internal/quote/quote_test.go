package quote

import (
	"errors"
	"math/rand"
	"testing"
)

func money(m Money) *Money { return &m }

func TestBaseFee_MatchesRateTable(t *testing.T) {
	cases := []struct {
		tier Tier
		kg   int64
		want Money
	}{
		{Express, 1, Rupiah(17_000)},
		{Express, 2, Rupiah(34_000)},
		{Cargo, 10, Rupiah(40_000)},
		{Food, 3, Rupiah(15_000)},
	}
	for _, c := range cases {
		got, err := ComputeBaseFee(c.tier, Kilograms(c.kg))
		if err != nil {
			t.Fatalf("%s %dkg: unexpected error: %v", c.tier, c.kg, err)
		}
		if got != c.want {
			t.Fatalf("%s %dkg: expected %s, got %s", c.tier, c.kg, c.want, got)
		}
	}
}

func TestBaseFee_LinearInWeight(t *testing.T) {
	for _, tier := range Tiers {
		one, err := ComputeBaseFee(tier, Weight(1))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, g := range []int64{1, 250, 1000, 2500, 12_345, 999_999} {
			got, err := ComputeBaseFee(tier, Weight(g))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != Money(g)*one {
				t.Fatalf("%s %dg: expected %s, got %s", tier, g, Money(g)*one, got)
			}
		}
	}
}

func TestBaseFee_NonPositiveWeight(t *testing.T) {
	for _, w := range []Weight{0, -1, Kilograms(-3)} {
		if _, err := ComputeBaseFee(Cargo, w); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("weight %d: expected ErrInvalidInput, got %v", w, err)
		}
	}
}

func TestInsuranceFee_NotRequestedIsZero(t *testing.T) {
	for _, tier := range Tiers {
		for _, dv := range []*Money{nil, money(0), money(Rupiah(1_000_000)), money(-5)} {
			got, err := ComputeInsuranceFee(tier, dv, false)
			if err != nil || got != 0 {
				t.Fatalf("%s: expected 0 and no error, got %s, %v", tier, got, err)
			}
		}
	}
}

func TestInsuranceFee_Rates(t *testing.T) {
	dv := Rupiah(1_000_000)
	cases := []struct {
		tier Tier
		want Money
	}{
		{Express, Rupiah(5_000)},
		{Cargo, Rupiah(3_000)},
		{Food, Rupiah(5_000)},
	}
	for _, c := range cases {
		got, err := ComputeInsuranceFee(c.tier, &dv, true)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != c.want {
			t.Fatalf("%s: expected %s, got %s", c.tier, c.want, got)
		}
	}
	// Food is flat regardless of value.
	if got, _ := ComputeInsuranceFee(Food, money(0), true); got != Rupiah(5_000) {
		t.Fatalf("food flat fee: got %s", got)
	}
}

func TestInsuranceFee_RequestedNeedsDeclaredValue(t *testing.T) {
	if _, err := ComputeInsuranceFee(Express, nil, true); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for missing value, got %v", err)
	}
	if _, err := ComputeInsuranceFee(Cargo, money(-1), true); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for negative value, got %v", err)
	}
}

func TestInsuranceFee_RoundsHalfUp(t *testing.T) {
	// 0.3% of Rp 1.234,50 = 370.35 cents -> 370
	got, err := ComputeInsuranceFee(Cargo, money(123_450), true)
	if err != nil || got != 370 {
		t.Fatalf("expected 370 cents, got %d, %v", got, err)
	}
	// 0.5% of 101 cents = 0.505 -> 1
	got, err = ComputeInsuranceFee(Express, money(101), true)
	if err != nil || got != 1 {
		t.Fatalf("expected 1 cent, got %d, %v", got, err)
	}
}

func TestCODSurcharge_Boundary(t *testing.T) {
	got, err := ComputeCODSurcharge(COD, Rupiah(100_000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != Rupiah(2_500) {
		t.Fatalf("100.000 should take 2.5%%, got %s", got)
	}

	below := Rupiah(100_000) - 1 // Rp 99.999,99
	got, err = ComputeCODSurcharge(COD, below)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 5% of 9,999,999 cents = 499,999.95 -> 500,000
	if got != 500_000 {
		t.Fatalf("99.999,99 should take 5%%, got %s", got)
	}
}

func TestCODSurcharge_PrepaidAlwaysZero(t *testing.T) {
	for _, sub := range []Money{0, 1, Rupiah(50_000), Rupiah(100_000), Rupiah(10_000_000)} {
		got, err := ComputeCODSurcharge(Prepaid, sub)
		if err != nil || got != 0 {
			t.Fatalf("prepaid %s: expected 0, got %s, %v", sub, got, err)
		}
	}
}

func TestCODSurcharge_UnknownMethod(t *testing.T) {
	if _, err := ComputeCODSurcharge(PaymentMethod("Transfer"), Rupiah(10)); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestComputeQuote_ExpressPrepaid(t *testing.T) {
	res, err := ComputeQuote(ShipmentRequest{
		Tier:          Express,
		Weight:        Kilograms(2),
		PaymentMethod: Prepaid,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := Result{BaseFee: Rupiah(34_000), Total: Rupiah(34_000)}
	if res != want {
		t.Fatalf("expected %+v, got %+v", want, res)
	}
}

func TestComputeQuote_CargoInsuredCOD(t *testing.T) {
	res, err := ComputeQuote(ShipmentRequest{
		Tier:               Cargo,
		Weight:             Kilograms(10),
		DeclaredValue:      money(Rupiah(1_000_000)),
		InsuranceRequested: true,
		PaymentMethod:      COD,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := Result{
		BaseFee:      Rupiah(40_000),
		InsuranceFee: Rupiah(3_000),
		CODSurcharge: Rupiah(2_150),
		Total:        Rupiah(45_150),
	}
	if res != want {
		t.Fatalf("expected %+v, got %+v", want, res)
	}
	if res.Subtotal() != Rupiah(43_000) {
		t.Fatalf("unexpected subtotal %s", res.Subtotal())
	}
}

func TestComputeQuote_InvalidInputHasNoResult(t *testing.T) {
	bad := []ShipmentRequest{
		{Tier: Express, Weight: 0, PaymentMethod: COD},
		{Tier: Express, Weight: -1000, PaymentMethod: Prepaid},
		{Tier: "Boat", Weight: 1000, PaymentMethod: COD},
		{Tier: Cargo, Weight: 1000, PaymentMethod: "Barter"},
		{Tier: Cargo, Weight: 1000, PaymentMethod: COD, InsuranceRequested: true},
		{Tier: Cargo, Weight: 1000, PaymentMethod: COD, InsuranceRequested: true, DeclaredValue: money(-1)},
	}
	for i, req := range bad {
		res, err := ComputeQuote(req)
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("case %d: expected ErrInvalidInput, got %v", i, err)
		}
		if res != (Result{}) {
			t.Fatalf("case %d: expected zero result, got %+v", i, res)
		}
	}
}

func TestComputeQuote_TotalIsSumOfParts(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	methods := []PaymentMethod{COD, Prepaid}
	for i := 0; i < 2000; i++ {
		req := ShipmentRequest{
			Tier:               Tiers[rng.Intn(len(Tiers))],
			Weight:             Weight(1 + rng.Int63n(500_000)),
			InsuranceRequested: rng.Intn(2) == 0,
			PaymentMethod:      methods[rng.Intn(2)],
		}
		if req.InsuranceRequested {
			req.DeclaredValue = money(Money(rng.Int63n(int64(Rupiah(50_000_000)))))
		}
		res, err := ComputeQuote(req)
		if err != nil {
			t.Fatalf("unexpected error for %+v: %v", req, err)
		}
		if res.Total != res.BaseFee+res.InsuranceFee+res.CODSurcharge {
			t.Fatalf("total drift for %+v: %+v", req, res)
		}
		if res.BaseFee < 0 || res.InsuranceFee < 0 || res.CODSurcharge < 0 {
			t.Fatalf("negative component for %+v: %+v", req, res)
		}
		if req.PaymentMethod == Prepaid && res.CODSurcharge != 0 {
			t.Fatalf("prepaid with surcharge: %+v", res)
		}
		again, _ := ComputeQuote(req)
		if again != res {
			t.Fatalf("non-deterministic quote for %+v", req)
		}
	}
}

func TestNewEngine_CustomRates(t *testing.T) {
	r := DefaultRates()
	r.PerKg[Express] = Rupiah(20_000)
	eng, err := NewEngine(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res, err := eng.Quote(ShipmentRequest{Tier: Express, Weight: Kilograms(1), PaymentMethod: Prepaid})
	if err != nil || res.Total != Rupiah(20_000) {
		t.Fatalf("expected Rp 20.000, got %s, %v", res.Total, err)
	}
	// the package default is untouched
	if got, _ := ComputeBaseFee(Express, Kilograms(1)); got != Rupiah(17_000) {
		t.Fatalf("default tariff mutated: %s", got)
	}
}

func TestNewEngine_RejectsMissingTier(t *testing.T) {
	r := DefaultRates()
	delete(r.PerKg, Food)
	if _, err := NewEngine(r); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
