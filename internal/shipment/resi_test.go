package shipment

import (
	"testing"
	"time"
)

func TestResiGenerator_Format(t *testing.T) {
	g := NewResiGenerator(func() time.Time { return time.Unix(1767225600, 0) })
	if got := g.Next(); got != "LAJU-1767225600" {
		t.Fatalf("unexpected resi %q", got)
	}
}

func TestResiGenerator_UniqueWithinSameSecond(t *testing.T) {
	g := NewResiGenerator(func() time.Time { return time.Unix(100, 0) })
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		r := g.Next()
		if seen[r] {
			t.Fatalf("duplicate resi %q", r)
		}
		seen[r] = true
	}
	if got := g.Next(); got != "LAJU-150" {
		t.Fatalf("expected LAJU-150, got %q", got)
	}
}
