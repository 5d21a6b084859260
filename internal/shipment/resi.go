package shipment

import (
	"strconv"
	"sync"
	"time"
)

// ResiPrefix starts every tracking number.
const ResiPrefix = "LAJU-"

// ResiGenerator issues tracking numbers of the form LAJU-<unix seconds>.
// Within one process numbers are strictly increasing: when the clock has not
// moved past the last issued second the next second is used instead.
type ResiGenerator struct {
	mu   sync.Mutex
	now  func() time.Time
	last int64
}

func NewResiGenerator(now func() time.Time) *ResiGenerator {
	if now == nil {
		now = time.Now
	}
	return &ResiGenerator{now: now}
}

func (g *ResiGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	ts := g.now().Unix()
	if ts <= g.last {
		ts = g.last + 1
	}
	g.last = ts
	return ResiPrefix + strconv.FormatInt(ts, 10)
}
