package expediente

import (
	"strconv"
	"sync"
	"time"
)

// IDPrefix starts every case-file identifier.
const IDPrefix = "EXP-"

// IDGenerator issues "EXP-<unix millis>" identifiers. Two calls in the same
// millisecond (or a clock step backwards) get strictly increasing values, so
// identifiers are unique within one process.
type IDGenerator struct {
	mu   sync.Mutex
	now  func() time.Time
	last int64
}

// NewIDGenerator creates a generator. A nil clock uses time.Now.
func NewIDGenerator(now func() time.Time) *IDGenerator {
	if now == nil {
		now = time.Now
	}

	return &IDGenerator{now: now}
}

// Next returns a fresh identifier.
func (g *IDGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := g.now().UnixMilli()
	if ms <= g.last {
		ms = g.last + 1
	}

	g.last = ms

	return IDPrefix + strconv.FormatInt(ms, 10)
}
