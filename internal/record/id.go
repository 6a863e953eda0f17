package record

import (
	"sync"

	"github.com/google/uuid"
)

// IDGenerator assigns identifiers to new records.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 identifiers.
//
// Identifiers sort by creation time, which keeps keyset pagination over
// freshly created records append-only.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined identifiers for testing.
//
// Thread-safety: FixedGenerator is safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator creates a generator that returns ids in order.
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next predetermined id.
// Panics if all ids have been consumed, to catch test misconfiguration.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("FixedGenerator: all ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}

// AssignID sets the record identifier when it is empty. It returns the
// identifier the record ends up with.
func AssignID(r Record, gen IDGenerator) string {
	if id := r.RecordID(); id != "" {
		return id
	}
	id := gen.Generate()
	switch v := r.(type) {
	case *Contact:
		v.ID = id
	case *Holiday:
		v.ID = id
	case *CardHistoryItem:
		v.ID = id
	case *CongratsHistoryItem:
		v.ID = id
	}
	return id
}
