package scraper

import "github.com/ibeckermayer/xscrape/internal/types"

// Accumulator collects records in arrival order, dropping any record whose
// DedupKey was already seen.
type Accumulator struct {
	seen    map[string]struct{}
	records []types.Record
}

func NewAccumulator() *Accumulator {
	return &Accumulator{seen: make(map[string]struct{})}
}

// Add appends r unless a record with the same key is already held. It reports
// whether r was added.
func (a *Accumulator) Add(r types.Record) bool {
	key := r.DedupKey()
	if _, ok := a.seen[key]; ok {
		return false
	}
	a.seen[key] = struct{}{}
	a.records = append(a.records, r)
	return true
}

func (a *Accumulator) Len() int {
	return len(a.records)
}

// Records returns the accumulated records
func (a *Accumulator) Records() []types.Record {
	return append([]types.Record(nil), a.records...)
}
