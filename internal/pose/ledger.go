package pose

import "sort"

// DefaultConfirmThreshold is the accumulated co-observation evidence a
// candidate marker id needs before it is trusted for pose output.
const DefaultConfirmThreshold = 7

// Ledger accumulates co-observation statistics for candidate marker ids.
// A candidate is promoted to confirmed only once its pairwise/triple
// evidence with already-confirmed markers crosses the threshold AND its id
// is greater than the last confirmed id. The monotonicity guard rejects
// transient false positives and out-of-order reads of the physical marker
// sequence. Never persisted; a process restart resets all statistics.
type Ledger struct {
	threshold     int
	evidence      map[int]int
	confirmed     map[int]bool
	lastConfirmed int
}

// NewLedger creates an empty ledger with the given confirmation threshold.
func NewLedger(threshold int) *Ledger {
	if threshold <= 0 {
		threshold = DefaultConfirmThreshold
	}
	return &Ledger{
		threshold:     threshold,
		evidence:      make(map[int]int),
		confirmed:     make(map[int]bool),
		lastConfirmed: -1,
	}
}

// Seed marks an id as confirmed without evidence. The engine seeds the
// lowest configured marker id so accumulation has a root after restart.
func (l *Ledger) Seed(id int) {
	l.confirmed[id] = true
	if id > l.lastConfirmed {
		l.lastConfirmed = id
	}
}

// Confirmed reports whether id has been promoted.
func (l *Ledger) Confirmed(id int) bool { return l.confirmed[id] }

// LastConfirmed returns the highest id promoted so far, or -1.
func (l *Ledger) LastConfirmed() int { return l.lastConfirmed }

// Observe folds one frame's visible marker ids into the ledger and returns
// any ids newly promoted this frame. Each candidate gains one evidence point
// per co-visible confirmed marker (pairwise) plus one extra point when two
// or more confirmed markers are visible at once (triple). Candidates whose
// id is not greater than the last confirmed id keep accumulating but are
// never promoted.
func (l *Ledger) Observe(visible []int) []int {
	confirmedVisible := 0
	for _, id := range visible {
		if l.confirmed[id] {
			confirmedVisible++
		}
	}
	if confirmedVisible == 0 {
		return nil
	}

	var promoted []int
	for _, id := range visible {
		if l.confirmed[id] {
			continue
		}
		gain := confirmedVisible
		if confirmedVisible >= 2 {
			gain++
		}
		l.evidence[id] += gain

		if l.evidence[id] >= l.threshold && id > l.lastConfirmed {
			l.confirmed[id] = true
			l.lastConfirmed = id
			delete(l.evidence, id)
			promoted = append(promoted, id)
		}
	}
	sort.Ints(promoted)
	return promoted
}
