package pose

import "testing"

func TestLedgerSeedConfirms(t *testing.T) {
	l := NewLedger(7)
	l.Seed(1)
	if !l.Confirmed(1) {
		t.Fatalf("seeded id not confirmed")
	}
	if got := l.LastConfirmed(); got != 1 {
		t.Fatalf("LastConfirmed = %d, want 1", got)
	}
}

func TestLedgerPromotesAfterThreshold(t *testing.T) {
	l := NewLedger(7)
	l.Seed(1)

	for i := 0; i < 6; i++ {
		if promoted := l.Observe([]int{1, 2}); len(promoted) != 0 {
			t.Fatalf("promoted %v after %d co-observations", promoted, i+1)
		}
	}
	promoted := l.Observe([]int{1, 2})
	if len(promoted) != 1 || promoted[0] != 2 {
		t.Fatalf("promoted = %v, want [2]", promoted)
	}
	if !l.Confirmed(2) {
		t.Fatalf("id 2 not confirmed after threshold")
	}
	if got := l.LastConfirmed(); got != 2 {
		t.Fatalf("LastConfirmed = %d, want 2", got)
	}
}

func TestLedgerTripleEvidenceAccumulatesFaster(t *testing.T) {
	l := NewLedger(7)
	l.Seed(1)
	l.Seed(2)

	// Two confirmed co-markers: 2 pairwise points + 1 triple point per frame.
	frames := 0
	for ; frames < 10; frames++ {
		if got := l.Observe([]int{1, 2, 3}); len(got) != 0 {
			break
		}
	}
	if frames != 2 { // 3 points per frame, threshold 7 crossed on frame 3
		t.Fatalf("confirmed after %d extra frames, want promotion on the 3rd", frames)
	}
}

func TestLedgerNoEvidenceWithoutConfirmedCoMarker(t *testing.T) {
	l := NewLedger(7)
	l.Seed(1)

	for i := 0; i < 50; i++ {
		if promoted := l.Observe([]int{4, 5}); len(promoted) != 0 {
			t.Fatalf("promoted %v with no confirmed marker visible", promoted)
		}
	}
	if l.Confirmed(4) || l.Confirmed(5) {
		t.Fatalf("ids confirmed without any confirmed co-observation")
	}
}

func TestLedgerMonotonicity(t *testing.T) {
	l := NewLedger(7)
	l.Seed(1)

	// Confirm id 5 first.
	for i := 0; i < 7; i++ {
		l.Observe([]int{1, 5})
	}
	if !l.Confirmed(5) {
		t.Fatalf("id 5 not confirmed")
	}

	// id 4 keeps accumulating but must never be promoted once 5 is last.
	for i := 0; i < 100; i++ {
		if promoted := l.Observe([]int{5, 4}); len(promoted) != 0 {
			t.Fatalf("out-of-order id promoted: %v", promoted)
		}
	}
	if l.Confirmed(4) {
		t.Fatalf("id 4 confirmed despite id 5 being last confirmed")
	}
	if got := l.LastConfirmed(); got != 5 {
		t.Fatalf("LastConfirmed = %d, want 5", got)
	}
}
