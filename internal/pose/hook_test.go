package pose

import (
	"math"
	"testing"

	"github.com/cranevision/pose-telemetry/pkg/types"
)

func TestHookTargetAbsent(t *testing.T) {
	e := NewHookEngine(HookConfig{MarkerID: 7, MarkerSizeM: 0.035})

	sample := e.Process(nil, 640, 480)
	if sample.Valid {
		t.Fatalf("empty frame produced a valid sample")
	}
	if sample.MarkerID != 7 {
		t.Fatalf("MarkerID = %d, want the configured target 7", sample.MarkerID)
	}

	sample = e.Process([]types.MarkerObservation{markerAt(3, 320, 240, 20)}, 640, 480)
	if sample.Valid {
		t.Fatalf("wrong marker id produced a valid sample")
	}
}

func TestHookDistanceAndDeviation(t *testing.T) {
	e := NewHookEngine(HookConfig{MarkerID: 7, MarkerSizeM: 0.035})
	fx := DefaultIntrinsics().Fx

	side := fx * 0.035 / 2.0 // two meters away
	sample := e.Process([]types.MarkerObservation{markerAt(7, 330, 235, side)}, 640, 480)
	if !sample.Valid {
		t.Fatalf("target marker not used")
	}
	if math.Abs(sample.Distance-2.0) > 1e-6 {
		t.Fatalf("Distance = %v, want 2.0", sample.Distance)
	}
	if math.Abs(sample.DeviationX-10) > 1e-9 || math.Abs(sample.DeviationY+5) > 1e-9 {
		t.Fatalf("deviation = (%v, %v), want (10, -5)", sample.DeviationX, sample.DeviationY)
	}
}

func TestHookDistanceInverseToApparentSize(t *testing.T) {
	e := NewHookEngine(HookConfig{MarkerID: 7, MarkerSizeM: 0.035})

	near := e.Process([]types.MarkerObservation{markerAt(7, 320, 240, 60)}, 640, 480)
	far := e.Process([]types.MarkerObservation{markerAt(7, 320, 240, 15)}, 640, 480)
	if !near.Valid || !far.Valid {
		t.Fatalf("samples invalid: %+v %+v", near, far)
	}
	if near.Distance >= far.Distance {
		t.Fatalf("larger apparent marker should be closer: near=%v far=%v", near.Distance, far.Distance)
	}
	if math.Abs(far.Distance/near.Distance-4.0) > 1e-6 {
		t.Fatalf("distance ratio = %v, want 4 for a 4x apparent-size ratio", far.Distance/near.Distance)
	}
}
