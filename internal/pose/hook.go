package pose

import (
	"math"

	"github.com/cranevision/pose-telemetry/pkg/types"
)

// HookConfig is the static calibration state of the hook circuit. There is
// no per-frame state beyond it.
type HookConfig struct {
	MarkerID    int
	MarkerSizeM float64
	Intrinsics  Intrinsics
}

// HookEngine computes the hook distance and centering deviation from the
// single target marker.
type HookEngine struct {
	cfg HookConfig
}

func NewHookEngine(cfg HookConfig) *HookEngine {
	if cfg.Intrinsics.Fx == 0 {
		cfg.Intrinsics = DefaultIntrinsics()
	}
	return &HookEngine{cfg: cfg}
}

// MarkerID returns the configured target marker id.
func (e *HookEngine) MarkerID() int { return e.cfg.MarkerID }

// Process looks for the target marker. Distance follows the inverse pinhole
// relation (real size over apparent size, scaled by the focal reference);
// the deviations are the marker center offset from the frame center and feed
// visual alignment, not geometry. An absent target yields Valid=false.
func (e *HookEngine) Process(obs []types.MarkerObservation, frameW, frameH int) types.HookPose {
	for _, o := range obs {
		if o.ID != e.cfg.MarkerID {
			continue
		}
		side := o.SidePx()
		if side <= 0 {
			break
		}
		dist := e.cfg.Intrinsics.Fx * e.cfg.MarkerSizeM / side
		center := o.Center()
		return types.HookPose{
			Distance:   math.Max(0, dist),
			DeviationX: center.X - float64(frameW)/2,
			DeviationY: center.Y - float64(frameH)/2,
			MarkerID:   o.ID,
			Valid:      true,
		}
	}
	return types.HookPose{MarkerID: e.cfg.MarkerID}
}
