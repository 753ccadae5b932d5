package pose

import (
	"image"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/cranevision/pose-telemetry/internal/logger"
	"github.com/cranevision/pose-telemetry/pkg/types"
)

// Intrinsics holds the pinhole camera parameters used as the scale
// reference for distance estimation.
type Intrinsics struct {
	Fx float64
	Fy float64
	Cx float64
	Cy float64
}

// DefaultIntrinsics returns the project calibration of the deployed cameras.
func DefaultIntrinsics() Intrinsics {
	return Intrinsics{
		Fx: 661.62411664,
		Fy: 663.37101748,
		Cx: 345.05463892,
		Cy: 215.94757467,
	}
}

// Direction is the sign convention for the bridge path coordinate.
type Direction string

const (
	DirectionIncreasing Direction = "left_to_right"
	DirectionDecreasing Direction = "right_to_left"
)

// BridgeConfig is the static calibration state of the bridge circuit.
type BridgeConfig struct {
	MarkerPositions  map[int]float64 // marker id -> physical X, meters
	ROI              image.Rectangle
	Direction        Direction
	MarkerSizeM      float64
	Intrinsics       Intrinsics
	ConfirmThreshold int
}

// BridgeEngine converts marker observations into the bridge path position.
// It owns the confirmation ledger; the ledger is mutated on every processed
// frame and never shared across processes.
type BridgeEngine struct {
	cfg    BridgeConfig
	ledger *Ledger
}

// NewBridgeEngine builds an engine and seeds the ledger with the lowest
// configured marker id.
func NewBridgeEngine(cfg BridgeConfig) *BridgeEngine {
	if cfg.Intrinsics.Fx == 0 {
		cfg.Intrinsics = DefaultIntrinsics()
	}
	e := &BridgeEngine{cfg: cfg, ledger: NewLedger(cfg.ConfirmThreshold)}
	anchor, ok := lowestID(cfg.MarkerPositions)
	if ok {
		e.ledger.Seed(anchor)
	}
	return e
}

// ROI returns the detection region the engine wants frames restricted to.
func (e *BridgeEngine) ROI() image.Rectangle { return e.cfg.ROI }

// Ledger exposes the confirmation state for diagnostics.
func (e *BridgeEngine) Ledger() *Ledger { return e.ledger }

// Process folds one frame's observations into the ledger and computes the
// pose. A frame with no confirmed marker yields Valid=false, never an error.
func (e *BridgeEngine) Process(obs []types.MarkerObservation, frameW, frameH int) types.BridgePose {
	known := obs[:0:0]
	for _, o := range obs {
		if _, ok := e.cfg.MarkerPositions[o.ID]; ok {
			known = append(known, o)
		}
	}
	if len(known) == 0 {
		return types.BridgePose{MarkerID: -1}
	}

	ids := make([]int, len(known))
	for i, o := range known {
		ids[i] = o.ID
	}
	if promoted := e.ledger.Observe(ids); len(promoted) != 0 {
		logger.Info("BridgePose", "confirmed markers %v (last=%d)", promoted, e.ledger.LastConfirmed())
	}

	frameCenterX := float64(frameW) / 2
	fx := e.cfg.Intrinsics.Fx

	var xs, weights []float64
	best := types.BridgePose{MarkerID: -1}
	bestOffset := math.Inf(1)

	for _, o := range known {
		if !e.ledger.Confirmed(o.ID) {
			continue
		}
		side := o.SidePx()
		if side <= 0 {
			continue
		}
		z := fx * e.cfg.MarkerSizeM / side
		offsetPx := o.Center().X - frameCenterX
		relX := offsetPx / fx * z

		markerX := e.cfg.MarkerPositions[o.ID]
		var camX float64
		if e.cfg.Direction == DirectionDecreasing {
			camX = markerX + relX
		} else {
			camX = markerX - relX
		}
		if camX < 0 {
			camX = 0
		}

		xs = append(xs, camX)
		weights = append(weights, 1/(0.05+z*z))

		// Report the confirmed marker closest to the optical center.
		if math.Abs(offsetPx) < bestOffset {
			bestOffset = math.Abs(offsetPx)
			best = types.BridgePose{Y: math.Max(0, z), MarkerID: o.ID, Valid: true}
		}
	}
	if len(xs) == 0 {
		return types.BridgePose{MarkerID: -1}
	}

	best.X = math.Max(0, stat.Mean(xs, weights))
	return best
}

func lowestID(m map[int]float64) (int, bool) {
	first := true
	var min int
	for id := range m {
		if first || id < min {
			min = id
			first = false
		}
	}
	return min, !first
}
