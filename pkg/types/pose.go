package types

import (
	"math"
	"time"
)

// Circuit identifies one of the two independent measurement pipelines.
type Circuit string

const (
	CircuitBridge Circuit = "bridge"
	CircuitHook   Circuit = "hook"
)

// Point is a pixel coordinate inside a captured frame.
type Point struct {
	X float64
	Y float64
}

// MarkerObservation is one fiducial marker detected in one frame.
// Corners are ordered clockwise starting at the top-left corner, in
// full-frame pixel coordinates (already offset out of any detection ROI).
type MarkerObservation struct {
	ID        int
	Corners   [4]Point
	Timestamp time.Time
}

// Center returns the marker center in pixel coordinates.
func (o MarkerObservation) Center() Point {
	var cx, cy float64
	for _, p := range o.Corners {
		cx += p.X
		cy += p.Y
	}
	return Point{X: cx / 4, Y: cy / 4}
}

// SidePx returns the mean side length of the marker square in pixels,
// used as the apparent-size scale reference for pinhole distance.
func (o MarkerObservation) SidePx() float64 {
	var sum float64
	for i := 0; i < 4; i++ {
		a := o.Corners[i]
		b := o.Corners[(i+1)%4]
		sum += math.Hypot(b.X-a.X, b.Y-a.Y)
	}
	return sum / 4
}

// BridgePose is the bridge circuit output for one processed frame.
// When Valid is false the measurement fields must not be trusted and
// MarkerID is -1.
type BridgePose struct {
	X        float64 // camera position along the marker path, meters
	Y        float64 // distance to the contributing marker, meters
	MarkerID int
	Valid    bool
}

// HookPose is the hook circuit output for one processed frame.
type HookPose struct {
	Distance   float64 // meters
	DeviationX float64 // pixels, marker center minus frame center
	DeviationY float64 // pixels
	MarkerID   int
	Valid      bool
}
