// Package arbiter serializes camera ownership between the supervised
// telemetry processes and the interactive calibration control plane. Each
// circuit's camera has exactly one holder at a time; every open/close of a
// camera happens through a state transition here.
package arbiter

import (
	"context"
	"fmt"
	"sync"

	"github.com/cranevision/pose-telemetry/internal/logger"
	"github.com/cranevision/pose-telemetry/pkg/types"
)

// State is the ownership state of one circuit's camera.
type State int

const (
	// TelemetryOwns: the supervised telemetry process holds the camera.
	TelemetryOwns State = iota
	// Released: nobody holds the camera; telemetry is stopped.
	Released
	// CalibrationOwns: an interactive calibration session holds the camera.
	CalibrationOwns
)

func (s State) String() string {
	switch s {
	case TelemetryOwns:
		return "telemetry-owns"
	case Released:
		return "released"
	case CalibrationOwns:
		return "calibration-owns"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ProcessControl stops and starts a circuit's supervisor+telemetry pair.
// StopTelemetry must not return until the OS-level camera handle is
// released (the processes are confirmed gone); stopping an already-stopped
// circuit is a no-op.
type ProcessControl interface {
	StopTelemetry(ctx context.Context, circuit types.Circuit) error
	StartTelemetry(circuit types.Circuit) error
}

// Arbiter holds the per-circuit ownership state machine. One mutex
// serializes all transitions; a transition attempted while the opposite
// circuit is mid-transition blocks until its turn (deferred, never dropped).
type Arbiter struct {
	mu     sync.Mutex
	ctl    ProcessControl
	states map[types.Circuit]State
}

// New starts both circuits in TelemetryOwns.
func New(ctl ProcessControl) *Arbiter {
	return &Arbiter{
		ctl: ctl,
		states: map[types.Circuit]State{
			types.CircuitBridge: TelemetryOwns,
			types.CircuitHook:   TelemetryOwns,
		},
	}
}

// State returns the circuit's current ownership state.
func (a *Arbiter) State(circuit types.Circuit) State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.states[circuit]
}

// Acquire moves a circuit from TelemetryOwns to Released on behalf of an
// interactive session: the supervisor and telemetry process are stopped and
// confirmed gone before this returns, so the caller may then open the
// camera. Acquiring an already non-telemetry circuit changes nothing.
func (a *Arbiter) Acquire(ctx context.Context, circuit types.Circuit) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.states[circuit] != TelemetryOwns {
		return nil
	}
	if err := a.ctl.StopTelemetry(ctx, circuit); err != nil {
		return fmt.Errorf("stop %s telemetry: %w", circuit, err)
	}
	a.states[circuit] = Released
	logger.Info("Arbiter", "circuit=%s %s", circuit, Released)
	return nil
}

// Confirm records that the interactive session successfully opened the
// camera, completing the handoff to CalibrationOwns.
func (a *Arbiter) Confirm(circuit types.Circuit) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.states[circuit] != Released {
		return fmt.Errorf("circuit %s is %s, cannot confirm calibration ownership", circuit, a.states[circuit])
	}
	a.states[circuit] = CalibrationOwns
	logger.Info("Arbiter", "circuit=%s %s", circuit, CalibrationOwns)
	return nil
}

// Release ends an interactive session for a circuit. Telemetry relaunch is
// deferred until every circuit has returned to Released: relaunching one
// circuit's telemetry while the other circuit's session is still winding
// down could reclaim a camera that session still needs.
func (a *Arbiter) Release(circuit types.Circuit) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.states[circuit] == TelemetryOwns {
		return nil
	}
	a.states[circuit] = Released
	logger.Info("Arbiter", "circuit=%s %s", circuit, Released)

	// Only a circuit held by a calibration session blocks the relaunch; a
	// circuit whose telemetry kept running all along was never part of the
	// handoff.
	for c, st := range a.states {
		if st == CalibrationOwns {
			logger.Info("Arbiter", "relaunch deferred, circuit %s is still held", c)
			return nil
		}
	}

	var firstErr error
	for c, st := range a.states {
		if st != Released {
			continue
		}
		if err := a.ctl.StartTelemetry(c); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("relaunch %s telemetry: %w", c, err)
			}
			continue
		}
		a.states[c] = TelemetryOwns
		logger.Info("Arbiter", "circuit=%s %s", c, TelemetryOwns)
	}
	return firstErr
}
