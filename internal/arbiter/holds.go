package arbiter

import (
	"context"
	"os"

	"github.com/cranevision/pose-telemetry/internal/logger"
	"github.com/cranevision/pose-telemetry/internal/runstate"
	"github.com/cranevision/pose-telemetry/pkg/types"
)

// File-backed session protocol for one-shot control tools. The in-process
// Arbiter serializes transitions inside a long-running control plane; these
// methods give external tools the same protocol through hold records, so
// state survives across tool invocations.

var allCircuits = []types.Circuit{types.CircuitBridge, types.CircuitHook}

// AcquireCircuit records a calibration hold and stops the circuit's
// supervisor and telemetry process, confirming both are gone before it
// returns. The hold is written first so a concurrent release of the other
// circuit already sees this one as held.
func (c *Controller) AcquireCircuit(ctx context.Context, circuit types.Circuit) error {
	err := runstate.Write(c.RuntimeDir, runstate.Record{
		Circuit: circuit,
		Role:    runstate.RoleHold,
		PID:     os.Getpid(),
	})
	if err != nil {
		return err
	}
	return c.StopTelemetry(ctx, circuit)
}

// ReleaseCircuit drops the circuit's hold. Telemetry is relaunched for all
// stopped circuits only once no circuit is held anymore; until then the
// relaunch stays deferred.
func (c *Controller) ReleaseCircuit(circuit types.Circuit) error {
	if err := runstate.Remove(c.RuntimeDir, circuit, runstate.RoleHold); err != nil {
		return err
	}

	for _, other := range allCircuits {
		_, held, err := runstate.Read(c.RuntimeDir, other, runstate.RoleHold)
		if err != nil {
			return err
		}
		if held {
			logger.Info("Arbiter", "relaunch deferred, circuit %s still held", other)
			return nil
		}
	}

	var firstErr error
	for _, cc := range allCircuits {
		if c.CircuitState(cc) == TelemetryOwns {
			continue
		}
		if _, ok := c.Launch[cc]; !ok {
			continue
		}
		if err := c.StartTelemetry(cc); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// CircuitState derives a circuit's ownership state from the on-disk
// records: a hold means the calibration side owns (or is acquiring) the
// camera, a live supervisor means telemetry owns it, anything else is
// released.
func (c *Controller) CircuitState(circuit types.Circuit) State {
	if _, held, _ := runstate.Read(c.RuntimeDir, circuit, runstate.RoleHold); held {
		return CalibrationOwns
	}
	rec, ok, _ := runstate.Read(c.RuntimeDir, circuit, runstate.RoleSupervisor)
	if ok && runstate.Alive(rec.PID) {
		return TelemetryOwns
	}
	return Released
}
