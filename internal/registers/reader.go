package registers

import (
	"github.com/cranevision/pose-telemetry/pkg/types"
)

// Snapshot is a one-shot decoded read of both circuit ranges, for
// diagnostics. It carries no consistency guarantee beyond what the wire
// protocol gives any other reader.
type Snapshot struct {
	Bridge types.BridgePose
	Hook   types.HookPose
}

// ReadSnapshot connects to a register server, reads and decodes both
// ranges, and disconnects.
func ReadSnapshot(host string, port int, layout Layout) (Snapshot, error) {
	client, err := NewClient(host, port, layout.UnitID)
	if err != nil {
		return Snapshot{}, err
	}
	if err := client.Connect(); err != nil {
		return Snapshot{}, err
	}
	defer client.Close()

	bridgeRegs, err := client.ReadRegisters(layout.BridgeBase, BridgeRegCount)
	if err != nil {
		return Snapshot{}, err
	}
	hookRegs, err := client.ReadRegisters(layout.HookBase, HookRegCount)
	if err != nil {
		return Snapshot{}, err
	}

	var snap Snapshot
	if snap.Bridge, err = DecodeBridge(bridgeRegs); err != nil {
		return Snapshot{}, err
	}
	if snap.Hook, err = DecodeHook(hookRegs); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}
