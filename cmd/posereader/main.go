// One-shot diagnostics reader for the shared register server.
//
// Connects, reads and decodes both circuit ranges, prints them as JSON and
// exits. It observes the registers exactly the way any external dashboard
// reader does.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/cranevision/pose-telemetry/internal/registers"
)

var (
	host       = flag.String("host", "127.0.0.1", "Register server host")
	port       = flag.Int("port", 5020, "Register server port")
	unitID     = flag.Uint("unit-id", uint(registers.DefaultUnitID), "Modbus unit id")
	bridgeBase = flag.Uint("bridge-base", uint(registers.DefaultBridgeBase), "Bridge range base register")
	hookBase   = flag.Uint("hook-base", uint(registers.DefaultHookBase), "Hook range base register")
)

func main() {
	flag.Parse()

	layout := registers.Layout{
		BridgeBase: uint16(*bridgeBase),
		HookBase:   uint16(*hookBase),
		UnitID:     uint8(*unitID),
	}
	if err := layout.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	snap, err := registers.ReadSnapshot(*host, *port, layout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read %s:%d failed: %v\n", *host, *port, err)
		os.Exit(1)
	}

	out, err := json.MarshalIndent(map[string]any{
		"bridge": map[string]any{
			"x_m":       snap.Bridge.X,
			"y_m":       snap.Bridge.Y,
			"marker_id": snap.Bridge.MarkerID,
			"valid":     snap.Bridge.Valid,
		},
		"hook": map[string]any{
			"distance_m":     snap.Hook.Distance,
			"deviation_x_px": snap.Hook.DeviationX,
			"deviation_y_px": snap.Hook.DeviationY,
			"marker_id":      snap.Hook.MarkerID,
			"valid":          snap.Hook.Valid,
		},
	}, "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}
