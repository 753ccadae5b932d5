package config

import (
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/cranevision/pose-telemetry/internal/pose"
	"github.com/cranevision/pose-telemetry/internal/registers"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "calibration.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `{
		"bridge_calibration": {
			"marker_size_mm": 40,
			"movement_direction": "right_to_left",
			"marker_positions_m": {"1": 0.0, "2": 1.2, "3": 2.5},
			"roi": {"x": 10, "y": 20, "w": 600, "h": 200},
			"camera": {"backend": "device", "camera_id": "/dev/video0"}
		},
		"hook_calibration": {
			"marker_size_mm": 50,
			"marker_id": 7,
			"camera": {"backend": "generic", "camera_id": "1"}
		},
		"modbus": {
			"host": "192.168.0.10",
			"port": 1502,
			"unit_id": 3,
			"bridge_base_register": 300,
			"hook_base_register": 400
		}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	layout, err := cfg.Layout()
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	if layout.BridgeBase != 300 || layout.HookBase != 400 || layout.UnitID != 3 {
		t.Fatalf("layout = %+v", layout)
	}

	bc, err := cfg.BridgeEngineConfig()
	if err != nil {
		t.Fatalf("bridge engine config: %v", err)
	}
	if len(bc.MarkerPositions) != 3 || bc.MarkerPositions[2] != 1.2 {
		t.Fatalf("marker positions = %v", bc.MarkerPositions)
	}
	if bc.Direction != pose.DirectionDecreasing {
		t.Fatalf("direction = %v, want decreasing for right_to_left", bc.Direction)
	}
	if bc.ROI != image.Rect(10, 20, 610, 220) {
		t.Fatalf("roi = %v", bc.ROI)
	}
	if bc.MarkerSizeM != 0.040 {
		t.Fatalf("marker size = %v, want 0.040", bc.MarkerSizeM)
	}

	hc := cfg.HookEngineConfig()
	if hc.MarkerID != 7 || hc.MarkerSizeM != 0.050 {
		t.Fatalf("hook config = %+v", hc)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"bridge_calibration": {"marker_positions_m": {"1": 0.0}}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Modbus.Host != "127.0.0.1" || cfg.Modbus.Port != 5020 {
		t.Fatalf("modbus endpoint default = %s:%d", cfg.Modbus.Host, cfg.Modbus.Port)
	}
	if cfg.Modbus.UnitID != registers.DefaultUnitID {
		t.Fatalf("unit id default = %d", cfg.Modbus.UnitID)
	}
	if cfg.Modbus.BridgeBase != registers.DefaultBridgeBase || cfg.Modbus.HookBase != registers.DefaultHookBase {
		t.Fatalf("base register defaults = %d/%d", cfg.Modbus.BridgeBase, cfg.Modbus.HookBase)
	}
	if cfg.Bridge.MarkerSizeMM != 35 || cfg.Hook.MarkerSizeMM != 35 {
		t.Fatalf("marker size defaults = %d/%d", cfg.Bridge.MarkerSizeMM, cfg.Hook.MarkerSizeMM)
	}
	if cfg.Hook.MarkerID != 1 {
		t.Fatalf("hook marker id default = %d", cfg.Hook.MarkerID)
	}

	bc, err := cfg.BridgeEngineConfig()
	if err != nil {
		t.Fatalf("bridge engine config: %v", err)
	}
	if bc.Direction != pose.DirectionIncreasing {
		t.Fatalf("direction default = %v, want increasing", bc.Direction)
	}
}

func TestBridgeEngineConfigSkipsBadKeys(t *testing.T) {
	path := writeConfig(t, `{
		"bridge_calibration": {"marker_positions_m": {"1": 0.0, "oops": 9.0}}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	bc, err := cfg.BridgeEngineConfig()
	if err != nil {
		t.Fatalf("bridge engine config: %v", err)
	}
	if len(bc.MarkerPositions) != 1 {
		t.Fatalf("positions = %v, non-numeric key not skipped", bc.MarkerPositions)
	}
}

func TestBridgeEngineConfigRequiresPositions(t *testing.T) {
	path := writeConfig(t, `{"bridge_calibration": {}}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := cfg.BridgeEngineConfig(); err == nil {
		t.Fatalf("empty marker position map accepted")
	}
}

func TestIntrinsicsOverride(t *testing.T) {
	path := writeConfig(t, `{
		"bridge_calibration": {"marker_positions_m": {"1": 0.0}},
		"camera_intrinsics": {"fx": 700.5, "fy": 701.25, "cx": 320, "cy": 240}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	bc, err := cfg.BridgeEngineConfig()
	if err != nil {
		t.Fatalf("bridge engine config: %v", err)
	}
	if bc.Intrinsics.Fx != 700.5 || bc.Intrinsics.Cy != 240 {
		t.Fatalf("intrinsics override not applied: %+v", bc.Intrinsics)
	}
	if hc := cfg.HookEngineConfig(); hc.Intrinsics.Fy != 701.25 {
		t.Fatalf("hook intrinsics override not applied: %+v", hc.Intrinsics)
	}
}

func TestIntrinsicsDefault(t *testing.T) {
	path := writeConfig(t, `{"bridge_calibration": {"marker_positions_m": {"1": 0.0}}}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	bc, err := cfg.BridgeEngineConfig()
	if err != nil {
		t.Fatalf("bridge engine config: %v", err)
	}
	if bc.Intrinsics != pose.DefaultIntrinsics() {
		t.Fatalf("intrinsics = %+v, want calibrated defaults", bc.Intrinsics)
	}
}

func TestLayoutRejectsOverlap(t *testing.T) {
	path := writeConfig(t, `{
		"modbus": {"bridge_base_register": 100, "hook_base_register": 103}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := cfg.Layout(); err == nil {
		t.Fatalf("overlapping register ranges accepted")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatalf("missing config file accepted")
	}
}
