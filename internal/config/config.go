// Package config reads the fields this system consumes from the external
// calibration configuration store. The file format and its load/save
// semantics belong to the calibration tool; we only decode what the
// telemetry processes need and leave everything else untouched.
package config

import (
	"encoding/json"
	"fmt"
	"image"
	"os"
	"strconv"

	"github.com/cranevision/pose-telemetry/internal/camera"
	"github.com/cranevision/pose-telemetry/internal/pose"
	"github.com/cranevision/pose-telemetry/internal/registers"
)

// ROI is the bridge detection region as stored in the calibration file.
type ROI struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Rect converts the stored ROI into an image rectangle.
func (r ROI) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H)
}

// BridgeSection is the bridge_calibration part of the store.
type BridgeSection struct {
	MarkerSizeMM      int                `json:"marker_size_mm"`
	MovementDirection string             `json:"movement_direction"`
	MarkerPositionsM  map[string]float64 `json:"marker_positions_m"`
	ROI               ROI                `json:"roi"`
	Camera            camera.Config      `json:"camera"`
}

// HookSection is the hook_calibration part of the store.
type HookSection struct {
	MarkerSizeMM int           `json:"marker_size_mm"`
	MarkerID     int           `json:"marker_id"`
	Camera       camera.Config `json:"camera"`
}

// IntrinsicsSection overrides the built-in camera intrinsics when present.
type IntrinsicsSection struct {
	Fx float64 `json:"fx"`
	Fy float64 `json:"fy"`
	Cx float64 `json:"cx"`
	Cy float64 `json:"cy"`
}

// ModbusSection locates the shared register server.
type ModbusSection struct {
	Host       string `json:"host"`
	Port       int    `json:"port"`
	UnitID     uint8  `json:"unit_id"`
	BridgeBase uint16 `json:"bridge_base_register"`
	HookBase   uint16 `json:"hook_base_register"`
}

// Config is the consumed slice of the calibration store.
type Config struct {
	Bridge     BridgeSection     `json:"bridge_calibration"`
	Hook       HookSection       `json:"hook_calibration"`
	Modbus     ModbusSection     `json:"modbus"`
	Intrinsics IntrinsicsSection `json:"camera_intrinsics"`
}

func (c *Config) intrinsics() pose.Intrinsics {
	if c.Intrinsics.Fx <= 0 {
		return pose.DefaultIntrinsics()
	}
	return pose.Intrinsics{
		Fx: c.Intrinsics.Fx,
		Fy: c.Intrinsics.Fy,
		Cx: c.Intrinsics.Cx,
		Cy: c.Intrinsics.Cy,
	}
}

// Load reads and validates the configuration file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := &Config{}
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Bridge.MarkerSizeMM <= 0 {
		c.Bridge.MarkerSizeMM = 35
	}
	if c.Hook.MarkerSizeMM <= 0 {
		c.Hook.MarkerSizeMM = 35
	}
	if c.Hook.MarkerID <= 0 {
		c.Hook.MarkerID = 1
	}
	if c.Modbus.Host == "" {
		c.Modbus.Host = "127.0.0.1"
	}
	if c.Modbus.Port == 0 {
		c.Modbus.Port = 5020
	}
	if c.Modbus.UnitID == 0 {
		c.Modbus.UnitID = registers.DefaultUnitID
	}
	if c.Modbus.BridgeBase == 0 {
		c.Modbus.BridgeBase = registers.DefaultBridgeBase
	}
	if c.Modbus.HookBase == 0 {
		c.Modbus.HookBase = registers.DefaultHookBase
	}
}

// Layout returns the register layout, validated for range disjointness.
func (c *Config) Layout() (registers.Layout, error) {
	layout := registers.Layout{
		BridgeBase: c.Modbus.BridgeBase,
		HookBase:   c.Modbus.HookBase,
		UnitID:     c.Modbus.UnitID,
	}
	if err := layout.Validate(); err != nil {
		return registers.Layout{}, err
	}
	return layout, nil
}

// BridgeEngineConfig converts the bridge section into engine calibration
// state. Marker ids arrive as JSON object keys, so they are strings on the
// wire; non-numeric keys are skipped.
func (c *Config) BridgeEngineConfig() (pose.BridgeConfig, error) {
	positions := make(map[int]float64, len(c.Bridge.MarkerPositionsM))
	for key, val := range c.Bridge.MarkerPositionsM {
		id, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		positions[id] = val
	}
	if len(positions) == 0 {
		return pose.BridgeConfig{}, fmt.Errorf("marker_positions_m is empty in calibration config")
	}

	direction := pose.DirectionIncreasing
	if c.Bridge.MovementDirection == string(pose.DirectionDecreasing) {
		direction = pose.DirectionDecreasing
	}

	return pose.BridgeConfig{
		MarkerPositions: positions,
		ROI:             c.Bridge.ROI.Rect(),
		Direction:       direction,
		MarkerSizeM:     float64(c.Bridge.MarkerSizeMM) / 1000,
		Intrinsics:      c.intrinsics(),
	}, nil
}

// HookEngineConfig converts the hook section into engine calibration state.
func (c *Config) HookEngineConfig() pose.HookConfig {
	return pose.HookConfig{
		MarkerID:    c.Hook.MarkerID,
		MarkerSizeM: float64(c.Hook.MarkerSizeMM) / 1000,
		Intrinsics:  c.intrinsics(),
	}
}
