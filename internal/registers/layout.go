package registers

import (
	"fmt"
	"math"

	"github.com/cranevision/pose-telemetry/pkg/types"
)

// Register layout within the shared holding-register space. One physical
// float32 spans two consecutive big-endian 16-bit registers. These offsets
// are the wire protocol and MUST NOT be reinterpreted per deployment; only
// the base addresses move.

const (
	DefaultBridgeBase uint16 = 100
	DefaultHookBase   uint16 = 200
	DefaultUnitID     uint8  = 1
)

// Bridge range, relative to BridgeBase.
const (
	BridgeRegX        = 0 // +0..+1 float32, path position (m)
	BridgeRegY        = 2 // +2..+3 float32, marker distance (m)
	BridgeRegMarkerID = 4 // unsigned 16-bit
	BridgeRegValid    = 5 // 0/1
	BridgeRegCount    = 6
)

// Hook range, relative to HookBase.
const (
	HookRegDistance   = 0 // +0..+1 float32, distance (m)
	HookRegDeviationX = 2 // +2..+3 float32, deviation X (px)
	HookRegDeviationY = 4 // +4..+5 float32, deviation Y (px)
	HookRegMarkerID   = 6 // unsigned 16-bit
	HookRegValid      = 7 // 0/1
	HookRegCount      = 8
)

// Layout fixes where the two circuit ranges live in the address space.
type Layout struct {
	BridgeBase uint16
	HookBase   uint16
	UnitID     uint8
}

// DefaultLayout returns the deployed register assignment.
func DefaultLayout() Layout {
	return Layout{BridgeBase: DefaultBridgeBase, HookBase: DefaultHookBase, UnitID: DefaultUnitID}
}

// Validate rejects layouts whose bridge and hook ranges overlap.
func (l Layout) Validate() error {
	bStart, bEnd := int(l.BridgeBase), int(l.BridgeBase)+BridgeRegCount
	hStart, hEnd := int(l.HookBase), int(l.HookBase)+HookRegCount
	if bStart < hEnd && hStart < bEnd {
		return fmt.Errorf("register ranges overlap: bridge [%d,%d) hook [%d,%d)", bStart, bEnd, hStart, hEnd)
	}
	return nil
}

// StoreSize returns how many holding registers the server must host to
// cover both ranges, with headroom.
func (l Layout) StoreSize() int {
	end := int(l.BridgeBase) + BridgeRegCount
	if h := int(l.HookBase) + HookRegCount; h > end {
		end = h
	}
	size := end + 64
	if size < 256 {
		size = 256
	}
	return size
}

// FloatToRegisters splits a float32 into two big-endian 16-bit registers.
func FloatToRegisters(v float32) (hi, lo uint16) {
	bits := math.Float32bits(v)
	return uint16(bits >> 16), uint16(bits)
}

// RegistersToFloat is the inverse of FloatToRegisters.
func RegistersToFloat(hi, lo uint16) float32 {
	return math.Float32frombits(uint32(hi)<<16 | uint32(lo))
}

// EncodeBridge serializes one bridge sample into its register block.
func EncodeBridge(p types.BridgePose) []uint16 {
	regs := make([]uint16, BridgeRegCount)
	regs[BridgeRegX], regs[BridgeRegX+1] = FloatToRegisters(float32(p.X))
	regs[BridgeRegY], regs[BridgeRegY+1] = FloatToRegisters(float32(p.Y))
	regs[BridgeRegMarkerID] = markerIDWord(p.MarkerID)
	regs[BridgeRegValid] = boolWord(p.Valid)
	return regs
}

// DecodeBridge is the reader-side inverse of EncodeBridge.
func DecodeBridge(regs []uint16) (types.BridgePose, error) {
	if len(regs) < BridgeRegCount {
		return types.BridgePose{}, fmt.Errorf("bridge block needs %d registers, got %d", BridgeRegCount, len(regs))
	}
	return types.BridgePose{
		X:        float64(RegistersToFloat(regs[BridgeRegX], regs[BridgeRegX+1])),
		Y:        float64(RegistersToFloat(regs[BridgeRegY], regs[BridgeRegY+1])),
		MarkerID: int(regs[BridgeRegMarkerID]),
		Valid:    regs[BridgeRegValid] != 0,
	}, nil
}

// EncodeHook serializes one hook sample into its register block.
func EncodeHook(p types.HookPose) []uint16 {
	regs := make([]uint16, HookRegCount)
	regs[HookRegDistance], regs[HookRegDistance+1] = FloatToRegisters(float32(p.Distance))
	regs[HookRegDeviationX], regs[HookRegDeviationX+1] = FloatToRegisters(float32(p.DeviationX))
	regs[HookRegDeviationY], regs[HookRegDeviationY+1] = FloatToRegisters(float32(p.DeviationY))
	regs[HookRegMarkerID] = markerIDWord(p.MarkerID)
	regs[HookRegValid] = boolWord(p.Valid)
	return regs
}

// DecodeHook is the reader-side inverse of EncodeHook.
func DecodeHook(regs []uint16) (types.HookPose, error) {
	if len(regs) < HookRegCount {
		return types.HookPose{}, fmt.Errorf("hook block needs %d registers, got %d", HookRegCount, len(regs))
	}
	return types.HookPose{
		Distance:   float64(RegistersToFloat(regs[HookRegDistance], regs[HookRegDistance+1])),
		DeviationX: float64(RegistersToFloat(regs[HookRegDeviationX], regs[HookRegDeviationX+1])),
		DeviationY: float64(RegistersToFloat(regs[HookRegDeviationY], regs[HookRegDeviationY+1])),
		MarkerID:   int(regs[HookRegMarkerID]),
		Valid:      regs[HookRegValid] != 0,
	}, nil
}

func markerIDWord(id int) uint16 {
	if id < 0 {
		return 0
	}
	return uint16(id)
}

func boolWord(b bool) uint16 {
	if b {
		return 1
	}
	return 0
}
