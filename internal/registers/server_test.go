package registers

import (
	"testing"

	"github.com/simonvetter/modbus"

	"github.com/cranevision/pose-telemetry/pkg/types"
)

func TestStoreWriteRead(t *testing.T) {
	s := NewStore(256)

	if err := s.Write(100, []uint16{1, 2, 3}); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := s.Read(100, 3)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Fatalf("read back %v", got)
	}
}

func TestStoreBounds(t *testing.T) {
	s := NewStore(256)
	if err := s.Write(255, []uint16{1, 2}); err == nil {
		t.Fatalf("out-of-space write accepted")
	}
	if _, err := s.Read(250, 10); err == nil {
		t.Fatalf("out-of-space read accepted")
	}
}

func TestStoreHandlesHoldingRegisterRequests(t *testing.T) {
	s := NewStore(256)
	layout := DefaultLayout()

	sample := types.BridgePose{X: 4.5, Y: 1.25, MarkerID: 2, Valid: true}
	_, err := s.HandleHoldingRegisters(&modbus.HoldingRegistersRequest{
		UnitId:  layout.UnitID,
		Addr:    layout.BridgeBase,
		Args:    EncodeBridge(sample),
		IsWrite: true,
	})
	if err != nil {
		t.Fatalf("write request: %v", err)
	}

	regs, err := s.HandleHoldingRegisters(&modbus.HoldingRegistersRequest{
		UnitId:   layout.UnitID,
		Addr:     layout.BridgeBase,
		Quantity: BridgeRegCount,
	})
	if err != nil {
		t.Fatalf("read request: %v", err)
	}
	got, err := DecodeBridge(regs)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != sample {
		t.Fatalf("server round trip: got %+v, want %+v", got, sample)
	}
}

func TestStoreRejectsCoils(t *testing.T) {
	s := NewStore(256)
	if _, err := s.HandleCoils(&modbus.CoilsRequest{Addr: 0, Quantity: 1}); err != modbus.ErrIllegalFunction {
		t.Fatalf("coils error = %v, want ErrIllegalFunction", err)
	}
}

func TestLastWriterWinsPerOffset(t *testing.T) {
	s := NewStore(256)
	layout := DefaultLayout()

	first := EncodeHook(types.HookPose{Distance: 1, MarkerID: 1, Valid: true})
	second := EncodeHook(types.HookPose{Distance: 2, MarkerID: 1, Valid: true})
	if err := s.Write(layout.HookBase, first); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := s.Write(layout.HookBase, second); err != nil {
		t.Fatalf("write: %v", err)
	}
	regs, err := s.Read(layout.HookBase, HookRegCount)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	got, err := DecodeHook(regs)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Distance != 2 {
		t.Fatalf("Distance = %v, want the last written value 2", got.Distance)
	}
}
