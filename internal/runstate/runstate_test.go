package runstate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cranevision/pose-telemetry/pkg/types"
)

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	in := Record{
		Circuit: types.CircuitBridge,
		Role:    RoleTelemetry,
		PID:     4242,
		Command: []string{"bridgepose", "-config", "cfg.json"},
	}
	if err := Write(dir, in); err != nil {
		t.Fatalf("write: %v", err)
	}

	out, ok, err := Read(dir, types.CircuitBridge, RoleTelemetry)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !ok {
		t.Fatalf("record not found after write")
	}
	if out.Version != RecordVersion {
		t.Fatalf("Version = %d, want %d", out.Version, RecordVersion)
	}
	if out.PID != 4242 || out.Circuit != types.CircuitBridge || out.Role != RoleTelemetry {
		t.Fatalf("round trip: got %+v", out)
	}
	if out.StartedAt.IsZero() {
		t.Fatalf("StartedAt not stamped")
	}
}

func TestReadMissingRecord(t *testing.T) {
	_, ok, err := Read(t.TempDir(), types.CircuitHook, RoleSupervisor)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if ok {
		t.Fatalf("missing record reported as present")
	}
}

func TestReadMalformedRecord(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hook_pose_telemetry.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, ok, err := Read(dir, types.CircuitHook, RoleTelemetry)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if ok {
		t.Fatalf("malformed record reported as present")
	}
}

func TestRolesDoNotCollide(t *testing.T) {
	dir := t.TempDir()
	if err := Write(dir, Record{Circuit: types.CircuitBridge, Role: RoleSupervisor, PID: 1}); err != nil {
		t.Fatalf("write supervisor: %v", err)
	}
	if err := Write(dir, Record{Circuit: types.CircuitBridge, Role: RoleTelemetry, PID: 2}); err != nil {
		t.Fatalf("write telemetry: %v", err)
	}

	sup, ok, _ := Read(dir, types.CircuitBridge, RoleSupervisor)
	if !ok || sup.PID != 1 {
		t.Fatalf("supervisor record = %+v ok=%v", sup, ok)
	}
	tel, ok, _ := Read(dir, types.CircuitBridge, RoleTelemetry)
	if !ok || tel.PID != 2 {
		t.Fatalf("telemetry record = %+v ok=%v", tel, ok)
	}
}

func TestRemove(t *testing.T) {
	dir := t.TempDir()
	if err := Write(dir, Record{Circuit: types.CircuitHook, Role: RoleHold, PID: 3}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := Remove(dir, types.CircuitHook, RoleHold); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok, _ := Read(dir, types.CircuitHook, RoleHold); ok {
		t.Fatalf("record still present after remove")
	}

	// Removing an absent record must not fail.
	if err := Remove(dir, types.CircuitHook, RoleHold); err != nil {
		t.Fatalf("remove absent record: %v", err)
	}
}

func TestAlive(t *testing.T) {
	if !Alive(os.Getpid()) {
		t.Fatalf("own pid reported dead")
	}
	if Alive(0) || Alive(-1) {
		t.Fatalf("non-positive pid reported alive")
	}
}
