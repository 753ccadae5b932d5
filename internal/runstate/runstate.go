// Package runstate persists liveness records for supervised processes.
// The records are the on-disk control plane the camera arbiter uses to
// locate and stop telemetry; the fieldbus connection never carries control
// traffic. Records are versioned and written atomically (temp file +
// rename) so a concurrently polling reader never observes a partial record.
package runstate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	ps "github.com/mitchellh/go-ps"

	"github.com/cranevision/pose-telemetry/pkg/types"
)

// RecordVersion is bumped on any incompatible record change.
const RecordVersion = 1

// Role distinguishes the two records a supervised circuit leaves behind.
type Role string

const (
	RoleSupervisor Role = "supervisor"
	RoleTelemetry  Role = "telemetry"
	// RoleHold marks an interactive calibration session holding the
	// circuit's camera; telemetry must not be relaunched while it exists.
	RoleHold Role = "hold"
)

// DefaultDir is the well-known runtime directory.
const DefaultDir = "data/runtime"

// Record identifies one running process of a circuit. Absence of the record
// file means "not running".
type Record struct {
	Version   int           `json:"version"`
	Circuit   types.Circuit `json:"circuit"`
	Role      Role          `json:"role"`
	PID       int           `json:"pid"`
	Command   []string      `json:"command,omitempty"`
	StartedAt time.Time     `json:"started_at"`
}

func recordPath(dir string, circuit types.Circuit, role Role) string {
	return filepath.Join(dir, fmt.Sprintf("%s_pose_%s.json", circuit, role))
}

// Write persists a record atomically under dir, creating dir if needed.
func Write(dir string, rec Record) error {
	rec.Version = RecordVersion
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create runtime dir: %w", err)
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	final := recordPath(dir, rec.Circuit, rec.Role)
	tmp, err := os.CreateTemp(dir, ".record-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), final)
}

// Read loads a record. The second return is false when no record exists.
func Read(dir string, circuit types.Circuit, role Role) (Record, bool, error) {
	raw, err := os.ReadFile(recordPath(dir, circuit, role))
	if os.IsNotExist(err) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		// A malformed record is treated the same as a missing one; the
		// writer will replace it on its next update.
		return Record{}, false, nil
	}
	if rec.Version != RecordVersion {
		return Record{}, false, nil
	}
	return rec, true, nil
}

// Remove deletes a record. Removing an absent record is a no-op.
func Remove(dir string, circuit types.Circuit, role Role) error {
	err := os.Remove(recordPath(dir, circuit, role))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Alive reports whether the recorded PID maps to a live process.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := ps.FindProcess(pid)
	return err == nil && proc != nil
}
