package arbiter

import (
	"context"
	"fmt"
	"os/exec"
	"syscall"
	"time"

	"github.com/cranevision/pose-telemetry/internal/logger"
	"github.com/cranevision/pose-telemetry/internal/runstate"
	"github.com/cranevision/pose-telemetry/pkg/types"
)

const stopPollInterval = 100 * time.Millisecond

// Controller is the real ProcessControl: it locates supervised processes
// through their liveness records and signals them, and relaunches a
// circuit's supervisor as a detached child.
type Controller struct {
	RuntimeDir  string
	Launch      map[types.Circuit][]string // supervisor argv per circuit
	StopTimeout time.Duration
}

// NewController builds a controller over the given runtime directory.
func NewController(runtimeDir string, launch map[types.Circuit][]string) *Controller {
	if runtimeDir == "" {
		runtimeDir = runstate.DefaultDir
	}
	return &Controller{RuntimeDir: runtimeDir, Launch: launch, StopTimeout: 3 * time.Second}
}

// StopTelemetry terminates the circuit's supervisor first (so it cannot
// relaunch the child mid-stop) and then the telemetry process, confirming
// each is gone before returning. A record naming a dead or missing process
// is cleaned up and treated as already stopped.
func (c *Controller) StopTelemetry(ctx context.Context, circuit types.Circuit) error {
	for _, role := range []runstate.Role{runstate.RoleSupervisor, runstate.RoleTelemetry} {
		rec, ok, err := runstate.Read(c.RuntimeDir, circuit, role)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := c.stopPID(ctx, rec.PID); err != nil {
			return fmt.Errorf("stop %s %s (pid %d): %w", circuit, role, rec.PID, err)
		}
		if err := runstate.Remove(c.RuntimeDir, circuit, role); err != nil {
			return err
		}
		logger.Info("Arbiter", "stopped %s %s (pid %d)", circuit, role, rec.PID)
	}
	return nil
}

func (c *Controller) stopPID(ctx context.Context, pid int) error {
	if !runstate.Alive(pid) {
		return nil
	}
	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		// Process vanished between the probe and the signal.
		if err == syscall.ESRCH {
			return nil
		}
		return err
	}

	deadline := time.Now().Add(c.StopTimeout)
	for time.Now().Before(deadline) {
		if !runstate.Alive(pid) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(stopPollInterval):
		}
	}

	// Last resort.
	syscall.Kill(pid, syscall.SIGKILL)
	for i := 0; i < 10; i++ {
		if !runstate.Alive(pid) {
			return nil
		}
		time.Sleep(stopPollInterval)
	}
	return fmt.Errorf("pid %d survived SIGKILL", pid)
}

// StartTelemetry relaunches the circuit's supervisor, detached from the
// calling process.
func (c *Controller) StartTelemetry(circuit types.Circuit) error {
	argv, ok := c.Launch[circuit]
	if !ok || len(argv) == 0 {
		return fmt.Errorf("no launch command configured for circuit %s", circuit)
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return err
	}
	pid := cmd.Process.Pid
	// Reap in the background so the supervisor never turns into a zombie of
	// ours; it writes its own liveness record once it is up.
	go cmd.Wait()
	logger.Info("Arbiter", "launched %s supervisor (pid %d)", circuit, pid)
	return nil
}
