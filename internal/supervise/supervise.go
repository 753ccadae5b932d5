// Package supervise keeps exactly one instance of a telemetry command
// running, restarting it after a fixed delay on every exit, clean or not.
// Exit codes are deliberately not interpreted; the only way to keep the
// child down is to stop the supervisor itself.
package supervise

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/cranevision/pose-telemetry/internal/logger"
	"github.com/cranevision/pose-telemetry/internal/metrics"
	"github.com/cranevision/pose-telemetry/internal/runstate"
	"github.com/cranevision/pose-telemetry/pkg/types"
)

// Config describes one supervised telemetry command.
type Config struct {
	Circuit      types.Circuit
	RuntimeDir   string
	RestartDelay time.Duration
	Command      []string // child argv, forwarded verbatim on every restart
	Metrics      *metrics.Metrics
}

// Supervisor runs the child in a restart loop and maintains the liveness
// records the camera arbiter reads.
type Supervisor struct {
	cfg Config
}

// New validates the config and builds a supervisor.
func New(cfg Config) (*Supervisor, error) {
	if len(cfg.Command) == 0 {
		return nil, errors.New("supervise: empty child command")
	}
	if cfg.RuntimeDir == "" {
		cfg.RuntimeDir = runstate.DefaultDir
	}
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = time.Second
	}
	return &Supervisor{cfg: cfg}, nil
}

// Run supervises until ctx is cancelled. The child is terminated on the way
// out and both liveness records are removed.
func (s *Supervisor) Run(ctx context.Context) error {
	dir := s.cfg.RuntimeDir
	err := runstate.Write(dir, runstate.Record{
		Circuit: s.cfg.Circuit,
		Role:    runstate.RoleSupervisor,
		PID:     os.Getpid(),
		Command: s.cfg.Command,
	})
	if err != nil {
		return err
	}
	defer runstate.Remove(dir, s.cfg.Circuit, runstate.RoleSupervisor)
	defer runstate.Remove(dir, s.cfg.Circuit, runstate.RoleTelemetry)

	logger.Info("Supervisor", "circuit=%s command=%v", s.cfg.Circuit, s.cfg.Command)

	for {
		if ctx.Err() != nil {
			return nil
		}

		cmd := exec.Command(s.cfg.Command[0], s.cfg.Command[1:]...)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Start(); err != nil {
			logger.Error("Supervisor", "start failed: %v", err)
			if !sleepCtx(ctx, s.cfg.RestartDelay) {
				return nil
			}
			continue
		}

		err := runstate.Write(dir, runstate.Record{
			Circuit: s.cfg.Circuit,
			Role:    runstate.RoleTelemetry,
			PID:     cmd.Process.Pid,
			Command: s.cfg.Command,
		})
		if err != nil {
			logger.Warn("Supervisor", "cannot write telemetry record: %v", err)
		}

		done := make(chan error, 1)
		go func() { done <- cmd.Wait() }()

		select {
		case <-ctx.Done():
			terminate(cmd, done)
			return nil
		case waitErr := <-done:
			runstate.Remove(dir, s.cfg.Circuit, runstate.RoleTelemetry)
			logger.Warn("Supervisor", "circuit=%s child exited (%v), restarting in %s",
				s.cfg.Circuit, exitStatus(waitErr), s.cfg.RestartDelay)
			if s.cfg.Metrics != nil {
				s.cfg.Metrics.ChildRestarts.Add(1)
			}
		}

		if !sleepCtx(ctx, s.cfg.RestartDelay) {
			return nil
		}
	}
}

func exitStatus(err error) string {
	if err == nil {
		return "code=0"
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.String()
	}
	return err.Error()
}

// terminate asks the child to stop, escalating to SIGKILL after a bounded
// wait.
func terminate(cmd *exec.Cmd, done <-chan error) {
	if cmd.Process == nil {
		return
	}
	cmd.Process.Signal(syscall.SIGTERM)
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		cmd.Process.Kill()
		<-done
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
