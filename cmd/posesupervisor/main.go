// Supervisor for a telemetry process.
//
// Restarts the child on any exit until the supervisor itself is stopped,
// and maintains the liveness records the camera arbitration layer uses to
// find and stop both processes.
//
// Usage:
//
//	posesupervisor -circuit bridge -- ./bridgepose -config data/calibration_config.json
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cranevision/pose-telemetry/internal/logger"
	"github.com/cranevision/pose-telemetry/internal/metrics"
	"github.com/cranevision/pose-telemetry/internal/runstate"
	"github.com/cranevision/pose-telemetry/internal/supervise"
	"github.com/cranevision/pose-telemetry/pkg/types"
)

var (
	circuit      = flag.String("circuit", "", "Circuit name (bridge or hook)")
	restartDelay = flag.Duration("restart-delay", time.Second, "Delay before restarting the child")
	runtimeDir   = flag.String("runtime-dir", runstate.DefaultDir, "Directory for liveness records")
	metricsAddr  = flag.String("metrics", "", "Prometheus metrics address (empty = disabled)")
	logLevel     = flag.String("log-level", "info", "Log level (debug, info, warn, error, silent)")
)

func main() {
	flag.Parse()

	level, err := logger.ParseLevel(*logLevel)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	logger.Init(level, os.Stderr, false)

	c := types.Circuit(*circuit)
	if c != types.CircuitBridge && c != types.CircuitHook {
		log.Fatalf("-circuit must be %q or %q", types.CircuitBridge, types.CircuitHook)
	}
	if len(flag.Args()) == 0 {
		log.Fatalf("no child command given; pass it after --")
	}

	m := metrics.New()
	if *metricsAddr != "" {
		go func() {
			if err := m.StartServer(*metricsAddr); err != nil {
				logger.Warn("Main", "metrics server: %v", err)
			}
		}()
	}

	sup, err := supervise.New(supervise.Config{
		Circuit:      c,
		RuntimeDir:   *runtimeDir,
		RestartDelay: *restartDelay,
		Command:      flag.Args(),
		Metrics:      m,
	})
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sup.Run(ctx); err != nil {
		logger.Error("Main", "%v", err)
		os.Exit(1)
	}
	logger.Info("Main", "stopped")
}
