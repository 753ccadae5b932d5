// Hook camera pose telemetry process.
//
// Detects the single target marker, computes the hook distance plus the
// marker's pixel deviation from the frame center, and writes the hook
// register range on the shared Modbus TCP server hosted by the bridge
// process.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/cranevision/pose-telemetry/internal/camera"
	"github.com/cranevision/pose-telemetry/internal/config"
	"github.com/cranevision/pose-telemetry/internal/logger"
	"github.com/cranevision/pose-telemetry/internal/metrics"
	"github.com/cranevision/pose-telemetry/internal/pose"
	"github.com/cranevision/pose-telemetry/internal/registers"
	"github.com/cranevision/pose-telemetry/internal/telemetry"
	"github.com/cranevision/pose-telemetry/internal/vision"
)

var (
	configPath  = flag.String("config", "data/calibration_config.json", "Calibration config file")
	fps         = flag.Float64("fps", 8.0, "Processing frequency")
	modbusHost  = flag.String("modbus-host", "", "Shared register server host (overrides config)")
	modbusPort  = flag.Int("modbus-port", 0, "Shared register server port (overrides config)")
	cameraID    = flag.Int("camera-id", -1, "Override camera_id from config")
	backend     = flag.String("backend", "", "Override camera backend from config (generic, device, pipeline, jetson)")
	metricsAddr = flag.String("metrics", "", "Prometheus metrics address (empty = disabled)")
	logLevel    = flag.String("log-level", "info", "Log level (debug, info, warn, error, silent)")
	logColor    = flag.Bool("log-color", false, "Enable colored log output")
)

func main() {
	flag.Parse()

	level, err := logger.ParseLevel(*logLevel)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	logger.Init(level, os.Stderr, *logColor)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logger.Error("Main", "%v", err)
		if errors.Is(err, camera.ErrCameraUnavailable) {
			os.Exit(2)
		}
		os.Exit(1)
	}
	logger.Info("Main", "stopped")
}

func run(ctx context.Context) error {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	layout, err := cfg.Layout()
	if err != nil {
		return err
	}

	host := cfg.Modbus.Host
	if *modbusHost != "" {
		host = *modbusHost
	}
	port := cfg.Modbus.Port
	if *modbusPort != 0 {
		port = *modbusPort
	}

	camCfg := cfg.Hook.Camera
	if *cameraID >= 0 {
		camCfg.DeviceID = *cameraID
	}
	if *backend != "" {
		camCfg.Backend = camera.Backend(*backend)
	}

	m := metrics.New()
	if *metricsAddr != "" {
		go func() {
			if err := m.StartServer(*metricsAddr); err != nil {
				logger.Warn("Main", "metrics server: %v", err)
			}
		}()
	}

	client, err := registers.NewClient(host, port, layout.UnitID)
	if err != nil {
		return err
	}
	client.OnReconnect = func() { m.Reconnects.Add(1) }
	if err := client.Connect(); err != nil {
		// The bridge process may still be coming up; the write path keeps
		// retrying with backoff.
		logger.Warn("Main", "register server not reachable yet: %v", err)
	}
	defer client.Close()

	src, err := camera.Open(ctx, camCfg)
	if err != nil {
		return err
	}
	defer src.Close()

	det := vision.NewArucoDetector()
	defer det.Close()

	engine := pose.NewHookEngine(cfg.HookEngineConfig())
	logger.Info("Main", "running camera_id=%d target_marker=%d modbus=%s:%d base_reg=%d fps=%.1f",
		camCfg.DeviceID, engine.MarkerID(), host, port, layout.HookBase, *fps)

	return telemetry.RunHook(ctx, src, det, engine, client, layout, m, *fps)
}
