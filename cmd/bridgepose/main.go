// Bridge camera pose telemetry process.
//
// Detects path markers inside the calibrated ROI, computes the camera
// position along the marker path (X) and the distance to the contributing
// marker (Y), hosts the shared Modbus TCP register server and updates the
// bridge register range in place after every sample.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
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
	modbusHost  = flag.String("modbus-host", "0.0.0.0", "Bind address for the register server")
	modbusPort  = flag.Int("modbus-port", 5020, "Bind port for the register server")
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
	engineCfg, err := cfg.BridgeEngineConfig()
	if err != nil {
		return err
	}

	camCfg := cfg.Bridge.Camera
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

	store := registers.NewStore(layout.StoreSize())
	server, err := registers.NewServer(fmt.Sprintf("%s:%d", *modbusHost, *modbusPort), store)
	if err != nil {
		return err
	}
	if err := server.Start(); err != nil {
		return err
	}
	defer server.Stop()

	src, err := camera.Open(ctx, camCfg)
	if err != nil {
		return err
	}
	defer src.Close()

	det := vision.NewArucoDetector()
	defer det.Close()

	engine := pose.NewBridgeEngine(engineCfg)
	logger.Info("Main", "running camera_id=%d roi=%v base_reg=%d fps=%.1f",
		camCfg.DeviceID, engineCfg.ROI, layout.BridgeBase, *fps)

	return telemetry.RunBridge(ctx, src, det, engine, store, layout, m, *fps)
}
