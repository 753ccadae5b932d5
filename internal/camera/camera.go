package camera

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gocv.io/x/gocv"

	"github.com/cranevision/pose-telemetry/internal/logger"
)

// Backend selects the capture implementation for a camera. Selection is
// purely data-driven from configuration; nothing above Open dispatches on it.
type Backend string

const (
	// BackendGeneric opens the camera by numeric device index through the
	// default OpenCV capture API.
	BackendGeneric Backend = "generic"
	// BackendDevice opens a /dev/video* node through V4L2.
	BackendDevice Backend = "device"
	// BackendPipeline hands a raw GStreamer pipeline string to the capture
	// layer, bypassing all structured parameters.
	BackendPipeline Backend = "pipeline"
	// BackendJetson builds the nvarguscamerasrc pipeline for a Jetson CSI
	// sensor from the structured parameters.
	BackendJetson Backend = "jetson"
)

var (
	// ErrCameraUnavailable means the device could not be opened at all:
	// absent hardware, or the camera is held by another process. Fatal at
	// open time; the supervisor is expected to restart us.
	ErrCameraUnavailable = errors.New("camera unavailable")

	// ErrCapture is a transient per-frame failure. Callers retry in place
	// up to a bounded count before escalating.
	ErrCapture = errors.New("frame capture failed")

	// ErrCameraLost means the device went away mid-session. Fatal.
	ErrCameraLost = errors.New("camera lost")
)

// Config describes one camera. Immutable once a capture session starts.
type Config struct {
	Backend  Backend `json:"backend"`
	DeviceID int     `json:"camera_id"`
	Device   string  `json:"device,omitempty"` // hardware path for BackendDevice
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	FPS      int     `json:"fps"`
	Pipeline string  `json:"pipeline,omitempty"` // raw override for BackendPipeline

	OpenTimeout time.Duration `json:"-"`
	ReadTimeout time.Duration `json:"-"`
}

func (c Config) openTimeout() time.Duration {
	if c.OpenTimeout > 0 {
		return c.OpenTimeout
	}
	return 5 * time.Second
}

func (c Config) readTimeout() time.Duration {
	if c.ReadTimeout > 0 {
		return c.ReadTimeout
	}
	return 2 * time.Second
}

// Frame is one captured image. The Mat is owned by the source and reused on
// the next Read; consumers must be done with it before reading again.
type Frame struct {
	Mat       gocv.Mat
	Width     int
	Height    int
	Seq       uint64
	Timestamp time.Time
}

// Source is the single capability set all backends satisfy.
type Source interface {
	Read(ctx context.Context) (*Frame, error)
	Close() error
}

// JetsonPipeline builds the nvarguscamerasrc capture pipeline for a Jetson
// CSI sensor.
func JetsonPipeline(sensorID, width, height, fps int) string {
	return fmt.Sprintf(
		"nvarguscamerasrc sensor-id=%d ! "+
			"video/x-raw(memory:NVMM), width=%d, height=%d, framerate=%d/1 ! "+
			"nvvidconv ! video/x-raw, format=BGRx ! "+
			"videoconvert ! video/x-raw, format=BGR ! "+
			"appsink drop=1",
		sensorID, width, height, fps)
}

// Open opens the configured camera. It fails fast with ErrCameraUnavailable
// instead of hanging when the hardware is absent or already owned.
func Open(ctx context.Context, cfg Config) (Source, error) {
	type result struct {
		cap *gocv.VideoCapture
		err error
	}
	done := make(chan result, 1)

	go func() {
		cap, err := openCapture(cfg)
		done <- result{cap, err}
	}()

	timer := time.NewTimer(cfg.openTimeout())
	defer timer.Stop()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCameraUnavailable, r.err)
		}
		if !r.cap.IsOpened() {
			r.cap.Close()
			return nil, fmt.Errorf("%w: backend=%s camera_id=%d", ErrCameraUnavailable, cfg.Backend, cfg.DeviceID)
		}
		applyProperties(r.cap, cfg)
		logger.Info("Camera", "opened backend=%s camera_id=%d %dx%d@%d", cfg.Backend, cfg.DeviceID, cfg.Width, cfg.Height, cfg.FPS)
		return &gocvSource{cap: r.cap, cfg: cfg, mat: gocv.NewMat()}, nil
	case <-timer.C:
		// The open will eventually return; release the handle when it does.
		go func() {
			if r := <-done; r.err == nil && r.cap != nil {
				r.cap.Close()
			}
		}()
		return nil, fmt.Errorf("%w: open timed out after %s", ErrCameraUnavailable, cfg.openTimeout())
	case <-ctx.Done():
		go func() {
			if r := <-done; r.err == nil && r.cap != nil {
				r.cap.Close()
			}
		}()
		return nil, fmt.Errorf("%w: %v", ErrCameraUnavailable, ctx.Err())
	}
}

func openCapture(cfg Config) (*gocv.VideoCapture, error) {
	switch cfg.Backend {
	case BackendGeneric, "":
		return gocv.OpenVideoCapture(cfg.DeviceID)
	case BackendDevice:
		id, err := deviceIndex(cfg)
		if err != nil {
			return nil, err
		}
		return gocv.OpenVideoCaptureWithAPI(id, gocv.VideoCaptureV4L2)
	case BackendPipeline:
		if cfg.Pipeline == "" {
			return nil, errors.New("pipeline backend requires a pipeline string")
		}
		return gocv.OpenVideoCaptureWithAPI(cfg.Pipeline, gocv.VideoCaptureGstreamer)
	case BackendJetson:
		pipeline := JetsonPipeline(cfg.DeviceID, cfg.Width, cfg.Height, cfg.FPS)
		return gocv.OpenVideoCaptureWithAPI(pipeline, gocv.VideoCaptureGstreamer)
	default:
		return nil, fmt.Errorf("unknown camera backend %q", cfg.Backend)
	}
}

func deviceIndex(cfg Config) (int, error) {
	if cfg.Device == "" {
		return cfg.DeviceID, nil
	}
	suffix := strings.TrimPrefix(cfg.Device, "/dev/video")
	if id, err := strconv.Atoi(suffix); err == nil {
		return id, nil
	}
	return 0, fmt.Errorf("cannot derive device index from %q", cfg.Device)
}

func applyProperties(cap *gocv.VideoCapture, cfg Config) {
	// Pipeline-style backends fix geometry inside the pipeline itself.
	if cfg.Backend == BackendPipeline || cfg.Backend == BackendJetson {
		return
	}
	if cfg.Width > 0 {
		cap.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	}
	if cfg.Height > 0 {
		cap.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	}
	if cfg.FPS > 0 {
		cap.Set(gocv.VideoCaptureFPS, float64(cfg.FPS))
	}
}

type gocvSource struct {
	cap    *gocv.VideoCapture
	cfg    Config
	mat    gocv.Mat
	seq    uint64
	closed bool
	lost   bool
}

// Read grabs the next frame, blocking up to the configured read timeout.
// A timeout means the capture thread is wedged and the handle can no longer
// be trusted, so it reports ErrCameraLost rather than a transient failure.
func (s *gocvSource) Read(ctx context.Context) (*Frame, error) {
	if s.closed || s.lost {
		return nil, ErrCameraLost
	}

	ok := make(chan bool, 1)
	go func() { ok <- s.cap.Read(&s.mat) }()

	timer := time.NewTimer(s.cfg.readTimeout())
	defer timer.Stop()

	select {
	case got := <-ok:
		if !got || s.mat.Empty() {
			return nil, ErrCapture
		}
	case <-timer.C:
		s.lost = true
		return nil, fmt.Errorf("%w: read timed out after %s", ErrCameraLost, s.cfg.readTimeout())
	case <-ctx.Done():
		s.lost = true
		return nil, fmt.Errorf("%w: %v", ErrCameraLost, ctx.Err())
	}

	s.seq++
	return &Frame{
		Mat:       s.mat,
		Width:     s.mat.Cols(),
		Height:    s.mat.Rows(),
		Seq:       s.seq,
		Timestamp: time.Now(),
	}, nil
}

func (s *gocvSource) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.lost {
		// A wedged capture thread may still hold the Mat. The process is
		// exiting; leak the handle instead of racing it.
		return nil
	}
	s.mat.Close()
	return s.cap.Close()
}
