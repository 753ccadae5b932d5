// Package telemetry runs the sequential capture/compute/write loop of one
// circuit. Capture and pose computation are strictly single-threaded and
// paced to the configured sample rate; the register write is the only side
// effect per frame.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cranevision/pose-telemetry/internal/camera"
	"github.com/cranevision/pose-telemetry/internal/logger"
	"github.com/cranevision/pose-telemetry/internal/metrics"
)

// DefaultMaxCaptureFailures bounds consecutive transient capture errors
// before the loop escalates to a fatal camera loss.
const DefaultMaxCaptureFailures = 30

// FrameFunc processes one captured frame: detection, pose, register write.
type FrameFunc func(frame *camera.Frame) error

// Loop paces FrameFunc over frames from a single source.
type Loop struct {
	Source      camera.Source
	Process     FrameFunc
	Metrics     *metrics.Metrics
	SampleRate  float64 // frames per second
	MaxFailures int
}

func (l *Loop) period() time.Duration {
	rate := l.SampleRate
	if rate < 0.5 {
		rate = 0.5
	}
	return time.Duration(float64(time.Second) / rate)
}

func (l *Loop) maxFailures() int {
	if l.MaxFailures > 0 {
		return l.MaxFailures
	}
	return DefaultMaxCaptureFailures
}

// Run processes frames until ctx is cancelled or the camera is lost.
// Transient capture errors are retried in place up to the bounded count; a
// frame without markers is not an error and never interrupts the loop.
func (l *Loop) Run(ctx context.Context) error {
	period := l.period()
	failures := 0

	for {
		if ctx.Err() != nil {
			return nil
		}
		frameStart := time.Now()

		frame, err := l.Source.Read(ctx)
		switch {
		case err == nil:
			failures = 0
			l.Metrics.FramesRead.Add(1)
			if err := l.Process(frame); err != nil {
				logger.Warn("Telemetry", "frame %d: %v", frame.Seq, err)
			}
			l.Metrics.UpdateFrameLatency(frame.Timestamp)
		case errors.Is(err, camera.ErrCapture):
			failures++
			l.Metrics.CaptureErrors.Add(1)
			logger.Warn("Telemetry", "camera frame read failed (%d/%d)", failures, l.maxFailures())
			if failures >= l.maxFailures() {
				return fmt.Errorf("%w: %d consecutive capture failures", camera.ErrCameraLost, failures)
			}
		case errors.Is(err, camera.ErrCameraLost):
			if ctx.Err() != nil {
				return nil
			}
			return err
		default:
			return err
		}

		if elapsed := time.Since(frameStart); elapsed < period {
			timer := time.NewTimer(period - elapsed)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-timer.C:
			}
		}
	}
}
