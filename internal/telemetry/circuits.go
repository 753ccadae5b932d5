package telemetry

import (
	"context"
	"image"

	"github.com/cranevision/pose-telemetry/internal/camera"
	"github.com/cranevision/pose-telemetry/internal/logger"
	"github.com/cranevision/pose-telemetry/internal/metrics"
	"github.com/cranevision/pose-telemetry/internal/pose"
	"github.com/cranevision/pose-telemetry/internal/registers"
	"github.com/cranevision/pose-telemetry/internal/vision"
)

// RunBridge drives the bridge circuit: the server process updates its own
// register range in place after each sample.
func RunBridge(
	ctx context.Context,
	src camera.Source,
	det vision.Detector,
	engine *pose.BridgeEngine,
	store *registers.Store,
	layout registers.Layout,
	m *metrics.Metrics,
	sampleRate float64,
) error {
	loop := &Loop{
		Source:     src,
		Metrics:    m,
		SampleRate: sampleRate,
		Process: func(frame *camera.Frame) error {
			obs, err := det.Detect(frame, engine.ROI())
			if err != nil {
				return err
			}
			m.MarkersVisible.Store(uint64(len(obs)))

			sample := engine.Process(obs, frame.Width, frame.Height)
			if sample.Valid {
				m.FramesValid.Add(1)
				logger.Debug("BridgePose", "marker=%d X=%.4fm Y=%.4fm", sample.MarkerID, sample.X, sample.Y)
			} else {
				m.FramesInvalid.Add(1)
				logger.Debug("BridgePose", "no confirmed marker in ROI")
			}

			if err := store.Write(layout.BridgeBase, registers.EncodeBridge(sample)); err != nil {
				m.RegisterWriteErrors.Add(1)
				return err
			}
			m.RegisterWrites.Add(1)
			return nil
		},
	}
	return loop.Run(ctx)
}

// RunHook drives the hook circuit: a client process writing its disjoint
// range on the shared register server. Lost connections are retried with
// backoff by the client; the loop keeps sampling regardless.
func RunHook(
	ctx context.Context,
	src camera.Source,
	det vision.Detector,
	engine *pose.HookEngine,
	client *registers.Client,
	layout registers.Layout,
	m *metrics.Metrics,
	sampleRate float64,
) error {
	loop := &Loop{
		Source:     src,
		Metrics:    m,
		SampleRate: sampleRate,
		Process: func(frame *camera.Frame) error {
			obs, err := det.Detect(frame, image.Rectangle{})
			if err != nil {
				return err
			}
			m.MarkersVisible.Store(uint64(len(obs)))

			sample := engine.Process(obs, frame.Width, frame.Height)
			if sample.Valid {
				m.FramesValid.Add(1)
				logger.Debug("HookPose", "marker=%d distance=%.4fm dx=%.2fpx dy=%.2fpx",
					sample.MarkerID, sample.Distance, sample.DeviationX, sample.DeviationY)
			} else {
				m.FramesInvalid.Add(1)
				logger.Debug("HookPose", "marker id=%d not found", engine.MarkerID())
			}

			if err := client.WriteRegisters(layout.HookBase, registers.EncodeHook(sample)); err != nil {
				m.RegisterWriteErrors.Add(1)
				return err
			}
			m.RegisterWrites.Add(1)
			return nil
		},
	}
	return loop.Run(ctx)
}
