package vision

import (
	"image"

	"gocv.io/x/gocv"

	"github.com/cranevision/pose-telemetry/internal/camera"
	"github.com/cranevision/pose-telemetry/pkg/types"
)

// Detector finds fiducial markers in a frame. The detection routine itself
// is opaque to the pose engines: they only consume observations. A non-empty
// roi restricts detection to that rectangle; corners are always reported in
// full-frame coordinates.
type Detector interface {
	Detect(frame *camera.Frame, roi image.Rectangle) ([]types.MarkerObservation, error)
	Close() error
}

// ArucoDetector detects DICT_5X5_50 ArUco markers through OpenCV.
type ArucoDetector struct {
	det  gocv.ArucoDetector
	gray gocv.Mat
}

// NewArucoDetector creates a detector with default parameters.
func NewArucoDetector() *ArucoDetector {
	dict := gocv.GetPredefinedDictionary(gocv.ArucoDict5x5_50)
	params := gocv.NewArucoDetectorParameters()
	return &ArucoDetector{
		det:  gocv.NewArucoDetectorWithParams(dict, params),
		gray: gocv.NewMat(),
	}
}

// Detect runs marker detection on the frame, clamping roi to the frame
// bounds. Zero detections is a normal outcome, not an error.
func (a *ArucoDetector) Detect(frame *camera.Frame, roi image.Rectangle) ([]types.MarkerObservation, error) {
	bounds := image.Rect(0, 0, frame.Width, frame.Height)
	region := roi.Intersect(bounds)

	var offX, offY float64
	src := frame.Mat
	var view gocv.Mat
	if !region.Empty() && region != bounds {
		view = src.Region(region)
		defer view.Close()
		src = view
		offX = float64(region.Min.X)
		offY = float64(region.Min.Y)
	}

	gocv.CvtColor(src, &a.gray, gocv.ColorBGRToGray)
	corners, ids, _ := a.det.DetectMarkers(a.gray)

	obs := make([]types.MarkerObservation, 0, len(ids))
	for i, id := range ids {
		if len(corners[i]) != 4 {
			continue
		}
		var o types.MarkerObservation
		o.ID = id
		o.Timestamp = frame.Timestamp
		for j, p := range corners[i] {
			o.Corners[j] = types.Point{X: float64(p.X) + offX, Y: float64(p.Y) + offY}
		}
		obs = append(obs, o)
	}
	return obs, nil
}

func (a *ArucoDetector) Close() error {
	a.gray.Close()
	return a.det.Close()
}
