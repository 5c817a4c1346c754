package vision

import (
	"fmt"
	"image"
	"os"

	pigo "github.com/esimov/pigo/core"
	log "github.com/sirupsen/logrus"
)

// DefaultMinQuality is the pigo cluster quality below which a detection is
// ignored. 5.0 keeps false positives on busy backgrounds rare.
const DefaultMinQuality = 5.0

// FaceDetector decides whether a frame contains at least one face. It does
// not localize or count faces beyond presence.
type FaceDetector interface {
	Detect(img image.Image) (bool, error)
}

// PigoDetector gates frames with the pigo cascade classifier. The unpacked
// cascade is read-only and safe to share across requests.
type PigoDetector struct {
	classifier *pigo.Pigo
	minQuality float32
}

// NewPigoDetector loads and unpacks the binary cascade at cascadePath.
func NewPigoDetector(cascadePath string, minQuality float64) (*PigoDetector, error) {
	cascade, err := os.ReadFile(cascadePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read cascade file: %w", err)
	}

	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack cascade: %w", err)
	}

	if minQuality <= 0 {
		minQuality = DefaultMinQuality
	}

	log.Printf("[VISION] Loaded face cascade from %s", cascadePath)

	return &PigoDetector{classifier: classifier, minQuality: float32(minQuality)}, nil
}

func (d *PigoDetector) Detect(img image.Image) (bool, error) {
	if img == nil {
		return false, fmt.Errorf("nil image")
	}

	bounds := img.Bounds()
	cols, rows := bounds.Dx(), bounds.Dy()
	if cols < 8 || rows < 8 {
		return false, fmt.Errorf("image too small for detection: %dx%d", cols, rows)
	}

	pixels := pigo.RgbToGrayscale(img)

	maxSize := cols
	if rows < maxSize {
		maxSize = rows
	}

	params := pigo.CascadeParams{
		MinSize:     20,
		MaxSize:     maxSize,
		ShiftFactor: 0.1,
		ScaleFactor: 1.1,
		ImageParams: pigo.ImageParams{
			Pixels: pixels,
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	dets := d.classifier.RunCascade(params, 0.0)
	dets = d.classifier.ClusterDetections(dets, 0.2)

	for _, det := range dets {
		if det.Q >= d.minQuality {
			return true, nil
		}
	}

	return false, nil
}
