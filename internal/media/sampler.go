package media

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"sort"

	log "github.com/sirupsen/logrus"
)

// DefaultStride samples every 10th decoded frame.
const DefaultStride = 10

// SampledFrame is one decoded frame picked by the stride. Index is the
// position in the full decoded stream, Timestamp is Index divided by the
// declared frame rate (or the raw index when the rate is unknown).
type SampledFrame struct {
	Index     int
	Timestamp float64
	Image     image.Image
}

// Sampler yields every Nth frame of a video in order. It is finite and
// non-restartable: one ffmpeg pass dumps the selected frames to a private
// temp directory and Next decodes them one at a time, deleting each file
// after use. Close removes whatever is left.
type Sampler struct {
	stride    int
	frameRate float64
	frameDir  string
	files     []string
	pos       int
}

// NewSampler opens videoPath and prepares the sampled frame sequence.
// Returns a MediaDecodeError when the source cannot be decoded at all.
func NewSampler(videoPath string, stride int, frameRate float64) (*Sampler, error) {
	if stride < 1 {
		stride = DefaultStride
	}

	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, &MediaDecodeError{Path: videoPath, Err: fmt.Errorf("ffmpeg not found in PATH: %w", err)}
	}

	if _, err := os.Stat(videoPath); err != nil {
		return nil, &MediaDecodeError{Path: videoPath, Err: err}
	}

	frameDir, err := os.MkdirTemp("", "podium-frames-")
	if err != nil {
		return nil, &MediaDecodeError{Path: videoPath, Err: fmt.Errorf("failed to create temp directory: %w", err)}
	}

	args := []string{
		"-i", videoPath,
		"-vf", fmt.Sprintf("select=not(mod(n\\,%d))", stride),
		"-vsync", "0",
		"-q:v", "2",
		filepath.Join(frameDir, "frame_%06d.jpg"),
	}

	cmd := exec.Command(ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	runErr := cmd.Run()

	files, _ := filepath.Glob(filepath.Join(frameDir, "frame_*.jpg"))
	sort.Strings(files)

	if len(files) == 0 {
		os.RemoveAll(frameDir)
		if runErr != nil {
			log.Printf("[SAMPLER] ffmpeg stderr: %s", stderr.String())
			return nil, &MediaDecodeError{Path: videoPath, Err: fmt.Errorf("ffmpeg failed: %w", runErr)}
		}
		return nil, &MediaDecodeError{Path: videoPath, Err: fmt.Errorf("no frames decoded")}
	}

	if !(frameRate > 0) || math.IsInf(frameRate, 0) {
		log.Printf("[SAMPLER] frame rate unknown for %s, using frame indexes as timestamps", videoPath)
		frameRate = 0
	}

	log.Printf("[SAMPLER] %d frames sampled from %s (stride %d)", len(files), videoPath, stride)

	return &Sampler{
		stride:    stride,
		frameRate: frameRate,
		frameDir:  frameDir,
		files:     files,
	}, nil
}

// Next returns the next sampled frame, or io.EOF when the sequence is done.
// A frame whose image fails to decode is still returned (without Image) so
// the caller can record it and keep going.
func (s *Sampler) Next() (*SampledFrame, error) {
	if s.pos >= len(s.files) {
		return nil, io.EOF
	}

	path := s.files[s.pos]
	frame := &SampledFrame{Index: s.pos * s.stride}
	if s.frameRate > 0 {
		frame.Timestamp = float64(frame.Index) / s.frameRate
	} else {
		frame.Timestamp = float64(frame.Index)
	}
	s.pos++

	defer os.Remove(path)

	f, err := os.Open(path)
	if err != nil {
		return frame, fmt.Errorf("failed to open frame %d: %w", frame.Index, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return frame, fmt.Errorf("failed to decode frame %d: %w", frame.Index, err)
	}

	frame.Image = img
	return frame, nil
}

// Close removes the sampler's temp directory.
func (s *Sampler) Close() error {
	s.pos = len(s.files)
	return os.RemoveAll(s.frameDir)
}
