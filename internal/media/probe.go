package media

import (
	"bytes"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// VideoInfo holds the stream properties the sampler needs. FrameRate is 0
// when probing failed or the container does not declare one; the sampler then
// falls back to raw frame indexes as timestamps.
type VideoInfo struct {
	Duration  float64
	FrameRate float64
}

// String renders the probe outcome for logs. Zero values read as unknown.
func (info *VideoInfo) String() string {
	duration := "unknown"
	if info.Duration > 0 {
		duration = fmt.Sprintf("%.1fs", info.Duration)
	}
	rate := "unknown"
	if info.FrameRate > 0 {
		rate = fmt.Sprintf("%.2ffps", info.FrameRate)
	}
	return fmt.Sprintf("duration=%s rate=%s", duration, rate)
}

// ProbeVideo asks ffprobe for the first video stream's frame rate and the
// container duration. Probe failures are degraded mode, not errors: the
// zero VideoInfo is always usable.
func ProbeVideo(videoPath string) *VideoInfo {
	info := &VideoInfo{}

	ffprobePath, err := exec.LookPath("ffprobe")
	if err != nil {
		log.Printf("[PROBE] ffprobe not found, timestamps fall back to frame indexes")
		return info
	}

	cmd := exec.Command(ffprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=r_frame_rate",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath)

	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		log.Printf("[PROBE] ffprobe failed on %s: %v", videoPath, err)
		return info
	}

	for _, line := range strings.Split(stdout.String(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.Contains(line, "/") {
			if rate, ok := parseRate(line); ok {
				info.FrameRate = rate
			}
			continue
		}
		if duration, err := strconv.ParseFloat(line, 64); err == nil && duration > 0 {
			info.Duration = duration
		}
	}

	return info
}

// parseRate parses ffprobe's fractional rate notation, e.g. "30000/1001".
func parseRate(s string) (float64, bool) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return 0, false
	}
	num, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, false
	}
	den, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil || den == 0 {
		return 0, false
	}
	rate := num / den
	if rate <= 0 {
		return 0, false
	}
	return rate, true
}
