package media

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/google/uuid"
)

// Target format for analysis: phone-band mono keeps the pitch band intact
// and the buffers small.
const analysisSampleRate = 16000

// DecodeAudio decodes any ffmpeg-readable audio source to a normalized mono
// sample buffer in [-1,1] plus its sample rate. Returns an AudioDecodeError
// when the source cannot be decoded.
func DecodeAudio(audioPath string) ([]float64, int, error) {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, 0, &AudioDecodeError{Path: audioPath, Err: fmt.Errorf("ffmpeg not found in PATH: %w", err)}
	}

	if _, err := os.Stat(audioPath); err != nil {
		return nil, 0, &AudioDecodeError{Path: audioPath, Err: err}
	}

	wavPath := filepath.Join(os.TempDir(), fmt.Sprintf("podium-%s.wav", uuid.New().String()))
	defer os.Remove(wavPath)

	cmd := exec.Command(ffmpegPath,
		"-y",
		"-i", audioPath,
		"-ac", "1",
		"-ar", fmt.Sprintf("%d", analysisSampleRate),
		"-sample_fmt", "s16",
		"-f", "wav",
		wavPath)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, 0, &AudioDecodeError{Path: audioPath, Err: fmt.Errorf("ffmpeg failed: %w (%s)", err, lastLine(stderr.String()))}
	}

	return readWAV(audioPath, wavPath)
}

func readWAV(srcPath, wavPath string) ([]float64, int, error) {
	f, err := os.Open(wavPath)
	if err != nil {
		return nil, 0, &AudioDecodeError{Path: srcPath, Err: err}
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, 0, &AudioDecodeError{Path: srcPath, Err: fmt.Errorf("failed to read PCM: %w", err)}
	}
	if buf == nil || buf.Format == nil || buf.Format.SampleRate <= 0 {
		return nil, 0, &AudioDecodeError{Path: srcPath, Err: fmt.Errorf("invalid WAV output")}
	}

	return normalizePCM(buf, decoder.BitDepth), buf.Format.SampleRate, nil
}

// normalizePCM scales integer PCM into [-1,1] by the source bit depth.
func normalizePCM(buf *audio.IntBuffer, bitDepth uint16) []float64 {
	scale := float64(int(1) << (bitDepth - 1))
	if scale <= 0 {
		scale = 1 << 15
	}

	samples := make([]float64, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float64(v) / scale
	}
	return samples
}

func lastLine(s string) string {
	lines := bytes.Split(bytes.TrimSpace([]byte(s)), []byte("\n"))
	if len(lines) == 0 {
		return ""
	}
	return string(bytes.TrimSpace(lines[len(lines)-1]))
}
