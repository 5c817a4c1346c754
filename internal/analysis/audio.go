package analysis

import (
	"math"
)

const (
	// Plausible fundamental frequency band for human speech.
	minPitchHz = 50.0
	maxPitchHz = 300.0

	rmsWindowSec   = 0.025
	pitchWindowSec = 0.050
	hopSec         = 0.010

	// Minimum normalized autocorrelation peak for a frame to count as voiced.
	voicingThreshold = 0.30

	// Frames quieter than this contribute no pitch estimate.
	silenceRMS = 1e-4
)

// AudioFeatures are the scalar prosodic features extracted from one audio
// input: the mean fundamental frequency over voiced frames and the mean
// short-time RMS energy.
type AudioFeatures struct {
	AveragePitch float64 `json:"average_pitch"`
	Intensity    float64 `json:"intensity"`
}

// FeatureExtractionError means signal processing failed on media that decoded
// fine. Silence or unvoiced-only input is not a failure.
type FeatureExtractionError struct {
	Reason string
}

func (e *FeatureExtractionError) Error() string {
	return "feature extraction failed: " + e.Reason
}

// ExtractFeatures computes AudioFeatures from a mono sample buffer in [-1,1].
// Pitch is estimated per frame by normalized autocorrelation restricted to
// lags inside the speech band; unvoiced and silent frames are skipped. A
// fully silent buffer yields AveragePitch 0 and Intensity approximately 0.
func ExtractFeatures(samples []float64, sampleRate int) (*AudioFeatures, error) {
	if sampleRate <= 0 {
		return nil, &FeatureExtractionError{Reason: "non-positive sample rate"}
	}
	if len(samples) == 0 {
		return nil, &FeatureExtractionError{Reason: "empty sample buffer"}
	}

	hop := int(float64(sampleRate) * hopSec)
	if hop < 1 {
		hop = 1
	}

	intensity := meanRMS(samples, int(float64(sampleRate)*rmsWindowSec), hop)

	pitchWindow := int(float64(sampleRate) * pitchWindowSec)
	pitchSum := 0.0
	voiced := 0
	for start := 0; start+pitchWindow <= len(samples); start += hop {
		frame := samples[start : start+pitchWindow]
		if frameRMS(frame) < silenceRMS {
			continue
		}
		pitch, ok := estimatePitch(frame, sampleRate)
		if !ok {
			continue
		}
		pitchSum += pitch
		voiced++
	}

	features := &AudioFeatures{Intensity: intensity}
	if voiced > 0 {
		features.AveragePitch = pitchSum / float64(voiced)
	}
	if math.IsNaN(features.AveragePitch) || math.IsInf(features.AveragePitch, 0) {
		features.AveragePitch = 0
	}
	if math.IsNaN(features.Intensity) || math.IsInf(features.Intensity, 0) {
		features.Intensity = 0
	}

	return features, nil
}

func meanRMS(samples []float64, window, hop int) float64 {
	if window < 1 || window > len(samples) {
		return frameRMS(samples)
	}

	sum := 0.0
	frames := 0
	for start := 0; start+window <= len(samples); start += hop {
		sum += frameRMS(samples[start : start+window])
		frames++
	}
	if frames == 0 {
		return 0
	}
	return sum / float64(frames)
}

func frameRMS(frame []float64) float64 {
	if len(frame) == 0 {
		return 0
	}
	energy := 0.0
	for _, s := range frame {
		energy += s * s
	}
	return math.Sqrt(energy / float64(len(frame)))
}

// estimatePitch finds the strongest normalized autocorrelation peak within
// the lag range of the speech band. Returns ok=false for unvoiced frames.
func estimatePitch(frame []float64, sampleRate int) (float64, bool) {
	minLag := int(float64(sampleRate) / maxPitchHz)
	maxLag := int(float64(sampleRate) / minPitchHz)
	if minLag < 1 {
		minLag = 1
	}
	if maxLag >= len(frame) {
		maxLag = len(frame) - 1
	}
	if minLag > maxLag {
		return 0, false
	}

	corrs := make([]float64, maxLag+1)
	bestCorr := 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		var cross, energyA, energyB float64
		for i := 0; i < len(frame)-lag; i++ {
			cross += frame[i] * frame[i+lag]
			energyA += frame[i] * frame[i]
			energyB += frame[i+lag] * frame[i+lag]
		}
		norm := math.Sqrt(energyA * energyB)
		if norm == 0 {
			continue
		}
		corrs[lag] = cross / norm
		if corrs[lag] > bestCorr {
			bestCorr = corrs[lag]
		}
	}

	if bestCorr < voicingThreshold {
		return 0, false
	}

	// The double-period lag correlates about as well as the true period, so
	// take the smallest local peak close to the best rather than the global
	// max. Keeps octave-down errors out of the contour.
	for lag := minLag; lag <= maxLag; lag++ {
		if corrs[lag] < 0.9*bestCorr {
			continue
		}
		if lag > minLag && corrs[lag] < corrs[lag-1] {
			continue
		}
		if lag < maxLag && corrs[lag] < corrs[lag+1] {
			continue
		}
		return float64(sampleRate) / float64(lag), true
	}

	return 0, false
}
