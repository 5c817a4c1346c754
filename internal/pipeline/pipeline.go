package pipeline

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/podiumcoach/podium/internal/analysis"
	"github.com/podiumcoach/podium/internal/media"
	"github.com/podiumcoach/podium/internal/narrative"
	"github.com/podiumcoach/podium/internal/vision"
)

// FrameSource is the sampled-frame sequence consumed by the video branch.
type FrameSource interface {
	Next() (*media.SampledFrame, error)
	Close() error
}

// SamplerFactory opens a video and returns its frame sequence.
type SamplerFactory func(videoPath string, stride int) (FrameSource, error)

// AudioDecoder decodes an audio file to mono samples plus sample rate.
type AudioDecoder func(audioPath string) ([]float64, int, error)

// FeatureExtractor computes prosodic features from decoded samples.
type FeatureExtractor func(samples []float64, sampleRate int) (*analysis.AudioFeatures, error)

// DefaultSamplerFactory probes the source for its frame rate and opens a
// stride sampler on it.
func DefaultSamplerFactory(videoPath string, stride int) (FrameSource, error) {
	info := media.ProbeVideo(videoPath)
	log.Printf("[PIPELINE] Probed %s: %s", videoPath, info)
	return media.NewSampler(videoPath, stride, info.FrameRate)
}

const defaultNarrativeTimeout = 120 * time.Second

type Config struct {
	Stride           int
	NarrativeTimeout time.Duration
}

// Service runs the multimodal analysis pipeline. All handles are read-only
// after construction and shared across requests.
type Service struct {
	newSampler       SamplerFactory
	detector         vision.FaceDetector
	classifier       vision.EmotionClassifier
	decodeAudio      AudioDecoder
	extractFeatures  FeatureExtractor
	coach            narrative.Coach
	stride           int
	narrativeTimeout time.Duration
}

func NewService(
	newSampler SamplerFactory,
	detector vision.FaceDetector,
	classifier vision.EmotionClassifier,
	decodeAudio AudioDecoder,
	extractFeatures FeatureExtractor,
	coach narrative.Coach,
	config Config,
) *Service {
	if config.Stride < 1 {
		config.Stride = media.DefaultStride
	}
	if config.NarrativeTimeout <= 0 {
		config.NarrativeTimeout = defaultNarrativeTimeout
	}

	return &Service{
		newSampler:       newSampler,
		detector:         detector,
		classifier:       classifier,
		decodeAudio:      decodeAudio,
		extractFeatures:  extractFeatures,
		coach:            coach,
		stride:           config.Stride,
		narrativeTimeout: config.NarrativeTimeout,
	}
}

// Request points at the request-scoped media files. Every field is optional;
// the all-absent request yields an empty well-formed result.
type Request struct {
	VideoPath string
	AudioPath string
	Prompt    string
}

// Analyze runs both modality branches, then the narrative stage, and always
// returns a complete result. A failure in one branch never aborts the other
// or the request.
func (s *Service) Analyze(ctx context.Context, req Request) *Result {
	result := NewResult()

	var (
		wg       sync.WaitGroup
		timeline []analysis.Observation
		videoErr error
		features *analysis.AudioFeatures
		audioErr error
	)

	if req.VideoPath != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			timeline, videoErr = s.runVideoBranch(ctx, req.VideoPath)
		}()
	}

	if req.AudioPath != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			features, audioErr = s.runAudioBranch(req.AudioPath)
		}()
	}

	// Both branches must be terminal before the narrative prompt is built.
	wg.Wait()

	summary := analysis.Summarize(timeline)
	if req.VideoPath != "" {
		if videoErr != nil {
			log.Printf("[PIPELINE] Video analysis error: %v", videoErr)
			result.VideoError = fmt.Sprintf("Video analysis failed: %v", videoErr)
		}
		if timeline != nil {
			result.VideoTimeline = timeline
		}
		result.VideoPercentages = summary.Percentages
		result.VideoSummary = analysis.Sentence(summary)
	}

	if req.AudioPath != "" {
		if audioErr != nil {
			log.Printf("[PIPELINE] Audio analysis error: %v", audioErr)
			result.AudioError = fmt.Sprintf("Audio analysis failed: %v", audioErr)
		}
		if features != nil {
			result.AudioAnalysis["average_pitch"] = features.AveragePitch
			result.AudioAnalysis["intensity"] = features.Intensity
		}
	}

	s.runNarrativeStage(ctx, req, result, summary, features)

	return result
}

// runVideoBranch walks the sampled frames through the gate and classifier.
// Per-frame problems become timeline markers; only a source-level decode
// failure fails the branch.
func (s *Service) runVideoBranch(ctx context.Context, videoPath string) ([]analysis.Observation, error) {
	sampler, err := s.newSampler(videoPath, s.stride)
	if err != nil {
		return nil, err
	}
	defer sampler.Close()

	timeline := []analysis.Observation{}
	for {
		frame, err := sampler.Next()
		if err == io.EOF {
			break
		}
		if frame == nil {
			return timeline, fmt.Errorf("frame source stopped: %w", err)
		}
		if err != nil {
			timeline = append(timeline, analysis.Failed(frame.Timestamp, err.Error()))
			continue
		}

		present, err := s.detector.Detect(frame.Image)
		if err != nil {
			// Detector trouble on one frame reads as no face, with a note.
			timeline = append(timeline, analysis.Failed(frame.Timestamp, fmt.Sprintf("face detection: %v", err)))
			continue
		}
		if !present {
			timeline = append(timeline, analysis.Absent(frame.Timestamp))
			continue
		}

		score, err := s.classifier.Classify(ctx, frame.Image)
		if err != nil {
			timeline = append(timeline, analysis.Failed(frame.Timestamp, fmt.Sprintf("emotion classification: %v", err)))
			continue
		}
		timeline = append(timeline, analysis.Observed(frame.Timestamp, score.Label, score.Confidence))
	}

	log.Printf("[PIPELINE] Video branch done: %d observations", len(timeline))
	return timeline, nil
}

func (s *Service) runAudioBranch(audioPath string) (*analysis.AudioFeatures, error) {
	samples, sampleRate, err := s.decodeAudio(audioPath)
	if err != nil {
		return nil, err
	}

	features, err := s.extractFeatures(samples, sampleRate)
	if err != nil {
		return nil, err
	}

	log.Printf("[PIPELINE] Audio branch done: pitch=%.1fHz intensity=%.4f", features.AveragePitch, features.Intensity)
	return features, nil
}

func (s *Service) runNarrativeStage(ctx context.Context, req Request, result *Result, summary analysis.Summary, features *analysis.AudioFeatures) {
	if s.coach == nil {
		return
	}
	if req.VideoPath == "" && req.AudioPath == "" && req.Prompt == "" {
		return
	}

	nctx, cancel := context.WithTimeout(ctx, s.narrativeTimeout)
	defer cancel()

	feedback, raw, err := s.coach.Coach(nctx, narrative.CoachRequest{
		VideoPath:     req.VideoPath,
		AudioPath:     req.AudioPath,
		SignalSummary: signalSummary(summary, features),
		UserPrompt:    req.Prompt,
	})

	switch {
	case err != nil:
		log.Printf("[PIPELINE] Narrative stage error: %v", err)
		result.CoachingFeedback = fmt.Sprintf("Analysis failed: %v", err)
	case feedback == nil && raw != "":
		// Unparseable output degrades to the raw text, never to a failure.
		result.CoachingFeedback = raw
	case feedback != nil:
		result.VideoEmotions = feedback.VideoEmotions
		result.EmotionTimeline = feedback.EmotionTimeline
		result.BodyLanguage = feedback.BodyLanguage
		result.AudioFeedback = feedback.AudioFeedback
		result.CoachingFeedback = feedback.CoachingFeedback
		result.Strengths = feedback.Strengths
		result.ImprovementAreas = feedback.ImprovementAreas
		result.OverallScore = feedback.OverallScore
		result.ProfessionalTips = feedback.ProfessionalTips
	}
}

// signalSummary renders the locally measured signals for the narrative
// prompt.
func signalSummary(summary analysis.Summary, features *analysis.AudioFeatures) string {
	lines := []string{}
	if len(summary.Ranked) > 0 {
		lines = append(lines, "Facial emotions over time: "+analysis.Sentence(summary))
	}
	if features != nil {
		lines = append(lines, fmt.Sprintf("Average vocal pitch: %.1f Hz, mean intensity (RMS): %.4f", features.AveragePitch, features.Intensity))
	}
	return strings.Join(lines, "\n")
}
