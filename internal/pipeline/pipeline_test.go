package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"strings"
	"testing"

	"github.com/podiumcoach/podium/internal/analysis"
	"github.com/podiumcoach/podium/internal/media"
	"github.com/podiumcoach/podium/internal/narrative"
	"github.com/podiumcoach/podium/internal/vision"
)

func testFrames(count, stride int) []*media.SampledFrame {
	frames := make([]*media.SampledFrame, count)
	for i := range frames {
		frames[i] = &media.SampledFrame{
			Index:     i * stride,
			Timestamp: float64(i) * 0.4,
			Image:     image.NewRGBA(image.Rect(0, 0, 8, 8)),
		}
	}
	return frames
}

type stubSource struct {
	frames []*media.SampledFrame
	errs   []error
	pos    int
	closed bool
}

func (s *stubSource) Next() (*media.SampledFrame, error) {
	if s.pos >= len(s.frames) {
		return nil, io.EOF
	}
	frame := s.frames[s.pos]
	var err error
	if s.pos < len(s.errs) {
		err = s.errs[s.pos]
	}
	s.pos++
	return frame, err
}

func (s *stubSource) Close() error {
	s.closed = true
	return nil
}

func sourceFactory(src *stubSource, err error) SamplerFactory {
	return func(videoPath string, stride int) (FrameSource, error) {
		if err != nil {
			return nil, err
		}
		return src, nil
	}
}

type stubDetector struct {
	results []bool
	errs    []error
	calls   int
}

func (d *stubDetector) Detect(img image.Image) (bool, error) {
	i := d.calls
	d.calls++
	var err error
	if i < len(d.errs) {
		err = d.errs[i]
	}
	present := true
	if i < len(d.results) {
		present = d.results[i]
	}
	return present, err
}

type stubClassifier struct {
	labels []string
	errs   []error
	calls  int
}

func (c *stubClassifier) Classify(ctx context.Context, img image.Image) (*vision.EmotionScore, error) {
	i := c.calls
	c.calls++
	if i < len(c.errs) && c.errs[i] != nil {
		return nil, c.errs[i]
	}
	label := "neutral"
	if i < len(c.labels) {
		label = c.labels[i]
	}
	return &vision.EmotionScore{Label: label, Confidence: 0.9}, nil
}

type stubCoach struct {
	feedback *narrative.Feedback
	raw      string
	err      error
	called   bool
	lastReq  narrative.CoachRequest
}

func (c *stubCoach) Coach(ctx context.Context, req narrative.CoachRequest) (*narrative.Feedback, string, error) {
	c.called = true
	c.lastReq = req
	return c.feedback, c.raw, c.err
}

func okAudio(samples []float64, rate int) AudioDecoder {
	return func(string) ([]float64, int, error) { return samples, rate, nil }
}

func newTestService(factory SamplerFactory, detector vision.FaceDetector, classifier vision.EmotionClassifier, decode AudioDecoder, coach narrative.Coach) *Service {
	if detector == nil {
		detector = &stubDetector{}
	}
	if classifier == nil {
		classifier = &stubClassifier{}
	}
	if decode == nil {
		decode = okAudio(make([]float64, 16000), 16000)
	}
	return NewService(factory, detector, classifier, decode, analysis.ExtractFeatures, coach, Config{Stride: 10})
}

func TestAnalyzeFullRequest(t *testing.T) {
	src := &stubSource{frames: testFrames(5, 10)}
	classifier := &stubClassifier{labels: []string{"happy", "happy", "neutral", "happy", "happy"}}
	coach := &stubCoach{
		feedback: &narrative.Feedback{
			VideoEmotions:    []string{"happy"},
			EmotionTimeline:  []any{},
			BodyLanguage:     "confident stance",
			CoachingFeedback: "well done",
			Strengths:        []string{"energy"},
			ImprovementAreas: []string{},
			OverallScore:     82,
			ProfessionalTips: []string{},
		},
		raw: `{"coaching_feedback": "well done"}`,
	}

	service := newTestService(sourceFactory(src, nil), nil, classifier, nil, coach)
	result := service.Analyze(context.Background(), Request{
		VideoPath: "talk.mp4",
		AudioPath: "talk.wav",
		Prompt:    "rate my talk",
	})

	if len(result.VideoTimeline) != 5 {
		t.Fatalf("Expected one observation per sampled frame, got %d", len(result.VideoTimeline))
	}
	if result.VideoPercentages["happy"] != 80.0 || result.VideoPercentages["neutral"] != 20.0 {
		t.Errorf("Unexpected percentages: %v", result.VideoPercentages)
	}
	if result.VideoSummary != "Mostly happy (80.0%), with neutral (20.0%)" {
		t.Errorf("Unexpected summary sentence: %q", result.VideoSummary)
	}
	if result.VideoError != "" || result.AudioError != "" {
		t.Errorf("Expected no branch errors, got video=%q audio=%q", result.VideoError, result.AudioError)
	}
	if _, ok := result.AudioAnalysis["intensity"]; !ok {
		t.Error("Expected measured audio features in audio_analysis")
	}
	if result.CoachingFeedback != "well done" || result.OverallScore != 82 {
		t.Errorf("Narrative feedback not merged: %+v", result)
	}
	if !src.closed {
		t.Error("Frame source must be closed")
	}
	if !strings.Contains(coach.lastReq.SignalSummary, "Mostly happy (80.0%)") {
		t.Errorf("Narrative prompt should carry the measured signals, got %q", coach.lastReq.SignalSummary)
	}
}

func TestAnalyzeVideoFailureDoesNotAbortAudio(t *testing.T) {
	decodeErr := &media.MediaDecodeError{Path: "talk.mp4", Err: errors.New("corrupt container")}
	coach := &stubCoach{raw: "some text", feedback: narrative.EmptyFeedback()}

	service := newTestService(sourceFactory(nil, decodeErr), nil, nil, nil, coach)
	result := service.Analyze(context.Background(), Request{VideoPath: "talk.mp4", AudioPath: "talk.wav"})

	if result.VideoError == "" {
		t.Error("Expected video error marker")
	}
	if result.AudioError != "" {
		t.Errorf("Audio branch must be isolated from video failure, got %q", result.AudioError)
	}
	if _, ok := result.AudioAnalysis["average_pitch"]; !ok {
		t.Error("Expected audio features despite video failure")
	}
	if len(result.VideoTimeline) != 0 {
		t.Errorf("Expected empty timeline, got %d entries", len(result.VideoTimeline))
	}
	if !coach.called {
		t.Error("Narrative stage must still run after a branch failure")
	}
}

func TestAnalyzeAudioFailureDoesNotAbortVideo(t *testing.T) {
	src := &stubSource{frames: testFrames(2, 10)}
	failingAudio := func(string) ([]float64, int, error) {
		return nil, 0, &media.AudioDecodeError{Path: "talk.wav", Err: errors.New("not audio")}
	}

	service := newTestService(sourceFactory(src, nil), nil, nil, failingAudio, &stubCoach{})
	result := service.Analyze(context.Background(), Request{VideoPath: "talk.mp4", AudioPath: "talk.wav"})

	if result.AudioError == "" {
		t.Error("Expected audio error marker")
	}
	if result.VideoError != "" {
		t.Errorf("Video branch must be isolated from audio failure, got %q", result.VideoError)
	}
	if len(result.VideoTimeline) != 2 {
		t.Errorf("Expected 2 observations, got %d", len(result.VideoTimeline))
	}
	if len(result.AudioAnalysis) != 0 {
		t.Errorf("Audio features must be absent after failure, got %v", result.AudioAnalysis)
	}
}

func TestAnalyzeEmptyRequest(t *testing.T) {
	coach := &stubCoach{}
	service := newTestService(sourceFactory(nil, errors.New("must not be called")), nil, nil, nil, coach)

	result := service.Analyze(context.Background(), Request{})

	if coach.called {
		t.Error("Narrative stage must not run for an empty request")
	}
	if result.VideoError != "" || result.AudioError != "" {
		t.Error("Empty request must not set error fields")
	}
	if result.VideoTimeline == nil || result.VideoPercentages == nil || result.Strengths == nil {
		t.Error("Defaults must be type-stable, not nil")
	}
	if result.CoachingFeedback != "" || result.OverallScore != 0 {
		t.Errorf("Expected zero-value feedback, got %+v", result)
	}
}

func TestAnalyzePerFrameFailuresStayInTimeline(t *testing.T) {
	src := &stubSource{frames: testFrames(4, 10)}
	detector := &stubDetector{
		results: []bool{true, false, true, true},
		errs:    []error{nil, nil, fmt.Errorf("detector crashed"), nil},
	}
	classifier := &stubClassifier{
		labels: []string{"happy", "", "", "sad"},
		errs:   []error{nil, nil, nil, nil},
	}

	service := newTestService(sourceFactory(src, nil), detector, classifier, nil, nil)
	result := service.Analyze(context.Background(), Request{VideoPath: "talk.mp4"})

	if len(result.VideoTimeline) != 4 {
		t.Fatalf("No frame may be dropped: expected 4 observations, got %d", len(result.VideoTimeline))
	}

	if !result.VideoTimeline[0].IsObserved() || result.VideoTimeline[0].Emotion != "happy" {
		t.Errorf("Frame 0 should be observed happy, got %+v", result.VideoTimeline[0])
	}
	if result.VideoTimeline[1].IsObserved() || result.VideoTimeline[1].Err != "" {
		t.Errorf("Frame 1 should be a clean absent marker, got %+v", result.VideoTimeline[1])
	}
	if result.VideoTimeline[2].IsObserved() || result.VideoTimeline[2].Err == "" {
		t.Errorf("Frame 2 should carry the detector error, got %+v", result.VideoTimeline[2])
	}
	if result.VideoTimeline[3].Emotion != "sad" {
		t.Errorf("Frame 3 should be observed sad, got %+v", result.VideoTimeline[3])
	}

	// Classifier runs only for gated-in frames: 0 and 3 (frame 2 failed at
	// the gate).
	if classifier.calls != 2 {
		t.Errorf("Expected 2 classifier calls, got %d", classifier.calls)
	}

	if result.VideoPercentages["happy"] != 50.0 || result.VideoPercentages["sad"] != 50.0 {
		t.Errorf("Summary must count observed frames only: %v", result.VideoPercentages)
	}
}

func TestAnalyzeClassifierFailureRecorded(t *testing.T) {
	src := &stubSource{frames: testFrames(2, 10)}
	classifier := &stubClassifier{
		labels: []string{"happy", ""},
		errs:   []error{nil, fmt.Errorf("model timeout")},
	}

	service := newTestService(sourceFactory(src, nil), nil, classifier, nil, nil)
	result := service.Analyze(context.Background(), Request{VideoPath: "talk.mp4"})

	if len(result.VideoTimeline) != 2 {
		t.Fatalf("Expected 2 observations, got %d", len(result.VideoTimeline))
	}
	failed := result.VideoTimeline[1]
	if failed.IsObserved() || !strings.Contains(failed.Err, "model timeout") {
		t.Errorf("Classifier failure should be a failed marker, got %+v", failed)
	}
}

func TestAnalyzeUnparseableNarrative(t *testing.T) {
	coach := &stubCoach{raw: "sorry, prose only today"}
	service := newTestService(sourceFactory(nil, errors.New("no video")), nil, nil, nil, coach)

	result := service.Analyze(context.Background(), Request{AudioPath: "talk.wav"})

	if result.CoachingFeedback != "sorry, prose only today" {
		t.Errorf("Raw text must surface as coaching feedback, got %q", result.CoachingFeedback)
	}
	if len(result.Strengths) != 0 || result.OverallScore != 0 {
		t.Error("Structured fields must stay at defaults on parse failure")
	}
}

func TestAnalyzeNarrativeCallFailure(t *testing.T) {
	coach := &stubCoach{err: errors.New("api quota exceeded")}
	service := newTestService(nil, nil, nil, nil, coach)

	result := service.Analyze(context.Background(), Request{Prompt: "just text"})

	if !strings.Contains(result.CoachingFeedback, "Analysis failed") {
		t.Errorf("Collaborator failure should degrade into coaching feedback, got %q", result.CoachingFeedback)
	}
	if result.VideoError != "" || result.AudioError != "" {
		t.Error("Narrative failure must not set branch error markers")
	}
}

func TestAnalyzeNoFacesDegenerateSentence(t *testing.T) {
	src := &stubSource{frames: testFrames(3, 10)}
	detector := &stubDetector{results: []bool{false, false, false}}

	service := newTestService(sourceFactory(src, nil), detector, nil, nil, nil)
	result := service.Analyze(context.Background(), Request{VideoPath: "talk.mp4"})

	if result.VideoSummary != "no clear emotion detected" {
		t.Errorf("Expected degenerate sentence, got %q", result.VideoSummary)
	}
	if len(result.VideoPercentages) != 0 {
		t.Errorf("Expected empty percentages, got %v", result.VideoPercentages)
	}
	if len(result.VideoTimeline) != 3 {
		t.Errorf("Absent frames must stay in the timeline, got %d", len(result.VideoTimeline))
	}
}

func TestAnalyzeIdempotent(t *testing.T) {
	run := func() *Result {
		src := &stubSource{frames: testFrames(4, 10)}
		classifier := &stubClassifier{labels: []string{"happy", "sad", "happy", "happy"}}
		service := newTestService(sourceFactory(src, nil), nil, classifier, nil, nil)
		return service.Analyze(context.Background(), Request{VideoPath: "talk.mp4"})
	}

	first := run()
	second := run()

	if len(first.VideoTimeline) != len(second.VideoTimeline) {
		t.Fatal("Timeline length changed between identical runs")
	}
	for i := range first.VideoTimeline {
		if first.VideoTimeline[i] != second.VideoTimeline[i] {
			t.Errorf("Observation %d differs between runs", i)
		}
	}
	if first.VideoSummary != second.VideoSummary {
		t.Error("Summary differs between identical runs")
	}
}
