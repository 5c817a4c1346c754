package pipeline

import (
	"github.com/podiumcoach/podium/internal/analysis"
	"github.com/podiumcoach/podium/internal/narrative"
)

// Result is the single record every analysis request produces. Keys are
// always present with type-stable defaults; only the two branch error
// markers are omitted when empty.
type Result struct {
	VideoEmotions    []string                `json:"video_emotions"`
	EmotionTimeline  []any                   `json:"emotion_timeline"`
	VideoTimeline    []analysis.Observation  `json:"video_emotion_timestamps"`
	VideoPercentages map[string]float64      `json:"video_emotion_percentages"`
	VideoSummary     string                  `json:"video_summary"`
	BodyLanguage     string                  `json:"body_language"`
	AudioAnalysis    map[string]float64      `json:"audio_analysis"`
	AudioFeedback    narrative.AudioFeedback `json:"audio_feedback"`
	CoachingFeedback string                  `json:"coaching_feedback"`
	Strengths        []string                `json:"strengths"`
	ImprovementAreas []string                `json:"improvement_areas"`
	OverallScore     int                     `json:"overall_score"`
	ProfessionalTips []string                `json:"professional_tips"`
	VideoError       string                  `json:"video_error,omitempty"`
	AudioError       string                  `json:"audio_error,omitempty"`
}

// NewResult returns a Result with every collection initialized, so the JSON
// encoding never carries nulls.
func NewResult() *Result {
	return &Result{
		VideoEmotions:    []string{},
		EmotionTimeline:  []any{},
		VideoTimeline:    []analysis.Observation{},
		VideoPercentages: map[string]float64{},
		AudioAnalysis:    map[string]float64{},
		AudioFeedback:    narrative.AudioFeedback{AreasToImprove: []string{}},
		Strengths:        []string{},
		ImprovementAreas: []string{},
		ProfessionalTips: []string{},
	}
}
