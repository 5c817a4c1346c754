package narrative

import (
	"encoding/json"
)

// AudioFeedback is the collaborator's qualitative read on vocal delivery.
type AudioFeedback struct {
	PitchAnalysis   string   `json:"pitch_analysis"`
	Pace            string   `json:"pace"`
	ConfidenceLevel string   `json:"confidence_level"`
	AreasToImprove  []string `json:"areas_to_improve"`
}

// Feedback is the structured coaching payload. Every field defaults when the
// collaborator omits it or returns it with an unexpected type; no field is
// mandatory.
type Feedback struct {
	VideoEmotions    []string      `json:"video_emotions"`
	EmotionTimeline  []any         `json:"emotion_timeline"`
	BodyLanguage     string        `json:"body_language"`
	AudioFeedback    AudioFeedback `json:"audio_feedback"`
	CoachingFeedback string        `json:"coaching_feedback"`
	Strengths        []string      `json:"strengths"`
	ImprovementAreas []string      `json:"improvement_areas"`
	OverallScore     int           `json:"overall_score"`
	ProfessionalTips []string      `json:"professional_tips"`
}

// EmptyFeedback returns a Feedback with type-stable defaults: empty slices
// and maps rather than nulls, zero score.
func EmptyFeedback() *Feedback {
	return &Feedback{
		VideoEmotions:    []string{},
		EmotionTimeline:  []any{},
		Strengths:        []string{},
		ImprovementAreas: []string{},
		ProfessionalTips: []string{},
		AudioFeedback:    AudioFeedback{AreasToImprove: []string{}},
	}
}

// ParseFeedback extracts the JSON object embedded in text and coerces it
// field by field. A missing or wrong-typed field keeps its default; only the
// absence of any JSON object at all is an error (ResponseParseError).
func ParseFeedback(text string) (*Feedback, error) {
	raw, err := ExtractJSON(text)
	if err != nil {
		return nil, err
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, &ResponseParseError{Raw: text, Err: err}
	}

	fb := EmptyFeedback()
	fb.VideoEmotions = stringSlice(obj["video_emotions"], fb.VideoEmotions)
	fb.EmotionTimeline = anySlice(obj["emotion_timeline"], fb.EmotionTimeline)
	fb.BodyLanguage = stringValue(obj["body_language"], "")
	fb.CoachingFeedback = stringValue(obj["coaching_feedback"], "")
	fb.Strengths = stringSlice(obj["strengths"], fb.Strengths)
	fb.ImprovementAreas = stringSlice(obj["improvement_areas"], fb.ImprovementAreas)
	fb.OverallScore = intValue(obj["overall_score"], 0)
	fb.ProfessionalTips = stringSlice(obj["professional_tips"], fb.ProfessionalTips)

	if rawAudio, ok := obj["audio_feedback"]; ok {
		var audio map[string]json.RawMessage
		if err := json.Unmarshal(rawAudio, &audio); err == nil {
			fb.AudioFeedback.PitchAnalysis = stringValue(audio["pitch_analysis"], "")
			fb.AudioFeedback.Pace = stringValue(audio["pace"], "")
			fb.AudioFeedback.ConfidenceLevel = stringValue(audio["confidence_level"], "")
			fb.AudioFeedback.AreasToImprove = stringSlice(audio["areas_to_improve"], fb.AudioFeedback.AreasToImprove)
		}
	}

	return fb, nil
}

func stringValue(raw json.RawMessage, fallback string) string {
	if raw == nil {
		return fallback
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	// Models sometimes return numbers where a rating string was asked for.
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return fallback
}

func intValue(raw json.RawMessage, fallback int) int {
	if raw == nil {
		return fallback
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return int(f)
	}
	return fallback
}

func stringSlice(raw json.RawMessage, fallback []string) []string {
	if raw == nil {
		return fallback
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil || out == nil {
		return fallback
	}
	return out
}

func anySlice(raw json.RawMessage, fallback []any) []any {
	if raw == nil {
		return fallback
	}
	var out []any
	if err := json.Unmarshal(raw, &out); err != nil || out == nil {
		return fallback
	}
	return out
}
