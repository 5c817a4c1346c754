package narrative

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

const (
	videoInstruction = "Analyze this video for emotional expressions, body language, and presentation quality."
	audioInstruction = "Analyze this audio for speaking pace, tone variation, confidence level, and vocal clarity."

	jsonInstruction = `Please provide a comprehensive analysis in JSON format with these exact keys:
{
    "video_emotions": ["list of detected emotions from video"],
    "emotion_timeline": [{"timestamp": 0.0, "emotion": "emotion_name", "confidence": 0.95}],
    "body_language": "analysis of posture, gestures, and non-verbal communication",
    "audio_feedback": {
        "pitch_analysis": "evaluation of pitch variation and appropriateness",
        "pace": "speaking pace assessment",
        "confidence_level": "vocal confidence rating 1-10",
        "areas_to_improve": ["list of specific audio improvements"]
    },
    "coaching_feedback": "personalized coaching advice based on all inputs",
    "strengths": ["list of presentation strengths"],
    "improvement_areas": ["specific areas needing work"],
    "overall_score": 85,
    "professional_tips": ["actionable tips for improvement"]
}
Be constructive, specific, and encouraging in your feedback. Focus on actionable improvements.`
)

// CoachRequest bundles everything the narrative stage may reference: the
// analyzed media files, a digest of the locally extracted signals, and the
// user's free-text context. All fields are optional.
type CoachRequest struct {
	VideoPath     string
	AudioPath     string
	SignalSummary string
	UserPrompt    string
}

// Coach is the collaborator contract the pipeline depends on. The three-way
// result encodes the degradation ladder: (feedback, raw, nil) on success,
// (nil, raw, nil) when the output carried no JSON, (nil, "", err) when the
// call itself failed, and (nil, "", nil) when there was nothing to send.
type Coach interface {
	Coach(ctx context.Context, req CoachRequest) (*Feedback, string, error)
}

// Coach uploads whichever assets are present, waits for remote processing,
// and asks the model for structured coaching feedback. A single asset's
// upload failure is logged and skipped while other content remains; if every
// input failed to upload, the failure is returned as an error.
func (c *Client) Coach(ctx context.Context, req CoachRequest) (*Feedback, string, error) {
	parts := []Part{}
	var uploadErrs []string

	if req.VideoPath != "" {
		if file, err := c.uploadAndWait(ctx, req.VideoPath, "presentation_video"); err != nil {
			log.Printf("[NARRATIVE] Video upload error: %v", err)
			uploadErrs = append(uploadErrs, fmt.Sprintf("video upload: %v", err))
		} else {
			parts = append(parts, Part{File: file}, Part{Text: videoInstruction})
		}
	}

	if req.AudioPath != "" {
		if file, err := c.uploadAndWait(ctx, req.AudioPath, "presentation_audio"); err != nil {
			log.Printf("[NARRATIVE] Audio upload error: %v", err)
			uploadErrs = append(uploadErrs, fmt.Sprintf("audio upload: %v", err))
		} else {
			parts = append(parts, Part{File: file}, Part{Text: audioInstruction})
		}
	}

	if req.SignalSummary != "" {
		parts = append(parts, Part{Text: "Measured signals from local analysis:\n" + req.SignalSummary})
	}

	if req.UserPrompt != "" {
		parts = append(parts, Part{Text: "User's specific question/context: " + req.UserPrompt})
	}

	if len(parts) == 0 {
		// Skipped assets are only tolerable while something else made it
		// through; if they were all the request had, report the failure.
		if len(uploadErrs) > 0 {
			return nil, "", fmt.Errorf("no content left to send: %s", strings.Join(uploadErrs, "; "))
		}
		return nil, "", nil
	}

	parts = append(parts, Part{Text: jsonInstruction})

	text, err := c.GenerateContent(ctx, parts)
	if err != nil {
		return nil, "", err
	}

	feedback, err := ParseFeedback(text)
	if err != nil {
		log.Printf("[NARRATIVE] Failed to parse feedback JSON: %v", err)
		return nil, text, nil
	}

	return feedback, text, nil
}

func (c *Client) uploadAndWait(ctx context.Context, path, displayName string) (*File, error) {
	file, err := c.UploadFile(ctx, path, displayName, mimeFromExt(path))
	if err != nil {
		return nil, err
	}
	return c.WaitForActive(ctx, file)
}

func mimeFromExt(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".webm":
		return "video/webm"
	case ".wav":
		return "audio/wav"
	case ".mp3":
		return "audio/mpeg"
	case ".m4a", ".aac":
		return "audio/aac"
	case ".ogg":
		return "audio/ogg"
	default:
		return "application/octet-stream"
	}
}
