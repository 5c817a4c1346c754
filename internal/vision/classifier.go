package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"net/http"
	"time"
)

// EmotionScore is one classifier verdict: the dominant label and its
// confidence in [0,1].
type EmotionScore struct {
	Label      string
	Confidence float64
}

// EmotionClassifier maps a frame known to contain a face to its dominant
// emotion. Implementations must be safe for concurrent use.
type EmotionClassifier interface {
	Classify(ctx context.Context, img image.Image) (*EmotionScore, error)
}

// HTTPClassifier calls an emotion-inference service: POST /detect with the
// frame as base64 JPEG, response is a list of label/score pairs.
type HTTPClassifier struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPClassifier(baseURL string) *HTTPClassifier {
	return &HTTPClassifier{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type detectRequest struct {
	Image string `json:"image"`
}

type detectResponse struct {
	Emotions []struct {
		Label string  `json:"label"`
		Score float64 `json:"score"`
	} `json:"emotions"`
}

func (c *HTTPClassifier) Classify(ctx context.Context, img image.Image) (*EmotionScore, error) {
	var frame bytes.Buffer
	if err := jpeg.Encode(&frame, img, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}

	body, err := json.Marshal(detectRequest{
		Image: base64.StdEncoding.EncodeToString(frame.Bytes()),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/detect", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("emotion service %s: %s", resp.Status, string(respBody))
	}

	var out detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(out.Emotions) == 0 {
		return nil, fmt.Errorf("no emotions in response")
	}

	// First-highest wins: ties keep the classifier-reported order.
	best := out.Emotions[0]
	for _, e := range out.Emotions[1:] {
		if e.Score > best.Score {
			best = e
		}
	}

	confidence := best.Score
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return &EmotionScore{Label: best.Label, Confidence: confidence}, nil
}
