package vision

import (
	"context"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
)

func testImage() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 32, 32))
}

func emotionServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func TestHTTPClassifierClassify(t *testing.T) {
	tests := []struct {
		name           string
		response       string
		wantLabel      string
		wantConfidence float64
		wantErr        bool
	}{
		{
			name:           "dominant label",
			response:       `{"emotions":[{"label":"neutral","score":0.2},{"label":"happy","score":0.7},{"label":"sad","score":0.1}]}`,
			wantLabel:      "happy",
			wantConfidence: 0.7,
		},
		{
			name:           "tie keeps reported order",
			response:       `{"emotions":[{"label":"angry","score":0.5},{"label":"fear","score":0.5}]}`,
			wantLabel:      "angry",
			wantConfidence: 0.5,
		},
		{
			name:           "confidence clamped",
			response:       `{"emotions":[{"label":"happy","score":1.3}]}`,
			wantLabel:      "happy",
			wantConfidence: 1.0,
		},
		{
			name:     "empty emotion list",
			response: `{"emotions":[]}`,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := emotionServer(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/detect" {
					t.Errorf("Expected /detect path, got %s", r.URL.Path)
				}
				var req detectRequest
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					t.Errorf("Failed to decode request: %v", err)
				}
				if req.Image == "" {
					t.Error("Expected base64 frame in request")
				}
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(tt.response))
			})

			classifier := NewHTTPClassifier(server.URL)
			score, err := classifier.Classify(context.Background(), testImage())

			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Failed to classify: %v", err)
			}
			if score.Label != tt.wantLabel {
				t.Errorf("Expected label %s, got %s", tt.wantLabel, score.Label)
			}
			if score.Confidence != tt.wantConfidence {
				t.Errorf("Expected confidence %v, got %v", tt.wantConfidence, score.Confidence)
			}
		})
	}
}

func TestHTTPClassifierServerError(t *testing.T) {
	server := emotionServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	})

	classifier := NewHTTPClassifier(server.URL)
	if _, err := classifier.Classify(context.Background(), testImage()); err == nil {
		t.Fatal("Expected error for 500 response")
	}
}

func TestNewPigoDetectorMissingCascade(t *testing.T) {
	_, err := NewPigoDetector(filepath.Join(t.TempDir(), "missing.cascade"), 0)
	if err == nil {
		t.Fatal("Expected error for missing cascade file")
	}
}
