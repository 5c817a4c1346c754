package narrative

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const (
	defaultBaseURL      = "https://generativelanguage.googleapis.com"
	defaultModel        = "gemini-2.5-pro"
	defaultPollInterval = time.Second
)

// File state values reported by the files API.
const (
	StateProcessing = "PROCESSING"
	StateActive     = "ACTIVE"
	StateFailed     = "FAILED"
)

// Client talks to the Gemini REST API: resumable file upload, processing-state
// polling and content generation. A single Client is read-only and shared
// across requests.
type Client struct {
	apiKey       string
	baseURL      string
	model        string
	pollInterval time.Duration
	httpClient   *http.Client
}

type ClientConfig struct {
	APIKey       string
	BaseURL      string
	Model        string
	PollInterval time.Duration
}

func NewClient(config ClientConfig) *Client {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.Model == "" {
		config.Model = defaultModel
	}
	if config.PollInterval <= 0 {
		config.PollInterval = defaultPollInterval
	}

	return &Client{
		apiKey:       config.APIKey,
		baseURL:      config.BaseURL,
		model:        config.Model,
		pollInterval: config.PollInterval,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// File is one uploaded asset as the remote side sees it.
type File struct {
	Name     string `json:"name"`
	URI      string `json:"uri"`
	MimeType string `json:"mimeType"`
	State    string `json:"state"`
}

type fileEnvelope struct {
	File File `json:"file"`
}

// UploadFile pushes a local file through the resumable upload protocol and
// returns the remote File handle, usually still in PROCESSING state.
func (c *Client) UploadFile(ctx context.Context, path, displayName, mimeType string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	meta, err := json.Marshal(map[string]any{
		"file": map[string]any{"display_name": displayName},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	startURL := fmt.Sprintf("%s/upload/v1beta/files?key=%s", c.baseURL, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, startURL, bytes.NewReader(meta))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Upload-Protocol", "resumable")
	req.Header.Set("X-Goog-Upload-Command", "start")
	req.Header.Set("X-Goog-Upload-Header-Content-Length", fmt.Sprintf("%d", len(data)))
	req.Header.Set("X-Goog-Upload-Header-Content-Type", mimeType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to start upload: %w", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	uploadURL := resp.Header.Get("X-Goog-Upload-URL")
	if resp.StatusCode != http.StatusOK || uploadURL == "" {
		return nil, fmt.Errorf("upload start failed: %s", resp.Status)
	}

	req, err = http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mimeType)
	req.Header.Set("X-Goog-Upload-Command", "upload, finalize")
	req.Header.Set("X-Goog-Upload-Offset", "0")

	resp, err = c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to upload bytes: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upload failed: %s: %s", resp.Status, string(body))
	}

	var envelope fileEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to unmarshal upload response: %w", err)
	}

	return &envelope.File, nil
}

// GetFile fetches the current state of an uploaded file.
func (c *Client) GetFile(ctx context.Context, name string) (*File, error) {
	url := fmt.Sprintf("%s/v1beta/%s?key=%s", c.baseURL, name, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("get file %s: %s: %s", name, resp.Status, string(body))
	}

	var file File
	if err := json.NewDecoder(resp.Body).Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to decode file: %w", err)
	}

	return &file, nil
}

// WaitForActive polls the file until it leaves PROCESSING. The wait is
// bounded by ctx; deadline expiry and the FAILED state both come back as
// RemoteAssetProcessingError.
func (c *Client) WaitForActive(ctx context.Context, file *File) (*File, error) {
	for file.State == StateProcessing {
		select {
		case <-ctx.Done():
			return nil, &RemoteAssetProcessingError{Name: file.Name, Reason: ctx.Err().Error()}
		case <-time.After(c.pollInterval):
		}

		refreshed, err := c.GetFile(ctx, file.Name)
		if err != nil {
			return nil, &RemoteAssetProcessingError{Name: file.Name, Reason: err.Error()}
		}
		file = refreshed
	}

	if file.State == StateFailed {
		return nil, &RemoteAssetProcessingError{Name: file.Name, Reason: "remote processing failed"}
	}

	return file, nil
}

// Part is one piece of a generation request: plain text or an uploaded file.
type Part struct {
	Text string
	File *File
}

type generatePart struct {
	Text     string            `json:"text,omitempty"`
	FileData *generateFileData `json:"file_data,omitempty"`
}

type generateFileData struct {
	MimeType string `json:"mime_type"`
	FileURI  string `json:"file_uri"`
}

type generateRequest struct {
	Contents []generateContent `json:"contents"`
}

type generateContent struct {
	Parts []generatePart `json:"parts"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// GenerateContent sends the assembled parts to the model and returns the
// concatenated text of the first candidate.
func (c *Client) GenerateContent(ctx context.Context, parts []Part) (string, error) {
	content := generateContent{}
	for _, p := range parts {
		if p.File != nil {
			content.Parts = append(content.Parts, generatePart{
				FileData: &generateFileData{MimeType: p.File.MimeType, FileURI: p.File.URI},
			})
			continue
		}
		content.Parts = append(content.Parts, generatePart{Text: p.Text})
	}

	body, err := json.Marshal(generateRequest{Contents: []generateContent{content}})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var out generateResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if out.Error != nil {
		return "", fmt.Errorf("generation API error: %s", out.Error.Message)
	}
	if len(out.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}

	var text bytes.Buffer
	for _, p := range out.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}

	return text.String(), nil
}
