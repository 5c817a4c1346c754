package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/podiumcoach/podium/internal/database"
	"github.com/podiumcoach/podium/internal/pipeline"
	"github.com/podiumcoach/podium/internal/storage"
)

// Analyzer runs one analysis request end to end.
type Analyzer interface {
	Analyze(ctx context.Context, req pipeline.Request) *pipeline.Result
}

// History persists finished analyses. Stored best-effort: a storage failure
// is logged but never fails the request that produced the result.
type History interface {
	Create(ctx context.Context, result *pipeline.Result) (*database.AnalysisRecord, error)
	GetByID(ctx context.Context, id string) (*database.AnalysisRecord, error)
	List(ctx context.Context, limit int) ([]database.AnalysisRecord, error)
}

type App struct {
	Store         storage.Store
	Analyzer      Analyzer
	History       History
	MaxUploadSize int64
}

func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}

type analyzeResponse struct {
	*pipeline.Result
	AnalysisID string `json:"analysis_id,omitempty"`
}

func (app *App) AnalyzeHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, app.MaxUploadSize)

	if err := r.ParseMultipartForm(app.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "Request too large or malformed")
		return
	}

	videoPath, err := app.saveUpload(r, "video", "video/")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if videoPath != "" {
		defer app.Store.Remove(videoPath)
	}

	audioPath, err := app.saveUpload(r, "audio", "audio/")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if audioPath != "" {
		defer app.Store.Remove(audioPath)
	}

	prompt := r.FormValue("text_prompt")

	// A request with no inputs at all is still well-formed: the pipeline
	// returns the empty-default result.
	result := app.Analyzer.Analyze(r.Context(), pipeline.Request{
		VideoPath: videoPath,
		AudioPath: audioPath,
		Prompt:    prompt,
	})

	resp := analyzeResponse{Result: result}
	if app.History != nil {
		if record, err := app.History.Create(r.Context(), result); err != nil {
			log.Printf("[API] Failed to store analysis: %v", err)
		} else {
			resp.AnalysisID = record.ID
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

// saveUpload pulls one optional file field out of the form and parks it in
// the temp store. An absent field is not an error.
func (app *App) saveUpload(r *http.Request, field, wantPrefix string) (string, error) {
	file, header, err := r.FormFile(field)
	if err == http.ErrMissingFile {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, wantPrefix) && contentType != "application/octet-stream" {
		// Browsers are sloppy about multipart content types, fall back to
		// the extension.
		if filepath.Ext(header.Filename) == "" {
			return "", fmt.Errorf("unsupported %s file type", field)
		}
	}

	path, err := app.Store.SaveUpload(file, storage.FileInfo{
		Filename:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
	})
	if err != nil {
		return "", err
	}
	return path, nil
}

func (app *App) ListAnalysesHandler(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	records, err := app.History.List(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Error loading analyses")
		return
	}
	if records == nil {
		records = []database.AnalysisRecord{}
	}

	respondJSON(w, http.StatusOK, records)
}

func (app *App) GetAnalysisHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.NotFound(w, r)
		return
	}

	record, err := app.History.GetByID(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusNotFound, "Analysis not found")
		return
	}

	respondJSON(w, http.StatusOK, record)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[API] Failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
