package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/podiumcoach/podium/internal/pipeline"
)

// AnalysisRecord is one stored analysis run. Result holds the full response
// document as JSON; the other columns are denormalized for listing.
type AnalysisRecord struct {
	ID           string          `json:"id"`
	CreatedAt    time.Time       `json:"created_at"`
	VideoError   string          `json:"video_error,omitempty"`
	AudioError   string          `json:"audio_error,omitempty"`
	OverallScore int             `json:"overall_score"`
	Result       json.RawMessage `json:"result,omitempty"`
}

type AnalysisRepo struct {
	db *DB
}

func NewAnalysisRepo(db *DB) *AnalysisRepo {
	return &AnalysisRepo{db: db}
}

func (r *AnalysisRepo) Create(ctx context.Context, result *pipeline.Result) (*AnalysisRecord, error) {
	doc, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	record := &AnalysisRecord{
		ID:           uuid.New().String(),
		CreatedAt:    time.Now().UTC(),
		VideoError:   result.VideoError,
		AudioError:   result.AudioError,
		OverallScore: result.OverallScore,
		Result:       doc,
	}

	query := `
		INSERT INTO analyses (id, created_at, video_error, audio_error, overall_score, result)
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err = r.db.conn.ExecContext(ctx, query,
		record.ID,
		record.CreatedAt,
		record.VideoError,
		record.AudioError,
		record.OverallScore,
		record.Result,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert analysis: %w", err)
	}

	return record, nil
}

func (r *AnalysisRepo) GetByID(ctx context.Context, id string) (*AnalysisRecord, error) {
	query := `
		SELECT id, created_at, video_error, audio_error, overall_score, result
		FROM analyses WHERE id = ?`

	var record AnalysisRecord
	err := r.db.conn.QueryRowContext(ctx, query, id).Scan(
		&record.ID,
		&record.CreatedAt,
		&record.VideoError,
		&record.AudioError,
		&record.OverallScore,
		&record.Result,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("analysis not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}

	return &record, nil
}

// List returns stored analyses newest first, without the result documents.
func (r *AnalysisRepo) List(ctx context.Context, limit int) ([]AnalysisRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, created_at, video_error, audio_error, overall_score
		FROM analyses ORDER BY created_at DESC LIMIT ?`

	rows, err := r.db.conn.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	defer rows.Close()

	var records []AnalysisRecord
	for rows.Next() {
		var record AnalysisRecord
		if err := rows.Scan(
			&record.ID,
			&record.CreatedAt,
			&record.VideoError,
			&record.AudioError,
			&record.OverallScore,
		); err != nil {
			return nil, fmt.Errorf("failed to scan analysis: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read analyses: %w", err)
	}

	return records, nil
}
