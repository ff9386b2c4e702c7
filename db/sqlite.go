package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"cytodash/ml"
)

// PredictionRecord is one stored evaluation.
type PredictionRecord struct {
	ID                   int64        `json:"id"`
	SchemaVersion        string       `json:"schema_version"`
	Features             []float64    `json:"features"`
	Label                ml.Diagnosis `json:"label"`
	ProbabilityBenign    float64      `json:"probability_benign"`
	ProbabilityMalignant float64      `json:"probability_malignant"`
	CreatedAt            time.Time    `json:"created_at"`
}

// Store persists prediction history in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	database, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database failed: %w", err)
	}
	database.SetMaxOpenConns(1)

	query := `
    CREATE TABLE IF NOT EXISTS predictions (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        schema_version TEXT NOT NULL,
        features TEXT NOT NULL,
        predicted_label TEXT NOT NULL,
        probability_benign REAL NOT NULL,
        probability_malignant REAL NOT NULL,
        created_at DATETIME NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_predictions_created_at ON predictions(created_at);
    `
	if _, err := database.Exec(query); err != nil {
		database.Close()
		return nil, fmt.Errorf("create tables failed: %w", err)
	}
	return &Store{db: database}, nil
}

// SavePrediction stores record and returns its id.
func (s *Store) SavePrediction(ctx context.Context, record PredictionRecord) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("database not initialized")
	}
	if len(record.Features) == 0 {
		return 0, errors.New("features required")
	}
	features, err := json.Marshal(record.Features)
	if err != nil {
		return 0, err
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	if record.SchemaVersion == "" {
		record.SchemaVersion = ml.SchemaVersion
	}

	result, err := s.db.ExecContext(ctx, `
        INSERT INTO predictions (
            schema_version, features, predicted_label,
            probability_benign, probability_malignant, created_at
        ) VALUES (?, ?, ?, ?, ?, ?)`,
		record.SchemaVersion,
		string(features),
		string(record.Label),
		record.ProbabilityBenign,
		record.ProbabilityMalignant,
		record.CreatedAt.UTC(),
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// RecentPredictions returns up to limit records, newest first.
func (s *Store) RecentPredictions(ctx context.Context, limit int) ([]PredictionRecord, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("database not initialized")
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
        SELECT id, schema_version, features, predicted_label,
               probability_benign, probability_malignant, created_at
        FROM predictions
        ORDER BY created_at DESC, id DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []PredictionRecord
	for rows.Next() {
		var (
			r        PredictionRecord
			features string
			label    string
		)
		if err := rows.Scan(&r.ID, &r.SchemaVersion, &features, &label,
			&r.ProbabilityBenign, &r.ProbabilityMalignant, &r.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(features), &r.Features); err != nil {
			return nil, fmt.Errorf("decode features of prediction %d: %w", r.ID, err)
		}
		r.Label = ml.Diagnosis(label)
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
