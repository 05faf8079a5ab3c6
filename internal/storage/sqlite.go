package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"qusic/internal/model"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) SaveModel(ctx context.Context, rec model.ModelRecord) (string, error) {
	db, err := s.getDB()
	if err != nil {
		return "", err
	}

	prepared, err := prepareModel(rec)
	if err != nil {
		return "", err
	}
	payload, err := EncodeModel(prepared)
	if err != nil {
		return "", err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO models (id, schema_version, codec_version, ansatz, wires, params, created_at_utc, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			schema_version = excluded.schema_version,
			codec_version = excluded.codec_version,
			ansatz = excluded.ansatz,
			wires = excluded.wires,
			params = excluded.params,
			created_at_utc = excluded.created_at_utc,
			payload = excluded.payload
	`, prepared.ID, prepared.SchemaVersion, prepared.CodecVersion, prepared.Config.Ansatz,
		len(prepared.Config.Wires), prepared.Params.Len(), prepared.CreatedAtUTC, payload)
	if err != nil {
		return "", err
	}
	return prepared.ID, nil
}

func (s *SQLiteStore) LoadModel(ctx context.Context, location string) (model.ModelRecord, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return model.ModelRecord{}, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM models WHERE id = ?`, location).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.ModelRecord{}, false, nil
		}
		return model.ModelRecord{}, false, err
	}

	rec, err := DecodeModel(payload)
	if err != nil {
		return model.ModelRecord{}, false, fmt.Errorf("decode model %s: %w", location, err)
	}
	return rec, true, nil
}

func (s *SQLiteStore) ListModels(ctx context.Context) ([]model.ModelSummary, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, ansatz, wires, params, created_at_utc FROM models
		ORDER BY created_at_utc DESC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := make([]model.ModelSummary, 0)
	for rows.Next() {
		var summary model.ModelSummary
		if err := rows.Scan(&summary.ID, &summary.Ansatz, &summary.Wires, &summary.Params, &summary.CreatedAtUTC); err != nil {
			return nil, err
		}
		list = append(list, summary)
	}
	return list, rows.Err()
}

func (s *SQLiteStore) SaveTraining(ctx context.Context, rec model.TrainingRecord) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	if rec.RunID == "" {
		return fmt.Errorf("%w: run id is required", model.ErrInvalidConfig)
	}
	stampVersion(&rec.VersionedRecord)

	payload, err := EncodeTraining(rec)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO training (run_id, model_id, payload)
		VALUES (?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			model_id = excluded.model_id,
			payload = excluded.payload
	`, rec.RunID, rec.ModelID, payload)
	return err
}

func (s *SQLiteStore) GetTraining(ctx context.Context, runID string) (model.TrainingRecord, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return model.TrainingRecord{}, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM training WHERE run_id = ?`, runID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.TrainingRecord{}, false, nil
		}
		return model.TrainingRecord{}, false, err
	}

	rec, err := DecodeTraining(payload)
	if err != nil {
		return model.TrainingRecord{}, false, fmt.Errorf("decode training %s: %w", runID, err)
	}
	return rec, true, nil
}

func (s *SQLiteStore) SavePerformance(ctx context.Context, rec model.Recording) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	if rec.ID == "" {
		return fmt.Errorf("%w: recording id is required", model.ErrInvalidConfig)
	}
	stampVersion(&rec.VersionedRecord)

	payload, err := EncodeRecording(rec)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO recordings (id, model_id, payload)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			model_id = excluded.model_id,
			payload = excluded.payload
	`, rec.ID, rec.ModelID, payload)
	return err
}

func (s *SQLiteStore) GetPerformance(ctx context.Context, id string) (model.Recording, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return model.Recording{}, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM recordings WHERE id = ?`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Recording{}, false, nil
		}
		return model.Recording{}, false, err
	}

	rec, err := DecodeRecording(payload)
	if err != nil {
		return model.Recording{}, false, fmt.Errorf("decode recording %s: %w", id, err)
	}
	return rec, true, nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errNotInitialized
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS models (
			id TEXT PRIMARY KEY,
			schema_version INTEGER NOT NULL,
			codec_version INTEGER NOT NULL,
			ansatz TEXT NOT NULL,
			wires INTEGER NOT NULL,
			params INTEGER NOT NULL,
			created_at_utc TEXT NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS training (
			run_id TEXT PRIMARY KEY,
			model_id TEXT NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS recordings (
			id TEXT PRIMARY KEY,
			model_id TEXT NOT NULL,
			payload BLOB NOT NULL
		);
	`)
	return err
}
