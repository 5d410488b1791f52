//go:build sqlite

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"metatask/internal/model"

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

func newSQLiteStore(path string) (Store, error) {
	return NewSQLiteStore(path), nil
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

func (s *SQLiteStore) Reset(ctx context.Context) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		DELETE FROM runs;
		DELETE FROM loss_history;
		DELETE FROM family_summaries;
	`)
	return err
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run model.RunRecord) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := EncodeRun(run)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO runs (id, created_at_utc, schema_version, codec_version, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			created_at_utc = excluded.created_at_utc,
			schema_version = excluded.schema_version,
			codec_version = excluded.codec_version,
			payload = excluded.payload
	`, run.ID, run.CreatedAtUTC, run.SchemaVersion, run.CodecVersion, payload)
	return err
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (model.RunRecord, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return model.RunRecord{}, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM runs WHERE id = ?`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.RunRecord{}, false, nil
		}
		return model.RunRecord{}, false, err
	}

	run, err := DecodeRun(payload)
	if err != nil {
		return model.RunRecord{}, false, fmt.Errorf("decode run %s: %w", id, err)
	}
	return run, true, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context) ([]model.RunRecord, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT payload FROM runs ORDER BY created_at_utc DESC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.RunRecord
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		run, err := DecodeRun(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SaveLossHistory(ctx context.Context, runID string, history []float64) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := EncodeLossHistory(history)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO loss_history (run_id, payload)
		VALUES (?, ?)
		ON CONFLICT(run_id) DO UPDATE SET payload = excluded.payload
	`, runID, payload)
	return err
}

func (s *SQLiteStore) GetLossHistory(ctx context.Context, runID string) ([]float64, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM loss_history WHERE run_id = ?`, runID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	history, err := DecodeLossHistory(payload)
	if err != nil {
		return nil, false, fmt.Errorf("decode loss history %s: %w", runID, err)
	}
	return history, true, nil
}

func (s *SQLiteStore) SaveFamilySummary(ctx context.Context, summary model.FamilySummary) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := EncodeFamilySummary(summary)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO family_summaries (name, schema_version, codec_version, payload)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			schema_version = excluded.schema_version,
			codec_version = excluded.codec_version,
			payload = excluded.payload
	`, summary.Name, summary.SchemaVersion, summary.CodecVersion, payload)
	return err
}

func (s *SQLiteStore) GetFamilySummary(ctx context.Context, name string) (model.FamilySummary, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return model.FamilySummary{}, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM family_summaries WHERE name = ?`, name).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.FamilySummary{}, false, nil
		}
		return model.FamilySummary{}, false, err
	}

	summary, err := DecodeFamilySummary(payload)
	if err != nil {
		return model.FamilySummary{}, false, fmt.Errorf("decode family summary %s: %w", name, err)
	}
	return summary, true, nil
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
		return nil, errors.New("sqlite store is not initialized")
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			created_at_utc TEXT NOT NULL,
			schema_version INTEGER NOT NULL,
			codec_version INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS loss_history (
			run_id TEXT PRIMARY KEY,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS family_summaries (
			name TEXT PRIMARY KEY,
			schema_version INTEGER NOT NULL,
			codec_version INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
	`)
	return err
}
