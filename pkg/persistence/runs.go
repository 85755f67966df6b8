package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"supportflow/pkg/state"
)

// ErrRunNotFound is returned when a run ID has no persisted record.
var ErrRunNotFound = errors.New("run not found")

// RunRecord is one persisted run, captured at a suspension point so the
// pipeline can resume from the exact stage it stopped at.
type RunRecord struct {
	ID        string
	Status    string
	Stage     string
	Ability   string
	Request   *state.Request
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SaveRun inserts or updates the persisted record for a run.
func (s *Store) SaveRun(rec *RunRecord) error {
	payload, err := json.Marshal(rec.Request)
	if err != nil {
		return fmt.Errorf("failed to marshal run state: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO runs (id, status, stage, ability, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			stage = excluded.stage,
			ability = excluded.ability,
			payload = excluded.payload,
			updated_at = CURRENT_TIMESTAMP`,
		rec.ID, rec.Status, rec.Stage, rec.Ability, string(payload))
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", rec.ID, err)
	}

	s.logger.Debug("saved run %s at stage %s (%s)", rec.ID, rec.Stage, rec.Status)
	return nil
}

// LoadRun retrieves a persisted run by ID, restoring the request state.
func (s *Store) LoadRun(id string) (*RunRecord, error) {
	row := s.db.QueryRow(`
		SELECT id, status, stage, ability, payload, created_at, updated_at
		FROM runs WHERE id = ?`, id)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", id, err)
	}
	return rec, nil
}

// DeleteRun removes a run record, typically after successful completion.
func (s *Store) DeleteRun(id string) error {
	if _, err := s.db.Exec(`DELETE FROM runs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete run %s: %w", id, err)
	}
	return nil
}

// ListSuspended returns every run persisted with the given status, oldest
// first.
func (s *Store) ListSuspended(status string) ([]*RunRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, status, stage, ability, payload, created_at, updated_at
		FROM runs WHERE status = ? ORDER BY created_at ASC`, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*RunRecord, error) {
	var rec RunRecord
	var payload string
	if err := row.Scan(&rec.ID, &rec.Status, &rec.Stage, &rec.Ability,
		&payload, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}

	var req state.Request
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run state: %w", err)
	}
	rec.Request = &req
	return &rec, nil
}
