package mapstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hochfrequenz/tasklink/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLite provides SQLite-backed mapping and run persistence
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens the database at dbPath and runs migrations
func NewSQLite(dbPath string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// A single connection keeps :memory: databases coherent and
	// serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the database connection
func (s *SQLite) Close() error {
	return s.db.Close()
}

// ReadAll returns every mapping row
func (s *SQLite) ReadAll(ctx context.Context) ([]domain.MappingEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT type, local_id, remote_id, record_id, category, title, last_synced_at, local_updated_at, remote_updated_at
		FROM mappings ORDER BY type, local_id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying mappings: %w", err)
	}
	defer rows.Close()

	var entries []domain.MappingEntry
	for rows.Next() {
		e, err := scanMapping(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// WriteOne inserts or updates the row keyed by (type, local_id) and
// returns its record id
func (s *SQLite) WriteOne(ctx context.Context, e domain.MappingEntry) (string, error) {
	recordID := e.RecordID
	if recordID == "" {
		recordID = uuid.NewString()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mappings (type, local_id, remote_id, record_id, category, title, last_synced_at, local_updated_at, remote_updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(type, local_id) DO UPDATE SET
			remote_id = excluded.remote_id,
			category = excluded.category,
			title = excluded.title,
			last_synced_at = excluded.last_synced_at,
			local_updated_at = excluded.local_updated_at,
			remote_updated_at = excluded.remote_updated_at
	`,
		string(e.Type),
		e.LocalID,
		e.RemoteID,
		recordID,
		e.Category,
		e.Title,
		e.LastSyncedAt.UTC(),
		nullTime(e.LocalUpdatedAt),
		nullTime(e.RemoteUpdatedAt),
	)
	if err != nil {
		return "", fmt.Errorf("upserting mapping %s: %w", e.Key(), err)
	}

	// an existing row keeps its original record id
	var stored string
	err = s.db.QueryRowContext(ctx, `SELECT record_id FROM mappings WHERE type = ? AND local_id = ?`,
		string(e.Type), e.LocalID).Scan(&stored)
	if err != nil {
		return "", err
	}
	return stored, nil
}

// RecordRun appends a finished pass to the run history
func (s *SQLite) RecordRun(ctx context.Context, r domain.RunResult) error {
	projects, err := json.Marshal(r.Projects)
	if err != nil {
		return err
	}
	tasks, err := json.Marshal(r.Tasks)
	if err != nil {
		return err
	}
	errs, err := json.Marshal(r.Errors)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sync_runs (id, started_at, finished_at, phase, outcome, projects, tasks, conflicts, mapped_projects, errors, failure, failed_phase)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.RunID,
		r.StartedAt.UTC(),
		r.FinishedAt.UTC(),
		string(r.Phase),
		string(r.Outcome()),
		string(projects),
		string(tasks),
		r.Conflicts,
		r.MappedProjects,
		string(errs),
		r.Failure,
		string(r.FailedPhase),
	)
	if err != nil {
		return fmt.Errorf("recording run %s: %w", r.RunID, err)
	}
	return nil
}

// ListRuns returns the most recent passes, newest first
func (s *SQLite) ListRuns(ctx context.Context, limit int) ([]domain.RunResult, error) {
	if limit <= 0 {
		limit = defaultRunLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, phase, projects, tasks, conflicts, mapped_projects, errors, failure, failed_phase
		FROM sync_runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.RunResult
	for rows.Next() {
		var r domain.RunResult
		var phase, projects, tasks, errs, failedPhase string
		var finished sql.NullTime
		var failure sql.NullString

		if err := rows.Scan(&r.RunID, &r.StartedAt, &finished, &phase, &projects, &tasks, &r.Conflicts, &r.MappedProjects, &errs, &failure, &failedPhase); err != nil {
			return nil, err
		}
		if finished.Valid {
			r.FinishedAt = finished.Time
		}
		r.Phase = domain.Phase(phase)
		r.FailedPhase = domain.Phase(failedPhase)
		r.Failure = failure.String

		if err := json.Unmarshal([]byte(projects), &r.Projects); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(tasks), &r.Tasks); err != nil {
			return nil, err
		}
		if errs != "" && errs != "null" {
			if err := json.Unmarshal([]byte(errs), &r.Errors); err != nil {
				return nil, err
			}
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func scanMapping(rows *sql.Rows) (domain.MappingEntry, error) {
	var e domain.MappingEntry
	var typ string
	var category, title sql.NullString
	var synced, localUpdated, remoteUpdated sql.NullTime

	err := rows.Scan(&typ, &e.LocalID, &e.RemoteID, &e.RecordID, &category, &title, &synced, &localUpdated, &remoteUpdated)
	if err != nil {
		return e, err
	}

	e.Type = domain.EntityType(typ)
	e.Category = category.String
	e.Title = title.String
	if synced.Valid {
		e.LastSyncedAt = synced.Time
	}
	if localUpdated.Valid {
		e.LocalUpdatedAt = domain.TimePtr(localUpdated.Time)
	}
	if remoteUpdated.Valid {
		e.RemoteUpdatedAt = domain.TimePtr(remoteUpdated.Time)
	}
	return e, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
