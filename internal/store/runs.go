package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/stemtrack/internal/hasher"
	"github.com/roach88/stemtrack/internal/record"
	"github.com/roach88/stemtrack/internal/uid"
)

const runColumns = `id, transform_uid, created_by, started_at, finished_at, is_consecutive, report_uid, environment_uid`

// CreateRun starts a run of transform u owned by user.
func (s *Store) CreateRun(ctx context.Context, id string, u uid.UID, user string) (record.Run, error) {
	started := s.stamp()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, transform_uid, created_by, started_at)
		VALUES (?, ?, ?, ?)
	`, id, string(u), user, started)
	if err != nil {
		return record.Run{}, fmt.Errorf("create run for %s: %w", u, mapConstraint(err))
	}
	return record.Run{
		ID:           id,
		TransformUID: u,
		CreatedBy:    user,
		StartedAt:    time.Unix(0, started).UTC(),
	}, nil
}

// GetRun returns a run by id.
func (s *Store) GetRun(ctx context.Context, id string) (record.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return record.Run{}, fmt.Errorf("get run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return record.Run{}, fmt.Errorf("get run %s: %w", id, err)
	}
	return run, nil
}

// FinishRun stamps the end of a run. consecutive is recorded when not nil.
func (s *Store) FinishRun(ctx context.Context, id string, consecutive *bool) error {
	var flag any
	if consecutive != nil {
		flag = *consecutive
	}
	return s.update(ctx, "finish run",
		`UPDATE runs SET finished_at = ?, is_consecutive = COALESCE(?, is_consecutive) WHERE id = ?`,
		s.stamp(), flag, id)
}

// LatestRun returns the newest run of u by any user, or nil.
func (s *Store) LatestRun(ctx context.Context, u uid.UID) (*record.Run, error) {
	return s.latestRun(ctx, `
		SELECT `+runColumns+` FROM runs WHERE transform_uid = ?
		ORDER BY started_at DESC, id COLLATE BINARY DESC LIMIT 1
	`, string(u))
}

// LatestRunFor returns the newest run of u created by user, or nil.
func (s *Store) LatestRunFor(ctx context.Context, u uid.UID, user string) (*record.Run, error) {
	return s.latestRun(ctx, `
		SELECT `+runColumns+` FROM runs WHERE transform_uid = ? AND created_by = ?
		ORDER BY started_at DESC, id COLLATE BINARY DESC LIMIT 1
	`, string(u), user)
}

func (s *Store) latestRun(ctx context.Context, query string, args ...any) (*record.Run, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest run: %w", err)
	}
	return &run, nil
}

// Runs lists every run of u, newest first.
func (s *Store) Runs(ctx context.Context, u uid.UID) ([]record.Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+` FROM runs WHERE transform_uid = ?
		ORDER BY started_at DESC, id COLLATE BINARY DESC
	`, string(u))
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []record.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// AttachReport links a report artifact to a run. The first report is
// inserted from rep. Later calls with identical content return the stored
// report unchanged; different content needs replace, which rewrites the
// existing report in place. Otherwise ErrAlreadyAttached is returned.
func (s *Store) AttachReport(ctx context.Context, runID string, rep NewRecord, replace bool) (record.Record, error) {
	return s.attachToRun(ctx, runID, "report_uid", rep, func(tx *sql.Tx, current uid.UID) (bool, error) {
		var hash string
		if err := tx.QueryRowContext(ctx, `SELECT content_hash FROM records WHERE uid = ?`, string(current)).Scan(&hash); err != nil {
			return false, err
		}
		newHash := hasher.HashBytes(rep.Content)
		switch {
		case hash == string(newHash):
			return false, nil
		case !replace:
			return false, ErrAlreadyAttached
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE records SET content = ?, content_hash = ?, size = ? WHERE uid = ?
		`, rep.Content, string(newHash), len(rep.Content), string(current))
		return false, err
	})
}

// AttachEnvironment links an environment artifact to a run. Environments
// are deduplicated by content: an existing artifact with the same hash and
// key is linked instead of inserting env.
func (s *Store) AttachEnvironment(ctx context.Context, runID string, env NewRecord) (record.Record, error) {
	return s.attachToRun(ctx, runID, "environment_uid", env, func(*sql.Tx, uid.UID) (bool, error) {
		return true, nil
	})
}

// attachToRun implements the shared link logic. onExisting decides what
// happens when the run already links an artifact; returning true relinks
// the run to a fresh or deduplicated artifact.
func (s *Store) attachToRun(ctx context.Context, runID, column string, nr NewRecord,
	onExisting func(tx *sql.Tx, current uid.UID) (bool, error)) (record.Record, error) {
	var out record.Record
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var current sql.NullString
		err := tx.QueryRowContext(ctx, `SELECT `+column+` FROM runs WHERE id = ?`, runID).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("attach to run %s: %w", runID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("attach to run %s: %w", runID, err)
		}

		target := uid.UID(current.String)
		if current.Valid {
			relink, err := onExisting(tx, target)
			if err != nil {
				return fmt.Errorf("attach to run %s: %w", runID, err)
			}
			if !relink {
				out, err = scanRecord(tx.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM records WHERE uid = ?`, string(target)))
				return err
			}
		}

		target, err = s.insertOrReuse(ctx, tx, nr)
		if err != nil {
			return fmt.Errorf("attach to run %s: %w", runID, err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE runs SET `+column+` = ? WHERE id = ?`, string(target), runID); err != nil {
			return fmt.Errorf("attach to run %s: %w", runID, err)
		}
		out, err = scanRecord(tx.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM records WHERE uid = ?`, string(target)))
		return err
	})
	return out, err
}

// insertOrReuse returns the uid of an artifact with the same key and
// content, inserting nr when there is none.
func (s *Store) insertOrReuse(ctx context.Context, tx *sql.Tx, nr NewRecord) (uid.UID, error) {
	hash := hasher.HashBytes(nr.Content)
	var existing string
	err := tx.QueryRowContext(ctx, `
		SELECT uid FROM records
		WHERE registry = ? AND key = ? AND content_hash = ?
		ORDER BY created_at DESC, uid COLLATE BINARY ASC LIMIT 1
	`, string(record.Artifact), nr.Key, string(hash)).Scan(&existing)
	switch {
	case err == nil:
		return uid.UID(existing), nil
	case !errors.Is(err, sql.ErrNoRows):
		return "", err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO records
		(uid, stem, registry, kind, key, description, version_label, content_hash, size, content, revises, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?, ?)
	`,
		string(nr.UID), nr.UID.Stem(), string(record.Artifact), nr.Kind, nr.Key, nr.Description, nr.VersionLabel,
		string(hash), len(nr.Content), nr.Content, nr.CreatedBy, s.stamp())
	if err != nil {
		return "", mapConstraint(err)
	}
	return nr.UID, nil
}

func scanRun(row rowScanner) (record.Run, error) {
	var (
		run                 record.Run
		transform           string
		started             int64
		finished            sql.NullInt64
		consecutive         sql.NullBool
		report, environment sql.NullString
	)
	if err := row.Scan(&run.ID, &transform, &run.CreatedBy, &started, &finished, &consecutive, &report, &environment); err != nil {
		return record.Run{}, err
	}
	run.TransformUID = uid.UID(transform)
	run.StartedAt = time.Unix(0, started).UTC()
	if finished.Valid {
		t := time.Unix(0, finished.Int64).UTC()
		run.FinishedAt = &t
	}
	if consecutive.Valid {
		b := consecutive.Bool
		run.IsConsecutive = &b
	}
	run.ReportUID = uid.UID(report.String)
	run.EnvironmentUID = uid.UID(environment.String)
	return run, nil
}
