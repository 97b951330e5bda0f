package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/stemtrack/internal/hasher"
	"github.com/roach88/stemtrack/internal/record"
	"github.com/roach88/stemtrack/internal/uid"
)

// NewRecord is the input of CreateVersion.
type NewRecord struct {
	UID          uid.UID
	Registry     record.Registry
	Kind         string
	Key          string
	Description  string
	VersionLabel string
	Revises      uid.UID
	CreatedBy    string
	// Content is optional; transforms usually get their source through
	// AttachSource once resolution is complete.
	Content []byte
}

const recordColumns = `uid, registry, kind, key, description, version_label, content_hash, size, revises, created_by, created_at`

// CreateVersion inserts exactly one record. A collision on uid, on the
// version label within the family or on the predecessor link returns
// ErrDuplicateIdentity.
func (s *Store) CreateVersion(ctx context.Context, nr NewRecord) (record.Record, error) {
	if !nr.Registry.Valid() {
		return record.Record{}, fmt.Errorf("create version: unknown registry %q", nr.Registry)
	}
	if _, err := uid.Parse(string(nr.UID)); err != nil {
		return record.Record{}, fmt.Errorf("create version: %w", err)
	}

	rec := record.Record{
		UID:          nr.UID,
		Registry:     nr.Registry,
		Kind:         nr.Kind,
		Key:          nr.Key,
		Description:  nr.Description,
		VersionLabel: nr.VersionLabel,
		Revises:      nr.Revises,
		CreatedBy:    nr.CreatedBy,
	}
	var content any
	if nr.Content != nil {
		rec.ContentHash = hasher.HashBytes(nr.Content)
		rec.Size = int64(len(nr.Content))
		content = nr.Content
	}
	createdAt := s.stamp()
	rec.CreatedAt = time.Unix(0, createdAt).UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO records
		(uid, stem, registry, kind, key, description, version_label, content_hash, size, content, revises, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		string(rec.UID),
		rec.UID.Stem(),
		string(rec.Registry),
		rec.Kind,
		rec.Key,
		rec.Description,
		rec.VersionLabel,
		string(rec.ContentHash),
		rec.Size,
		content,
		nullable(string(rec.Revises)),
		rec.CreatedBy,
		createdAt,
	)
	if err != nil {
		return record.Record{}, fmt.Errorf("create version %s: %w", rec.UID, mapConstraint(err))
	}
	return rec, nil
}

// FindByUidPrefix returns records of registry whose uid starts with prefix,
// newest first.
func (s *Store) FindByUidPrefix(ctx context.Context, prefix string, registry record.Registry) ([]record.Record, error) {
	if !uid.IsPrefix(prefix) {
		return []record.Record{}, nil
	}
	// GLOB is case sensitive, unlike LIKE, and the alphabet holds no
	// GLOB metacharacters.
	return s.queryRecords(ctx, `
		SELECT `+recordColumns+`
		FROM records
		WHERE registry = ? AND uid GLOB ? || '*'
		ORDER BY created_at DESC, uid COLLATE BINARY ASC
	`, string(registry), prefix)
}

// FindByKey returns records of registry stored under key, newest first.
func (s *Store) FindByKey(ctx context.Context, key string, registry record.Registry) ([]record.Record, error) {
	return s.queryRecords(ctx, `
		SELECT `+recordColumns+`
		FROM records
		WHERE registry = ? AND key = ?
		ORDER BY created_at DESC, uid COLLATE BINARY ASC
	`, string(registry), key)
}

// FindByHash returns records of registry holding content with hash,
// newest first.
func (s *Store) FindByHash(ctx context.Context, hash hasher.ContentHash, registry record.Registry) ([]record.Record, error) {
	return s.queryRecords(ctx, `
		SELECT `+recordColumns+`
		FROM records
		WHERE registry = ? AND content_hash = ?
		ORDER BY created_at DESC, uid COLLATE BINARY ASC
	`, string(registry), string(hash))
}

// Get returns the record with exactly this uid.
func (s *Store) Get(ctx context.Context, u uid.UID) (record.Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM records WHERE uid = ?`, string(u))
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return record.Record{}, fmt.Errorf("get %s: %w", u, ErrNotFound)
	}
	if err != nil {
		return record.Record{}, fmt.Errorf("get %s: %w", u, err)
	}
	return rec, nil
}

// Successor returns the version that revises u, if any.
func (s *Store) Successor(ctx context.Context, u uid.UID) (*record.Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM records WHERE revises = ?`, string(u))
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("successor of %s: %w", u, err)
	}
	return &rec, nil
}

// Content returns the bytes attached to a record.
func (s *Store) Content(ctx context.Context, u uid.UID) ([]byte, error) {
	var content []byte
	err := s.db.QueryRowContext(ctx, `SELECT content FROM records WHERE uid = ?`, string(u)).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("content of %s: %w", u, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("content of %s: %w", u, err)
	}
	return content, nil
}

// AttachSource stores content on an existing record. When the record
// already holds different content, replace must be set or
// ErrAlreadyAttached is returned. Attaching identical content is a no-op.
func (s *Store) AttachSource(ctx context.Context, u uid.UID, content []byte, replace bool) error {
	hash := hasher.HashBytes(content)
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var current string
		err := tx.QueryRowContext(ctx, `SELECT content_hash FROM records WHERE uid = ?`, string(u)).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("attach source %s: %w", u, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("attach source %s: %w", u, err)
		}
		switch {
		case current == string(hash):
			return nil
		case current != "" && !replace:
			return fmt.Errorf("attach source %s: %w", u, ErrAlreadyAttached)
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE records SET content = ?, content_hash = ?, size = ? WHERE uid = ?
		`, content, string(hash), len(content), string(u))
		if err != nil {
			return fmt.Errorf("attach source %s: %w", u, err)
		}
		return nil
	})
}

// UpdateKey moves a record to a new key.
func (s *Store) UpdateKey(ctx context.Context, u uid.UID, key string) error {
	return s.update(ctx, "update key", `UPDATE records SET key = ? WHERE uid = ?`, key, string(u))
}

// UpdateDescription replaces the description of a record.
func (s *Store) UpdateDescription(ctx context.Context, u uid.UID, description string) error {
	return s.update(ctx, "update description", `UPDATE records SET description = ? WHERE uid = ?`, description, string(u))
}

func (s *Store) update(ctx context.Context, op, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %v: %w", op, args[len(args)-1], ErrNotFound)
	}
	return nil
}

// Delete removes a record with its runs and features. A version that
// another version revises cannot be deleted; reports and environments
// owned by the deleted runs go with them unless another run shares them.
func (s *Store) Delete(ctx context.Context, u uid.UID) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var successor string
		err := tx.QueryRowContext(ctx, `SELECT uid FROM records WHERE revises = ?`, string(u)).Scan(&successor)
		switch {
		case err == nil:
			return fmt.Errorf("delete %s: %w (revised by %s)", u, ErrHasSuccessor, successor)
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("delete %s: %w", u, err)
		}

		owned, err := ownedAttachments(ctx, tx, u)
		if err != nil {
			return fmt.Errorf("delete %s: %w", u, err)
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM records WHERE uid = ?`, string(u))
		if err != nil {
			return fmt.Errorf("delete %s: %w", u, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("delete %s: %w", u, ErrNotFound)
		}

		for _, a := range owned {
			_, err := tx.ExecContext(ctx, `
				DELETE FROM records WHERE uid = ?
				AND NOT EXISTS (SELECT 1 FROM runs WHERE report_uid = ? OR environment_uid = ?)
			`, a, a, a)
			if err != nil {
				return fmt.Errorf("delete attachment %s: %w", a, err)
			}
		}
		return nil
	})
}

// ownedAttachments lists report and environment uids linked from runs of u.
func ownedAttachments(ctx context.Context, tx *sql.Tx, u uid.UID) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT report_uid FROM runs WHERE transform_uid = ? AND report_uid IS NOT NULL
		UNION
		SELECT environment_uid FROM runs WHERE transform_uid = ? AND environment_uid IS NOT NULL
	`, string(u), string(u))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) queryRecords(ctx context.Context, query string, args ...any) ([]record.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	recs := []record.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return recs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (record.Record, error) {
	var (
		rec               record.Record
		u, registry, hash string
		revises           sql.NullString
		createdAt         int64
	)
	err := row.Scan(&u, &registry, &rec.Kind, &rec.Key, &rec.Description, &rec.VersionLabel,
		&hash, &rec.Size, &revises, &rec.CreatedBy, &createdAt)
	if err != nil {
		return record.Record{}, err
	}
	rec.UID = uid.UID(u)
	rec.Registry = record.Registry(registry)
	rec.ContentHash = hasher.ContentHash(hash)
	rec.Revises = uid.UID(revises.String)
	rec.CreatedAt = time.Unix(0, createdAt).UTC()
	return rec, nil
}

func nullable(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}
