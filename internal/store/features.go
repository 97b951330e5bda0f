package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/roach88/stemtrack/internal/hasher"
	"github.com/roach88/stemtrack/internal/record"
	"github.com/roach88/stemtrack/internal/uid"
)

// Annotate sets features on a record, replacing earlier values of the same
// feature names. Values are stored as canonical JSON arrays.
func (s *Store) Annotate(ctx context.Context, u uid.UID, features []record.Feature) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE uid = ?`, string(u)).Scan(&exists); err != nil {
			return fmt.Errorf("annotate %s: %w", u, err)
		}
		if exists == 0 {
			return fmt.Errorf("annotate %s: %w", u, ErrNotFound)
		}

		for _, f := range features {
			data, err := hasher.MarshalCanonical(f.Values)
			if err != nil {
				return fmt.Errorf("annotate %s: feature %s: %w", u, f.Name, err)
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO features (record_uid, name, value_json) VALUES (?, ?, ?)
				ON CONFLICT(record_uid, name) DO UPDATE SET value_json = excluded.value_json
			`, string(u), f.Name, string(data))
			if err != nil {
				return fmt.Errorf("annotate %s: feature %s: %w", u, f.Name, err)
			}
		}
		return nil
	})
}

// Features returns the features of a record ordered by name.
func (s *Store) Features(ctx context.Context, u uid.UID) ([]record.Feature, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, value_json FROM features
		WHERE record_uid = ?
		ORDER BY name COLLATE BINARY ASC
	`, string(u))
	if err != nil {
		return nil, fmt.Errorf("query features: %w", err)
	}
	defer rows.Close()

	features := []record.Feature{}
	for rows.Next() {
		var f record.Feature
		var data string
		if err := rows.Scan(&f.Name, &data); err != nil {
			return nil, fmt.Errorf("scan feature: %w", err)
		}
		if err := json.Unmarshal([]byte(data), &f.Values); err != nil {
			return nil, fmt.Errorf("decode feature %s: %w", f.Name, err)
		}
		features = append(features, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate features: %w", err)
	}
	return features, nil
}
