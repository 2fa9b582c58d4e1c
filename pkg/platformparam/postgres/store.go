// Package postgres provides a PostgreSQL-backed platform parameter store
// with per-parameter versioning.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/alice21mota/oppia/pkg/platformparam"
)

const tableName = "platform_parameter_versions"

var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Store persists platform parameter rule versions in PostgreSQL.
type Store struct {
	db *sql.DB
}

// New creates a new Store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Load returns the active snapshot for a parameter, or nil if none exists.
func (s *Store) Load(ctx context.Context, name string) (*platformparam.Snapshot, error) {
	query, args, err := psq.Select("rules", "default_value").
		From(tableName).
		Where(sq.Eq{"name": name, "is_active": true}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building load query: %w", err)
	}

	var rulesJSON, defaultJSON []byte
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&rulesJSON, &defaultJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // nil snapshot means never edited
	}
	if err != nil {
		return nil, fmt.Errorf("loading active rules: %w", err)
	}

	snap := &platformparam.Snapshot{}
	if err := json.Unmarshal(rulesJSON, &snap.Rules); err != nil {
		return nil, fmt.Errorf("decoding rules: %w", err)
	}
	if err := json.Unmarshal(defaultJSON, &snap.DefaultValue); err != nil {
		return nil, fmt.Errorf("decoding default value: %w", err)
	}
	return snap, nil
}

// Save persists a new active version, deactivating the previous one.
func (s *Store) Save(ctx context.Context, name string, snap platformparam.Snapshot, meta platformparam.SaveMeta) error {
	rulesJSON, err := json.Marshal(snap.Rules)
	if err != nil {
		return fmt.Errorf("encoding rules: %w", err)
	}
	defaultJSON, err := json.Marshal(snap.DefaultValue)
	if err != nil {
		return fmt.Errorf("encoding default value: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var nextVersion int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM platform_parameter_versions WHERE name = $1`,
		name,
	).Scan(&nextVersion)
	if err != nil {
		return fmt.Errorf("getting next version: %w", err)
	}

	query, args, err := psq.Update(tableName).
		Set("is_active", false).
		Where(sq.Eq{"name": name, "is_active": true}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building deactivate query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("deactivating current rules: %w", err)
	}

	query, args, err = psq.Insert(tableName).
		Columns("name", "version", "rules", "default_value", "author", "comment", "is_active").
		Values(name, nextVersion, string(rulesJSON), string(defaultJSON), meta.Author, meta.Comment, true).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting rules version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing rules version: %w", err)
	}
	return nil
}

// History returns recent revisions of a parameter, newest first.
func (s *Store) History(ctx context.Context, name string, limit int) ([]platformparam.Revision, error) {
	qb := psq.Select("id", "name", "version", "author", "comment", "created_at").
		From(tableName).
		Where(sq.Eq{"name": name}).
		OrderBy("version DESC")
	if limit > 0 {
		qb = qb.Limit(uint64(limit))
	}
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building history query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying rules history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var revisions []platformparam.Revision
	for rows.Next() {
		var r platformparam.Revision
		if err := rows.Scan(&r.ID, &r.Name, &r.Version, &r.Author, &r.Comment, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning revision: %w", err)
		}
		revisions = append(revisions, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating revisions: %w", err)
	}
	return revisions, nil
}

// Verify interface compliance.
var _ platformparam.Store = (*Store)(nil)
