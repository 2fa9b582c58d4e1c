// Package postgres provides a PostgreSQL implementation of content.Store.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/alice21mota/oppia/pkg/apperr"
	"github.com/alice21mota/oppia/pkg/content"
)

const tableName = "content_entities"

var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Store persists content documents as jsonb rows.
type Store struct {
	db *sql.DB
}

// New creates a new Store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Put upserts a document.
func (s *Store) Put(ctx context.Context, kind, id string, body []byte) error {
	query, args, err := psq.Insert(tableName).
		Columns("kind", "id", "body").
		Values(kind, id, string(body)).
		Suffix("ON CONFLICT (kind, id) DO UPDATE SET body = EXCLUDED.body, updated_at = NOW()").
		ToSql()
	if err != nil {
		return fmt.Errorf("building upsert query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upserting %s %s: %w", kind, id, err)
	}
	return nil
}

// Get returns a document.
func (s *Store) Get(ctx context.Context, kind, id string) (*content.Document, error) {
	query, args, err := psq.Select("kind", "id", "body", "created_at", "updated_at").
		From(tableName).
		Where(sq.Eq{"kind": kind, "id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}

	var doc content.Document
	err = s.db.QueryRowContext(ctx, query, args...).
		Scan(&doc.Kind, &doc.ID, &doc.Body, &doc.CreatedAt, &doc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("Entity %s with id %s not found.", kind, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying %s %s: %w", kind, id, err)
	}
	return &doc, nil
}

// Delete removes a document.
func (s *Store) Delete(ctx context.Context, kind, id string) error {
	query, args, err := psq.Delete(tableName).Where(sq.Eq{"kind": kind, "id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("building delete query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("deleting %s %s: %w", kind, id, err)
	}
	return nil
}

// List returns every document of a kind, oldest first.
func (s *Store) List(ctx context.Context, kind string) ([]content.Document, error) {
	query, args, err := psq.Select("kind", "id", "body", "created_at", "updated_at").
		From(tableName).
		Where(sq.Eq{"kind": kind}).
		OrderBy("created_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building list query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", kind, err)
	}
	defer func() { _ = rows.Close() }()

	docs := []content.Document{}
	for rows.Next() {
		var doc content.Document
		if err := rows.Scan(&doc.Kind, &doc.ID, &doc.Body, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", kind, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s: %w", kind, err)
	}
	return docs, nil
}

// Verify interface compliance.
var _ content.Store = (*Store)(nil)
