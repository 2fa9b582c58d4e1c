// Package postgres provides a PostgreSQL implementation of user.Store.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/alice21mota/oppia/pkg/apperr"
	"github.com/alice21mota/oppia/pkg/user"
)

const (
	usersTable    = "users"
	deletionTable = "pending_deletion_requests"
)

var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var userColumns = []string{
	"id", "email", "username", "roles", "banned", "managed_topic_ids",
	"coordinated_language_ids", "super_admin", "deleted", "created_at",
}

// Store persists users in PostgreSQL.
type Store struct {
	db *sql.DB
}

// New creates a new Store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create inserts a user.
func (s *Store) Create(ctx context.Context, u *user.User) error {
	query, args, err := psq.Insert(usersTable).
		Columns(slices.Concat(userColumns, []string{"normalized_username"})...).
		Values(
			u.ID, u.Email, u.Username, pq.Array(orEmpty(u.Roles)), u.Banned, pq.Array(orEmpty(u.ManagedTopicIDs)),
			pq.Array(orEmpty(u.CoordinatedLanguageIDs)), u.SuperAdmin, u.Deleted, u.CreatedAt,
			strings.ToLower(u.Username),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

func (s *Store) getOne(ctx context.Context, where sq.Sqlizer, notFound error) (*user.User, error) {
	query, args, err := psq.Select(userColumns...).From(usersTable).Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	u, err := scanUser(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return u, nil
}

// GetByID returns a user by id.
func (s *Store) GetByID(ctx context.Context, id string) (*user.User, error) {
	return s.getOne(ctx, sq.Eq{"id": id}, apperr.NotFound("User with id %s does not exist.", id))
}

// GetByUsername returns a user by case-insensitive username.
func (s *Store) GetByUsername(ctx context.Context, username string) (*user.User, error) {
	return s.getOne(ctx, sq.Eq{"normalized_username": strings.ToLower(username)},
		apperr.NotFound("User with given username does not exist."))
}

// GetByEmail returns a user by email.
func (s *Store) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	return s.getOne(ctx, sq.Eq{"email": email}, apperr.NotFound("User with email %s does not exist.", email))
}

// Update replaces a stored user.
func (s *Store) Update(ctx context.Context, u *user.User) error {
	query, args, err := psq.Update(usersTable).
		Set("email", u.Email).
		Set("username", u.Username).
		Set("normalized_username", strings.ToLower(u.Username)).
		Set("roles", pq.Array(orEmpty(u.Roles))).
		Set("banned", u.Banned).
		Set("managed_topic_ids", pq.Array(orEmpty(u.ManagedTopicIDs))).
		Set("coordinated_language_ids", pq.Array(orEmpty(u.CoordinatedLanguageIDs))).
		Set("super_admin", u.SuperAdmin).
		Set("deleted", u.Deleted).
		Where(sq.Eq{"id": u.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building update query: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if n == 0 {
		return apperr.NotFound("User with id %s does not exist.", u.ID)
	}
	return nil
}

// ListByRole returns users holding role, oldest first.
func (s *Store) ListByRole(ctx context.Context, role string) ([]user.User, error) {
	query, args, err := psq.Select(userColumns...).
		From(usersTable).
		Where(sq.Expr("? = ANY(roles)", role)).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building list query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating users: %w", err)
	}
	return users, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*user.User, error) {
	var u user.User
	var roles, topics, languages pq.StringArray
	if err := row.Scan(
		&u.ID, &u.Email, &u.Username, &roles, &u.Banned, &topics,
		&languages, &u.SuperAdmin, &u.Deleted, &u.CreatedAt,
	); err != nil {
		return nil, err
	}
	u.Roles = nonNil(roles)
	u.ManagedTopicIDs = nonNil(topics)
	u.CoordinatedLanguageIDs = nonNil(languages)
	return &u, nil
}

func orEmpty(a []string) []string {
	if a == nil {
		return []string{}
	}
	return a
}

func nonNil(a pq.StringArray) []string {
	if a == nil {
		return []string{}
	}
	return []string(a)
}

// CreatePendingDeletion records a deletion request, replacing any earlier one.
func (s *Store) CreatePendingDeletion(ctx context.Context, req user.PendingDeletionRequest) error {
	query, args, err := psq.Insert(deletionTable).
		Columns("user_id", "email", "created_at").
		Values(req.UserID, req.Email, req.CreatedAt).
		Suffix("ON CONFLICT (user_id) DO UPDATE SET email = EXCLUDED.email, created_at = EXCLUDED.created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting deletion request: %w", err)
	}
	return nil
}

// GetPendingDeletion returns the deletion request of a user.
func (s *Store) GetPendingDeletion(ctx context.Context, userID string) (*user.PendingDeletionRequest, error) {
	query, args, err := psq.Select("user_id", "email", "created_at").
		From(deletionTable).
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}

	var req user.PendingDeletionRequest
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&req.UserID, &req.Email, &req.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("No pending deletion request for user %s.", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("querying deletion request: %w", err)
	}
	return &req, nil
}

// CountPendingDeletions returns the number of deletion requests.
func (s *Store) CountPendingDeletions(ctx context.Context) (int, error) {
	query, args, err := psq.Select("COUNT(*)").From(deletionTable).ToSql()
	if err != nil {
		return 0, fmt.Errorf("building count query: %w", err)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting deletion requests: %w", err)
	}
	return n, nil
}

// Verify interface compliance.
var _ user.Store = (*Store)(nil)
