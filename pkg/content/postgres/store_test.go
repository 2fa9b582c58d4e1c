package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alice21mota/oppia/pkg/apperr"
	"github.com/alice21mota/oppia/pkg/content"
)

const testDBError = "db error"

func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db), mock
}

func TestStore_Put(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec("INSERT INTO content_entities \\(kind,id,body\\) VALUES \\(\\$1,\\$2,\\$3\\) ON CONFLICT").
		WithArgs(content.KindExploration, "0", `{"id":"0"}`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Put(context.Background(), content.KindExploration, "0", []byte(`{"id":"0"}`)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Put_DBError(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec("INSERT INTO content_entities").WillReturnError(errors.New(testDBError))

	err := store.Put(context.Background(), content.KindExploration, "0", []byte(`{}`))
	assert.ErrorContains(t, err, testDBError)
}

func TestStore_Get(t *testing.T) {
	store, mock := newTestStore(t)
	now := time.Now()

	mock.ExpectQuery("SELECT kind, id, body, created_at, updated_at FROM content_entities WHERE").
		WithArgs("t1", content.KindTopic).
		WillReturnRows(sqlmock.NewRows([]string{"kind", "id", "body", "created_at", "updated_at"}).
			AddRow(content.KindTopic, "t1", []byte(`{"id":"t1"}`), now, now))

	doc, err := store.Get(context.Background(), content.KindTopic, "t1")
	require.NoError(t, err)
	assert.Equal(t, "t1", doc.ID)
	assert.JSONEq(t, `{"id":"t1"}`, string(doc.Body))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Get_NotFound(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery("SELECT kind, id, body").WillReturnError(sql.ErrNoRows)

	_, err := store.Get(context.Background(), content.KindTopic, "missing")
	assert.True(t, apperr.IsNotFound(err))
}

func TestStore_Get_DBError(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery("SELECT kind, id, body").WillReturnError(errors.New(testDBError))

	_, err := store.Get(context.Background(), content.KindTopic, "t1")
	require.Error(t, err)
	assert.False(t, apperr.IsNotFound(err))
}

func TestStore_Delete(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec("DELETE FROM content_entities WHERE").
		WithArgs("0-5", content.KindSnapshotContent).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Delete(context.Background(), content.KindSnapshotContent, "0-5"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_List(t *testing.T) {
	store, mock := newTestStore(t)
	now := time.Now()

	mock.ExpectQuery("SELECT kind, id, body, created_at, updated_at FROM content_entities WHERE kind = \\$1 ORDER BY created_at ASC, id ASC").
		WithArgs(content.KindSkill).
		WillReturnRows(sqlmock.NewRows([]string{"kind", "id", "body", "created_at", "updated_at"}).
			AddRow(content.KindSkill, "s1", []byte(`{}`), now, now).
			AddRow(content.KindSkill, "s2", []byte(`{}`), now, now))

	docs, err := store.List(context.Background(), content.KindSkill)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "s2", docs[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_List_DBError(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery("SELECT kind, id, body").WillReturnError(errors.New(testDBError))

	_, err := store.List(context.Background(), content.KindSkill)
	assert.ErrorContains(t, err, testDBError)
}
