package document_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docpipe/features/document"
)

func newRepo(t *testing.T) (*document.PostgresRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return document.NewPostgresRepo(db), mock
}

func TestPostgresRepo_Save(t *testing.T) {
	repo, mock := newRepo(t)

	doc := &document.Document{
		ID:          "doc-1",
		OwnerID:     "user-1",
		ContentHash: "abc",
		ContentType: "text/plain",
		BlobPath:    "/blobs/doc-1",
		Status:      document.StatusPending,
	}

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO documents (id, owner_id, content_hash, content_type, blob_path, status)")).
		WithArgs("doc-1", "user-1", "abc", "text/plain", "/blobs/doc-1", "pending").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(time.Now(), time.Now()))

	require.NoError(t, repo.Save(context.Background(), doc))
	assert.False(t, doc.CreatedAt.IsZero())
}

func TestPostgresRepo_Exists(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM documents WHERE id = $1 AND deleted_at IS NULL)")).
		WithArgs("doc-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.Exists(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestPostgresRepo_Get(t *testing.T) {
	repo, mock := newRepo(t)

	rows := sqlmock.NewRows([]string{"id", "owner_id", "content_hash", "content_type", "blob_path", "status", "last_error", "created_at", "updated_at"}).
		AddRow("doc-1", "user-1", "abc", "text/plain", "/blobs/doc-1", "completed", "", time.Now(), time.Now())

	mock.ExpectQuery(regexp.QuoteMeta("FROM documents WHERE id = $1 AND deleted_at IS NULL")).
		WithArgs("doc-1").
		WillReturnRows(rows)

	doc, err := repo.Get(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", doc.OwnerID)
	assert.Equal(t, "completed", doc.Status)
}

func TestPostgresRepo_ListByOwner(t *testing.T) {
	repo, mock := newRepo(t)

	rows := sqlmock.NewRows([]string{"id", "owner_id", "content_hash", "content_type", "blob_path", "status", "last_error", "created_at", "updated_at"}).
		AddRow("doc-1", "user-1", "abc", "text/plain", "", "pending", "", time.Now(), time.Now()).
		AddRow("doc-2", "user-1", "def", "text/plain", "", "failed", "parse blew up", time.Now(), time.Now())

	mock.ExpectQuery(regexp.QuoteMeta("WHERE owner_id = $1 AND deleted_at IS NULL ORDER BY created_at DESC")).
		WithArgs("user-1").
		WillReturnRows(rows)

	docs, err := repo.ListByOwner(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "parse blew up", docs[1].LastError)
}

func TestPostgresRepo_UpdateStatus(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE documents SET status = $1, updated_at = NOW() WHERE id = $2")).
		WithArgs("processing", "doc-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.UpdateStatus(context.Background(), "doc-1", "processing"))
}

func TestPostgresRepo_SoftDelete(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE documents SET deleted_at = NOW() WHERE id = $1")).
		WithArgs("doc-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.SoftDelete(context.Background(), "doc-1"))
}
