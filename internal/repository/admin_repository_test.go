package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/pkg/circuitbreaker"
)

func newMockRepo(t *testing.T) (*PostgresAdminRepository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return newAdminRepository(db, zap.NewNop()), mock
}

func adminRows(id int64, email, hash string, created time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "email", "password_hash", "created_at"}).
		AddRow(id, email, hash, created)
}

func strPtr(s string) *string { return &s }

func TestGetByEmail_Found(t *testing.T) {
	repo, mock := newMockRepo(t)
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, email, password_hash, created_at FROM admins WHERE email = $1`)).
		WithArgs("a@x.com").
		WillReturnRows(adminRows(1, "a@x.com", "hash", created))

	admin, err := repo.GetByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, int64(1), admin.ID)
	assert.Equal(t, "a@x.com", admin.Email)
	assert.Equal(t, "hash", admin.PasswordHash)
	assert.Equal(t, created, admin.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByEmail_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM admins WHERE email = $1`)).
		WithArgs("nobody@x.com").
		WillReturnError(sql.ErrNoRows)

	admin, err := repo.GetByEmail(context.Background(), "nobody@x.com")
	assert.ErrorIs(t, err, ErrAdminNotFound)
	assert.Nil(t, admin)
}

func TestGetByID_DatabaseError(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM admins WHERE id = $1`)).
		WithArgs(int64(9)).
		WillReturnError(errors.New("connection reset"))

	_, err := repo.GetByID(context.Background(), 9)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query admin by id")
	assert.NotErrorIs(t, err, ErrAdminNotFound)
}

func TestCreate_ReturnsInsertedRow(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO admins (email, password_hash) VALUES ($1, $2) RETURNING id, email, password_hash, created_at`)).
		WithArgs("a@x.com", "hash").
		WillReturnRows(adminRows(3, "a@x.com", "hash", time.Now()))

	admin, err := repo.Create(context.Background(), "a@x.com", "hash")
	require.NoError(t, err)
	assert.Equal(t, int64(3), admin.ID)
}

func TestCreate_DuplicateEmail(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO admins`)).
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := repo.Create(context.Background(), "a@x.com", "hash")
	assert.ErrorIs(t, err, ErrEmailConflict)
}

func TestUpdate_BothFields(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE admins SET email = $1, password_hash = $2 WHERE id = $3 RETURNING id, email, password_hash, created_at`)).
		WithArgs("new@x.com", "newhash", int64(1)).
		WillReturnRows(adminRows(1, "new@x.com", "newhash", time.Now()))

	admin, err := repo.Update(context.Background(), 1, domain.AdminPatch{
		Email:        strPtr("new@x.com"),
		PasswordHash: strPtr("newhash"),
	})
	require.NoError(t, err)
	assert.Equal(t, "new@x.com", admin.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate_PasswordOnly(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE admins SET password_hash = $1 WHERE id = $2 RETURNING`)).
		WithArgs("newhash", int64(1)).
		WillReturnRows(adminRows(1, "a@x.com", "newhash", time.Now()))

	admin, err := repo.Update(context.Background(), 1, domain.AdminPatch{PasswordHash: strPtr("newhash")})
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", admin.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate_EmailConflict(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE admins SET email = $1 WHERE id = $2`)).
		WithArgs("taken@x.com", int64(1)).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	_, err := repo.Update(context.Background(), 1, domain.AdminPatch{Email: strPtr("taken@x.com")})
	assert.ErrorIs(t, err, ErrEmailConflict)
}

func TestUpdate_MissingAccount(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE admins SET email = $1 WHERE id = $2`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "created_at"}))

	_, err := repo.Update(context.Background(), 42, domain.AdminPatch{Email: strPtr("a@x.com")})
	assert.ErrorIs(t, err, ErrAdminNotFound)
}

func TestUpdate_EmptyPatchReadsCurrentRow(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM admins WHERE id = $1`)).
		WithArgs(int64(1)).
		WillReturnRows(adminRows(1, "a@x.com", "hash", time.Now()))

	admin, err := repo.Update(context.Background(), 1, domain.AdminPatch{})
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", admin.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBreaker_OpensAfterRepeatedFailures(t *testing.T) {
	repo, mock := newMockRepo(t)

	for i := 0; i < 5; i++ {
		mock.ExpectQuery(regexp.QuoteMeta(`FROM admins WHERE id = $1`)).
			WillReturnError(errors.New("connection refused"))
	}
	for i := 0; i < 5; i++ {
		_, err := repo.GetByID(context.Background(), 1)
		require.Error(t, err)
	}

	_, err := repo.GetByID(context.Background(), 1)
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.Equal(t, "open", repo.BreakerState())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBreaker_NotFoundDoesNotTrip(t *testing.T) {
	repo, mock := newMockRepo(t)

	for i := 0; i < 6; i++ {
		mock.ExpectQuery(regexp.QuoteMeta(`FROM admins WHERE email = $1`)).
			WillReturnError(sql.ErrNoRows)
	}
	for i := 0; i < 6; i++ {
		_, err := repo.GetByEmail(context.Background(), "nobody@x.com")
		require.ErrorIs(t, err, ErrAdminNotFound)
	}
	assert.Equal(t, "closed", repo.BreakerState())
}

func TestPing(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	repo := newAdminRepository(db, zap.NewNop())

	mock.ExpectPing()
	assert.NoError(t, repo.Ping(context.Background()))

	mock.ExpectPing().WillReturnError(errors.New("down"))
	assert.Error(t, repo.Ping(context.Background()))
}
