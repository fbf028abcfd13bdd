package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/todoapi/internal/model"
	"github.com/eleven-am/todoapi/internal/orm"
	"github.com/eleven-am/todoapi/internal/todo"
)

var (
	userColumns = []string{"id", "email", "password_hash", "user_name", "role", "profile_image", "join_date"}
	todoColumns = []string{"id", "user_id", "title", "done", "created_at"}
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s, err := New(sqlx.NewDb(db, "postgres"))
	require.NoError(t, err)
	return s, mock
}

func userRow(role model.Role) *sqlmock.Rows {
	return sqlmock.NewRows(userColumns).
		AddRow("u1", "a@x.com", "hash", "alice", string(role), nil, time.Now())
}

func TestFindUserByEmail(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT id, email, password_hash, user_name, role, profile_image, join_date FROM users WHERE \(LOWER\(users\.email\) = LOWER\(\$1\)\) LIMIT 1`).
		WithArgs("A@x.com").
		WillReturnRows(userRow(model.RolePremium))

	u, err := s.FindUserByEmail(ctx, "A@x.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, model.RolePremium, u.Role)
	assert.Nil(t, u.ProfileImage)

	mock.ExpectQuery(`FROM users WHERE`).
		WithArgs("ghost@x.com").
		WillReturnRows(sqlmock.NewRows(userColumns))

	_, err = s.FindUserByEmail(ctx, "ghost@x.com")
	assert.True(t, orm.IsNotFound(err))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExistsUserByEmail(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM users WHERE \(LOWER\(users\.email\) = LOWER\(\$1\)\)`).
		WithArgs("a@x.com").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	exists, err := s.ExistsUserByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetUserRole(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectExec(`UPDATE users SET role = \$1 WHERE \(\(users\.id = \$2 AND users\.role = \$3\)\)`).
		WithArgs("PREMIUM", "u1", "COMMON").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.SetUserRole(ctx, "u1", model.RoleCommon, model.RolePremium))

	mock.ExpectExec(`UPDATE users SET role = \$1 WHERE \(\(users\.id = \$2 AND users\.role = \$3\)\)`).
		WithArgs("PREMIUM", "u1", "COMMON").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.True(t, orm.IsNotFound(s.SetUserRole(ctx, "u1", model.RoleCommon, model.RolePremium)))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUserDuplicate(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO users \(id, email, password_hash, user_name, role, profile_image, join_date\)`).
		WillReturnError(errors.New(`pq: duplicate key value violates unique constraint "users_email_key"`))

	err := s.CreateUser(context.Background(), &model.User{ID: "u1", Email: "a@x.com", Role: model.RoleCommon})
	assert.ErrorIs(t, err, orm.ErrDuplicateKey)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTransaction(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	t.Run("commit and nested reuse", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM todos WHERE \(id = \$1\)`).
			WithArgs("t1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := s.WithTransaction(ctx, func(tx *Store) error {
			assert.NotSame(t, s, tx)
			assert.True(t, tx.inTransaction())
			return tx.WithTransaction(ctx, func(inner *Store) error {
				assert.Same(t, tx, inner)
				return inner.DeleteTodoByID(ctx, "t1")
			})
		})
		require.NoError(t, err)
	})

	t.Run("rollback on error", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectRollback()

		sentinel := errors.New("stop")
		err := s.WithTransaction(ctx, func(tx *Store) error { return sentinel })
		assert.ErrorIs(t, err, sentinel)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func expectLockedOwner(mock sqlmock.Sqlmock, role model.Role, owned int) {
	mock.ExpectQuery(`SELECT .* FROM users WHERE \(LOWER\(users\.email\) = LOWER\(\$1\)\) LIMIT 1 FOR UPDATE`).
		WithArgs("a@x.com").
		WillReturnRows(userRow(role))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM todos WHERE \(todos\.user_id = \$1\)`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(owned))
}

func TestTodoServiceCreateOverStore(t *testing.T) {
	s, mock := newMockStore(t)
	mock.MatchExpectationsInOrder(true)
	svc := todo.NewService(s.TodoRepository())
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	expectLockedOwner(mock, model.RoleCommon, 4)
	mock.ExpectExec(`INSERT INTO todos \(id, user_id, title, done, created_at\) VALUES \(\$1, \$2, \$3, \$4, \$5\)`).
		WithArgs(sqlmock.AnyArg(), "u1", "Buy milk", false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT id, user_id, title, done, created_at FROM todos WHERE \(todos\.user_id = \$1\) ORDER BY todos\.created_at ASC, todos\.id ASC`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(todoColumns).AddRow("t1", "u1", "Buy milk", false, now))
	mock.ExpectCommit()

	list, err := svc.Create(context.Background(), "Buy milk", "a@x.com")
	require.NoError(t, err)
	require.Len(t, list.Todos, 1)
	assert.Equal(t, todo.Detail{ID: "t1", Title: "Buy milk", CreatedAt: now}, list.Todos[0])

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTodoServiceQuotaRollsBack(t *testing.T) {
	s, mock := newMockStore(t)
	mock.MatchExpectationsInOrder(true)
	svc := todo.NewService(s.TodoRepository())

	// no INSERT is expected, so sqlmock fails the test if one is issued
	mock.ExpectBegin()
	expectLockedOwner(mock, model.RoleCommon, todo.CommonQuota)
	mock.ExpectRollback()

	_, err := svc.Create(context.Background(), "6th task", "a@x.com")
	assert.ErrorIs(t, err, todo.ErrQuotaExceeded)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTodoServicePremiumPassesQuota(t *testing.T) {
	s, mock := newMockStore(t)
	mock.MatchExpectationsInOrder(true)
	svc := todo.NewService(s.TodoRepository())

	mock.ExpectBegin()
	expectLockedOwner(mock, model.RolePremium, todo.CommonQuota)
	mock.ExpectExec(`INSERT INTO todos`).
		WithArgs(sqlmock.AnyArg(), "u1", "6th task", false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`FROM todos WHERE \(todos\.user_id = \$1\) ORDER BY`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(todoColumns))
	mock.ExpectCommit()

	_, err := svc.Create(context.Background(), "6th task", "a@x.com")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTransactionRetries(t *testing.T) {
	deadlock := &pq.Error{Code: "40P01", Message: "deadlock detected"}

	t.Run("retryable failure reruns the transaction", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.MatchExpectationsInOrder(true)
		svc := todo.NewService(s.TodoRepository())

		mock.ExpectBegin()
		mock.ExpectQuery(`FROM users WHERE .* FOR UPDATE`).
			WithArgs("a@x.com").
			WillReturnError(deadlock)
		mock.ExpectRollback()

		mock.ExpectBegin()
		expectLockedOwner(mock, model.RoleCommon, 0)
		mock.ExpectExec(`INSERT INTO todos`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`FROM todos WHERE \(todos\.user_id = \$1\) ORDER BY`).
			WithArgs("u1").
			WillReturnRows(sqlmock.NewRows(todoColumns))
		mock.ExpectCommit()

		_, err := svc.Create(context.Background(), "Buy milk", "a@x.com")
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("gives up after the last attempt", func(t *testing.T) {
		s, mock := newMockStore(t)
		for i := 0; i < maxTransactionAttempts; i++ {
			mock.ExpectBegin()
			mock.ExpectExec(`DELETE FROM todos`).WillReturnError(deadlock)
			mock.ExpectRollback()
		}

		calls := 0
		err := s.WithTransaction(context.Background(), func(tx *Store) error {
			calls++
			return tx.DeleteTodoByID(context.Background(), "t1")
		})
		assert.ErrorIs(t, err, orm.ErrSerialization)
		assert.Equal(t, maxTransactionAttempts, calls)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("domain errors are not retried", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectRollback()

		calls := 0
		err := s.WithTransaction(context.Background(), func(tx *Store) error {
			calls++
			return todo.ErrQuotaExceeded
		})
		assert.ErrorIs(t, err, todo.ErrQuotaExceeded)
		assert.Equal(t, 1, calls)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTodoServiceDeleteOverStore(t *testing.T) {
	s, mock := newMockStore(t)
	svc := todo.NewService(s.TodoRepository())
	ctx := context.Background()

	t.Run("owned todo", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`FROM users WHERE`).WithArgs("a@x.com").WillReturnRows(userRow(model.RoleCommon))
		mock.ExpectQuery(`SELECT .* FROM todos WHERE \(id = \$1\) LIMIT 1`).
			WithArgs("t1").
			WillReturnRows(sqlmock.NewRows(todoColumns).AddRow("t1", "u1", "a", false, time.Now()))
		mock.ExpectExec(`DELETE FROM todos WHERE \(id = \$1\)`).
			WithArgs("t1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`FROM todos WHERE \(todos\.user_id = \$1\) ORDER BY`).
			WithArgs("u1").
			WillReturnRows(sqlmock.NewRows(todoColumns))
		mock.ExpectCommit()

		list, err := svc.Delete(ctx, "t1", "a@x.com")
		require.NoError(t, err)
		assert.Empty(t, list.Todos)
	})

	t.Run("foreign todo", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`FROM users WHERE`).WithArgs("a@x.com").WillReturnRows(userRow(model.RoleCommon))
		mock.ExpectQuery(`FROM todos WHERE \(id = \$1\) LIMIT 1`).
			WithArgs("t2").
			WillReturnRows(sqlmock.NewRows(todoColumns).AddRow("t2", "u2", "b", false, time.Now()))
		mock.ExpectRollback()

		_, err := svc.Delete(ctx, "t2", "a@x.com")
		assert.ErrorIs(t, err, todo.ErrDeleteFailed)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}
