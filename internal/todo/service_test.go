package todo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/todoapi/internal/model"
	"github.com/eleven-am/todoapi/internal/orm"
)

type memRepo struct {
	mu        sync.Mutex
	users     map[string]model.User
	todos     map[string]model.Todo
	removeErr error
}

func newMemRepo(users ...model.User) *memRepo {
	r := &memRepo{
		users: make(map[string]model.User),
		todos: make(map[string]model.Todo),
	}
	for _, u := range users {
		r.users[u.Email] = u
	}
	return r
}

func notFound(table string) error {
	return &orm.Error{Op: "first", Table: table, Err: orm.ErrNotFound}
}

func (r *memRepo) FindOwner(_ context.Context, email string, _ bool) (*model.User, error) {
	u, ok := r.users[email]
	if !ok {
		return nil, notFound("users")
	}
	return &u, nil
}

func (r *memRepo) CountOwned(_ context.Context, userID string) (int, error) {
	count := 0
	for _, t := range r.todos {
		if t.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (r *memRepo) ListOwned(_ context.Context, userID string) ([]model.Todo, error) {
	var owned []model.Todo
	for _, t := range r.todos {
		if t.UserID == userID {
			owned = append(owned, t)
		}
	}
	sort.Slice(owned, func(i, j int) bool { return owned[i].CreatedAt.Before(owned[j].CreatedAt) })
	return owned, nil
}

func (r *memRepo) FindTodo(_ context.Context, id string) (*model.Todo, error) {
	t, ok := r.todos[id]
	if !ok {
		return nil, notFound("todos")
	}
	return &t, nil
}

func (r *memRepo) Insert(_ context.Context, todo *model.Todo) error {
	r.todos[todo.ID] = *todo
	return nil
}

func (r *memRepo) SetDone(_ context.Context, id string, done bool) error {
	t, ok := r.todos[id]
	if !ok {
		return notFound("todos")
	}
	t.Done = done
	r.todos[id] = t
	return nil
}

func (r *memRepo) Remove(_ context.Context, id string) error {
	if r.removeErr != nil {
		return r.removeErr
	}
	if _, ok := r.todos[id]; !ok {
		return notFound("todos")
	}
	delete(r.todos, id)
	return nil
}

func (r *memRepo) Atomic(_ context.Context, fn func(Repository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := make(map[string]model.Todo, len(r.todos))
	for k, v := range r.todos {
		snapshot[k] = v
	}

	if err := fn(r); err != nil {
		r.todos = snapshot
		return err
	}
	return nil
}

func (r *memRepo) promote(email string) {
	u := r.users[email]
	u.Role = model.RolePremium
	r.users[email] = u
}

func newTestService(repo Repository) *Service {
	svc := NewService(repo)
	var seq int
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		seq++
		return base.Add(time.Duration(seq) * time.Second)
	}
	svc.newID = func() string { return fmt.Sprintf("todo-%d", seq+1) }
	return svc
}

func user(id, email string, role model.Role) model.User {
	return model.User{ID: id, Email: email, UserName: id, Role: role}
}

func seed(t *testing.T, svc *Service, email string, n int) *List {
	t.Helper()
	var list *List
	var err error
	for i := 0; i < n; i++ {
		list, err = svc.Create(context.Background(), fmt.Sprintf("task %d", i+1), email)
		require.NoError(t, err)
	}
	return list
}

func TestMaxQuota(t *testing.T) {
	assert.Equal(t, 5, MaxQuota(model.RoleCommon))
	assert.Equal(t, Unlimited, MaxQuota(model.RolePremium))
	assert.Equal(t, Unlimited, MaxQuota(model.RoleAdmin))

	assert.NoError(t, CheckQuota(model.RoleCommon, 4))
	assert.ErrorIs(t, CheckQuota(model.RoleCommon, 5), ErrQuotaExceeded)
	assert.ErrorIs(t, CheckQuota(model.RoleCommon, 7), ErrQuotaExceeded)
	assert.NoError(t, CheckQuota(model.RolePremium, 100))
}

func TestCreateRoundTrip(t *testing.T) {
	repo := newMemRepo(user("u1", "a@x.com", model.RoleCommon))
	svc := newTestService(repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, "Buy milk", "a@x.com")
	require.NoError(t, err)
	require.Len(t, created.Todos, 1)

	list, err := svc.List(ctx, "a@x.com")
	require.NoError(t, err)
	require.Len(t, list.Todos, 1)
	assert.Equal(t, "Buy milk", list.Todos[0].Title)
	assert.False(t, list.Todos[0].Done)
	assert.False(t, list.Todos[0].CreatedAt.IsZero())
	assert.Equal(t, created, list)
}

func TestCreateQuota(t *testing.T) {
	t.Run("fourth to fifth succeeds", func(t *testing.T) {
		repo := newMemRepo(user("u1", "a@x.com", model.RoleCommon))
		svc := newTestService(repo)
		seed(t, svc, "a@x.com", 4)

		list, err := svc.Create(context.Background(), "5th task", "a@x.com")
		require.NoError(t, err)
		assert.Len(t, list.Todos, 5)
	})

	t.Run("sixth is rejected", func(t *testing.T) {
		repo := newMemRepo(user("u1", "a@x.com", model.RoleCommon))
		svc := newTestService(repo)
		seed(t, svc, "a@x.com", 5)

		_, err := svc.Create(context.Background(), "6th task", "a@x.com")
		assert.ErrorIs(t, err, ErrQuotaExceeded)

		list, err := svc.List(context.Background(), "a@x.com")
		require.NoError(t, err)
		assert.Len(t, list.Todos, 5)
	})

	for _, role := range []model.Role{model.RolePremium, model.RoleAdmin} {
		t.Run(string(role)+" is unlimited", func(t *testing.T) {
			repo := newMemRepo(user("u1", "p@x.com", role))
			svc := newTestService(repo)

			list := seed(t, svc, "p@x.com", 12)
			assert.Len(t, list.Todos, 12)
		})
	}

	t.Run("promotion lifts the ceiling", func(t *testing.T) {
		repo := newMemRepo(user("u1", "a@x.com", model.RoleCommon))
		repo.promote("a@x.com")
		svc := newTestService(repo)

		list := seed(t, svc, "a@x.com", 6)
		assert.Len(t, list.Todos, 6)
	})
}

func TestConcurrentCreatesRespectQuota(t *testing.T) {
	repo := newMemRepo(user("u1", "a@x.com", model.RoleCommon))
	svc := NewService(repo)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Create(context.Background(), fmt.Sprintf("task %d", i), "a@x.com")
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	rejected := 0
	for err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, ErrQuotaExceeded)
			rejected++
		}
	}
	assert.Equal(t, 5, rejected)
	assert.Len(t, repo.todos, 5)
}

func TestCreateValidation(t *testing.T) {
	repo := newMemRepo(user("u1", "a@x.com", model.RoleCommon))
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.Create(ctx, "   ", "a@x.com")
	assert.ErrorIs(t, err, ErrInvalidTitle)

	_, err = svc.Create(ctx, "this title is far too long to be stored", "a@x.com")
	assert.ErrorIs(t, err, ErrInvalidTitle)

	list, err := svc.Create(ctx, "  exactly thirty characters long ", "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "exactly thirty characters long", list.Todos[0].Title)

	_, err = svc.Create(ctx, "task", "nobody@x.com")
	assert.ErrorIs(t, err, model.ErrUserNotFound)
	assert.Empty(t, repo.todos["todo-2"].ID)
}

func TestListUnknownUser(t *testing.T) {
	svc := newTestService(newMemRepo())
	_, err := svc.List(context.Background(), "ghost@x.com")
	assert.ErrorIs(t, err, model.ErrUserNotFound)
}

func TestListIsOrderedAndScoped(t *testing.T) {
	repo := newMemRepo(
		user("u1", "a@x.com", model.RoleCommon),
		user("u2", "b@x.com", model.RoleCommon),
	)
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.Create(ctx, "first", "a@x.com")
	require.NoError(t, err)
	_, err = svc.Create(ctx, "other", "b@x.com")
	require.NoError(t, err)
	_, err = svc.Create(ctx, "second", "a@x.com")
	require.NoError(t, err)

	list, err := svc.List(ctx, "a@x.com")
	require.NoError(t, err)
	require.Len(t, list.Todos, 2)
	assert.Equal(t, "first", list.Todos[0].Title)
	assert.Equal(t, "second", list.Todos[1].Title)
}

func TestDelete(t *testing.T) {
	repo := newMemRepo(
		user("u1", "a@x.com", model.RoleCommon),
		user("u2", "b@x.com", model.RoleCommon),
	)
	svc := newTestService(repo)
	ctx := context.Background()

	list := seed(t, svc, "a@x.com", 3)
	target := list.Todos[1].ID

	t.Run("removes the todo", func(t *testing.T) {
		list, err := svc.Delete(ctx, target, "a@x.com")
		require.NoError(t, err)
		assert.Len(t, list.Todos, 2)

		list, err = svc.List(ctx, "a@x.com")
		require.NoError(t, err)
		for _, d := range list.Todos {
			assert.NotEqual(t, target, d.ID)
		}
	})

	t.Run("missing id fails and leaves list unchanged", func(t *testing.T) {
		_, err := svc.Delete(ctx, "missing", "a@x.com")
		assert.ErrorIs(t, err, ErrDeleteFailed)

		list, err := svc.List(ctx, "a@x.com")
		require.NoError(t, err)
		assert.Len(t, list.Todos, 2)
	})

	t.Run("unknown owner fails", func(t *testing.T) {
		_, err := svc.Delete(ctx, list.Todos[0].ID, "ghost@x.com")
		assert.ErrorIs(t, err, ErrDeleteFailed)
	})

	t.Run("another user's todo fails", func(t *testing.T) {
		_, err := svc.Delete(ctx, list.Todos[0].ID, "b@x.com")
		assert.ErrorIs(t, err, ErrDeleteFailed)

		list, err := svc.List(ctx, "a@x.com")
		require.NoError(t, err)
		assert.Len(t, list.Todos, 2)
	})

	t.Run("storage failure is hidden behind DeleteFailed", func(t *testing.T) {
		repo.removeErr = errors.New("connection reset")
		defer func() { repo.removeErr = nil }()

		_, err := svc.Delete(ctx, list.Todos[0].ID, "a@x.com")
		assert.ErrorIs(t, err, ErrDeleteFailed)
		assert.NotContains(t, err.Error(), "connection reset")

		list, err := svc.List(ctx, "a@x.com")
		require.NoError(t, err)
		assert.Len(t, list.Todos, 2)
	})
}

func TestCheck(t *testing.T) {
	repo := newMemRepo(
		user("u1", "a@x.com", model.RoleCommon),
		user("u2", "b@x.com", model.RoleCommon),
	)
	svc := newTestService(repo)
	ctx := context.Background()

	list := seed(t, svc, "a@x.com", 2)
	id := list.Todos[0].ID

	first, err := svc.Check(ctx, id, true, "a@x.com")
	require.NoError(t, err)
	assert.True(t, first.Todos[0].Done)
	assert.False(t, first.Todos[1].Done)

	second, err := svc.Check(ctx, id, true, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	listed, err := svc.List(ctx, "a@x.com")
	require.NoError(t, err)
	assert.True(t, listed.Todos[0].Done)

	unchecked, err := svc.Check(ctx, id, false, "a@x.com")
	require.NoError(t, err)
	assert.False(t, unchecked.Todos[0].Done)

	_, err = svc.Check(ctx, "missing", true, "a@x.com")
	assert.ErrorIs(t, err, ErrTodoNotFound)

	_, err = svc.Check(ctx, id, true, "b@x.com")
	assert.ErrorIs(t, err, ErrTodoNotFound)

	_, err = svc.Check(ctx, id, true, "ghost@x.com")
	assert.ErrorIs(t, err, model.ErrUserNotFound)
}

func TestListJSONShape(t *testing.T) {
	d := Detail{ID: "t1", Title: "Buy milk", CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	list := List{Todos: []Detail{d}}

	b, err := json.Marshal(list)
	require.NoError(t, err)
	assert.JSONEq(t, `{"todos":[{"id":"t1","title":"Buy milk","done":false,"createdAt":"2024-01-01T00:00:00Z"}]}`, string(b))
}
