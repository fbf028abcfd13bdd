package store

import (
	"context"

	"github.com/eleven-am/todoapi/internal/model"
	"github.com/eleven-am/todoapi/internal/todo"
)

// TodoRepository exposes the store to the todo ownership service
func (s *Store) TodoRepository() todo.Repository {
	return todoRepository{s: s}
}

type todoRepository struct {
	s *Store
}

func (r todoRepository) FindOwner(ctx context.Context, email string, forUpdate bool) (*model.User, error) {
	if forUpdate {
		return r.s.LockUserByEmail(ctx, email)
	}
	return r.s.FindUserByEmail(ctx, email)
}

func (r todoRepository) CountOwned(ctx context.Context, userID string) (int, error) {
	return r.s.CountTodosByUser(ctx, userID)
}

func (r todoRepository) ListOwned(ctx context.Context, userID string) ([]model.Todo, error) {
	return r.s.TodosByUser(ctx, userID)
}

func (r todoRepository) FindTodo(ctx context.Context, id string) (*model.Todo, error) {
	return r.s.FindTodoByID(ctx, id)
}

func (r todoRepository) Insert(ctx context.Context, t *model.Todo) error {
	return r.s.CreateTodo(ctx, t)
}

func (r todoRepository) SetDone(ctx context.Context, id string, done bool) error {
	return r.s.SetTodoDone(ctx, id, done)
}

func (r todoRepository) Remove(ctx context.Context, id string) error {
	return r.s.DeleteTodoByID(ctx, id)
}

func (r todoRepository) Atomic(ctx context.Context, fn func(todo.Repository) error) error {
	return r.s.WithTransaction(ctx, func(tx *Store) error {
		return fn(todoRepository{s: tx})
	})
}

// UserDirectory exposes the store to the user directory service
func (s *Store) UserDirectory() *Directory {
	return &Directory{s: s}
}

// Directory is the users table seen as a user directory
type Directory struct {
	s *Store
}

// FindByEmail loads a user by email
func (d *Directory) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return d.s.FindUserByEmail(ctx, email)
}

// ExistsByEmail reports whether the email is taken
func (d *Directory) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return d.s.ExistsUserByEmail(ctx, email)
}

// Save inserts a new user
func (d *Directory) Save(ctx context.Context, user *model.User) error {
	return d.s.CreateUser(ctx, user)
}

// SetRole moves a user from one role to another
func (d *Directory) SetRole(ctx context.Context, id string, from, to model.Role) error {
	return d.s.SetUserRole(ctx, id, from, to)
}
