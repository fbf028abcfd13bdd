package store

import (
	"context"

	"github.com/eleven-am/todoapi/internal/model"
	"github.com/eleven-am/todoapi/internal/orm"
)

// CountTodosByUser returns how many todos a user owns
func (s *Store) CountTodosByUser(ctx context.Context, userID string) (int, error) {
	count, err := s.Todos.Query(ctx).
		Where(model.Todos.UserID.Eq(userID)).
		Count()
	return int(count), err
}

// TodosByUser returns a user's todos, oldest first
func (s *Store) TodosByUser(ctx context.Context, userID string) ([]model.Todo, error) {
	return s.Todos.Query(ctx).
		Where(model.Todos.UserID.Eq(userID)).
		OrderBy(model.Todos.CreatedAt.Asc(), model.Todos.ID.Asc()).
		Find()
}

// FindTodoByID loads a single todo
func (s *Store) FindTodoByID(ctx context.Context, id string) (*model.Todo, error) {
	return s.Todos.FindByID(ctx, id)
}

// CreateTodo inserts a todo
func (s *Store) CreateTodo(ctx context.Context, todo *model.Todo) error {
	return s.Todos.Create(ctx, todo)
}

// SetTodoDone overwrites a todo's done flag
func (s *Store) SetTodoDone(ctx context.Context, id string, done bool) error {
	rows, err := s.Todos.Query(ctx).
		Where(model.Todos.ID.Eq(id)).
		Update(map[string]interface{}{model.Todos.Done.Name: done})
	if err != nil {
		return err
	}
	if rows == 0 {
		return &orm.Error{Op: "set_done", Table: s.Todos.TableName(), Err: orm.ErrNotFound}
	}
	return nil
}

// DeleteTodoByID removes a todo
func (s *Store) DeleteTodoByID(ctx context.Context, id string) error {
	return s.Todos.DeleteByID(ctx, id)
}
