package store

import (
	"context"

	"github.com/eleven-am/todoapi/internal/model"
	"github.com/eleven-am/todoapi/internal/orm"
)

// FindUserByEmail loads a user by email, ignoring case
func (s *Store) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.Users.Query(ctx).
		Where(model.Users.Email.EqualFold(email)).
		First()
}

// LockUserByEmail loads a user and holds a row lock on it until the transaction ends
func (s *Store) LockUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.Users.Query(ctx).
		Where(model.Users.Email.EqualFold(email)).
		ForUpdate().
		First()
}

// ExistsUserByEmail reports whether any user has the email, ignoring case
func (s *Store) ExistsUserByEmail(ctx context.Context, email string) (bool, error) {
	return s.Users.Query(ctx).
		Where(model.Users.Email.EqualFold(email)).
		Exists()
}

// CreateUser inserts a new user
func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	return s.Users.Create(ctx, user)
}

// SetUserRole moves a user from one role to another in a single statement.
// It fails with orm.ErrNotFound when no user with id currently holds from.
func (s *Store) SetUserRole(ctx context.Context, id string, from, to model.Role) error {
	rows, err := s.Users.Query(ctx).
		Where(model.Users.ID.Eq(id).And(model.Users.Role.Eq(from))).
		Update(map[string]interface{}{model.Users.Role.Name: to})
	if err != nil {
		return err
	}
	if rows == 0 {
		return &orm.Error{Op: "set_role", Table: s.Users.TableName(), Err: orm.ErrNotFound}
	}
	return nil
}
