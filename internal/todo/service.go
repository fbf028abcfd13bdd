package todo

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/eleven-am/todoapi/internal/logger"
	"github.com/eleven-am/todoapi/internal/model"
	"github.com/eleven-am/todoapi/internal/orm"
)

// Repository is the persistence the ownership service runs against.
// Lookups that match nothing return an error satisfying orm.IsNotFound.
type Repository interface {
	FindOwner(ctx context.Context, email string, forUpdate bool) (*model.User, error)
	CountOwned(ctx context.Context, userID string) (int, error)
	ListOwned(ctx context.Context, userID string) ([]model.Todo, error)
	FindTodo(ctx context.Context, id string) (*model.Todo, error)
	Insert(ctx context.Context, todo *model.Todo) error
	SetDone(ctx context.Context, id string, done bool) error
	Remove(ctx context.Context, id string) error

	// Atomic runs fn against a repository whose writes commit together or not at all
	Atomic(ctx context.Context, fn func(Repository) error) error
}

// Detail is the projection of a todo returned to callers
type Detail struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Done      bool      `json:"done"`
	CreatedAt time.Time `json:"createdAt"`
}

// List is the full set of todos owned by one user, oldest first
type List struct {
	Todos []Detail `json:"todos"`
}

// Service enforces todo ownership and per-role quotas.
// Every operation returns the caller's current list so clients can resync after a write.
type Service struct {
	repo  Repository
	log   logger.Logger
	now   func() time.Time
	newID func() string
}

// NewService creates an ownership service backed by repo
func NewService(repo Repository) *Service {
	return &Service{
		repo:  repo,
		log:   logger.Todo(),
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

// ValidateTitle trims title and checks it fits a todo
func ValidateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" || utf8.RuneCountInString(title) > model.TitleMaxLength {
		return "", ErrInvalidTitle
	}
	return title, nil
}

// Create adds a todo for the user with the given email.
// The owner row is locked while the quota is checked so concurrent creates cannot overshoot it.
func (s *Service) Create(ctx context.Context, title, email string) (*List, error) {
	title, err := ValidateTitle(title)
	if err != nil {
		return nil, err
	}

	var list *List
	err = s.repo.Atomic(ctx, func(repo Repository) error {
		owner, err := findOwner(ctx, repo, email, true)
		if err != nil {
			return err
		}

		owned, err := repo.CountOwned(ctx, owner.ID)
		if err != nil {
			return fmt.Errorf("failed to count todos: %w", err)
		}

		if err := CheckQuota(owner.Role, owned); err != nil {
			s.log.WithFields(map[string]interface{}{
				"user":  owner.Email,
				"role":  owner.Role,
				"owned": owned,
			}).Warn("Todo quota reached")
			return err
		}

		todo := &model.Todo{
			ID:        s.newID(),
			UserID:    owner.ID,
			Title:     title,
			CreatedAt: s.now(),
		}
		if err := repo.Insert(ctx, todo); err != nil {
			return fmt.Errorf("failed to insert todo: %w", err)
		}

		s.log.WithField("title", title).Infof("Todo created for %s", owner.Email)

		list, err = listFor(ctx, repo, owner.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return list, nil
}

// List returns every todo owned by the user with the given email
func (s *Service) List(ctx context.Context, email string) (*List, error) {
	owner, err := findOwner(ctx, s.repo, email, false)
	if err != nil {
		return nil, err
	}
	return listFor(ctx, s.repo, owner.ID)
}

// Delete removes a todo owned by the user with the given email.
// Any failure is reported as ErrDeleteFailed; the cause is only logged.
func (s *Service) Delete(ctx context.Context, id, email string) (*List, error) {
	var list *List
	err := s.repo.Atomic(ctx, func(repo Repository) error {
		owner, err := findOwner(ctx, repo, email, false)
		if err != nil {
			return err
		}

		todo, err := repo.FindTodo(ctx, id)
		if err != nil {
			return err
		}
		if todo.UserID != owner.ID {
			return ErrTodoNotFound
		}

		if err := repo.Remove(ctx, id); err != nil {
			return err
		}

		list, err = listFor(ctx, repo, owner.ID)
		return err
	})
	if err != nil {
		s.log.WithError(err).WithField("todo", id).Error("Failed to delete todo")
		return nil, ErrDeleteFailed
	}

	s.log.WithField("todo", id).Infof("Todo deleted for %s", email)
	return list, nil
}

// Check sets the done flag of a todo owned by the user with the given email
func (s *Service) Check(ctx context.Context, id string, done bool, email string) (*List, error) {
	var list *List
	err := s.repo.Atomic(ctx, func(repo Repository) error {
		owner, err := findOwner(ctx, repo, email, false)
		if err != nil {
			return err
		}

		todo, err := repo.FindTodo(ctx, id)
		if err != nil {
			if orm.IsNotFound(err) {
				return ErrTodoNotFound
			}
			return fmt.Errorf("failed to load todo: %w", err)
		}
		if todo.UserID != owner.ID {
			return ErrTodoNotFound
		}

		if todo.Done != done {
			if err := repo.SetDone(ctx, id, done); err != nil {
				return fmt.Errorf("failed to update todo: %w", err)
			}
		}

		list, err = listFor(ctx, repo, owner.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return list, nil
}

func findOwner(ctx context.Context, repo Repository, email string, forUpdate bool) (*model.User, error) {
	owner, err := repo.FindOwner(ctx, email, forUpdate)
	if err != nil {
		if orm.IsNotFound(err) {
			return nil, model.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load owner: %w", err)
	}
	return owner, nil
}

func listFor(ctx context.Context, repo Repository, userID string) (*List, error) {
	todos, err := repo.ListOwned(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list todos: %w", err)
	}

	list := &List{Todos: make([]Detail, 0, len(todos))}
	for _, t := range todos {
		list.Todos = append(list.Todos, Detail{
			ID:        t.ID,
			Title:     t.Title,
			Done:      t.Done,
			CreatedAt: t.CreatedAt,
		})
	}
	return list, nil
}
