package todo

import "errors"

var (
	ErrTodoNotFound  = errors.New("todo not found")
	ErrQuotaExceeded = errors.New("todo quota exceeded")
	ErrDeleteFailed  = errors.New("failed to delete todo")
	ErrInvalidTitle  = errors.New("title must be between 1 and 30 characters")
)
