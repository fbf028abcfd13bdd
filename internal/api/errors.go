package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eleven-am/todoapi/internal/model"
	"github.com/eleven-am/todoapi/internal/todo"
	"github.com/eleven-am/todoapi/internal/user"
)

var errUploadTooLarge = errors.New("profile image is too large")

var statusByError = []struct {
	err    error
	status int
}{
	{todo.ErrQuotaExceeded, http.StatusForbidden},
	{model.ErrUserNotFound, http.StatusNotFound},
	{todo.ErrTodoNotFound, http.StatusNotFound},
	{todo.ErrDeleteFailed, http.StatusBadRequest},
	{todo.ErrInvalidTitle, http.StatusBadRequest},
	{user.ErrProfileNotFound, http.StatusNotFound},
	{user.ErrDuplicatedEmail, http.StatusConflict},
	{user.ErrInvalidCredentials, http.StatusUnauthorized},
	{user.ErrNotEligible, http.StatusBadRequest},
	{user.ErrMissingArguments, http.StatusBadRequest},
	{errUploadTooLarge, http.StatusRequestEntityTooLarge},
}

func statusFor(err error) int {
	for _, m := range statusByError {
		if errors.Is(err, m.err) {
			return m.status
		}
	}
	return http.StatusInternalServerError
}

// fail writes err as a JSON error. Unmapped errors are logged and hidden.
func (h *Handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.WithError(err).Errorf("%s %s failed", c.Request.Method, c.FullPath())
		h.jsonError(c, status, "internal server error")
		return
	}
	h.jsonError(c, status, err.Error())
}
