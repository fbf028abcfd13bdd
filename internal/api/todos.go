package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ListTodos returns the caller's todos
func (h *Handler) ListTodos(c *gin.Context) {
	p, err := principalFrom(c)
	if err != nil {
		h.jsonError(c, http.StatusUnauthorized, err.Error())
		return
	}

	list, err := h.todos.List(c.Request.Context(), p.Email)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// CreateTodo adds a todo for the caller and returns the updated list
func (h *Handler) CreateTodo(c *gin.Context) {
	p, err := principalFrom(c)
	if err != nil {
		h.jsonError(c, http.StatusUnauthorized, err.Error())
		return
	}

	var body struct {
		Title string `json:"title"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		h.jsonError(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	list, err := h.todos.Create(c.Request.Context(), body.Title, p.Email)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// DeleteTodo removes one of the caller's todos by id
func (h *Handler) DeleteTodo(c *gin.Context) {
	p, err := principalFrom(c)
	if err != nil {
		h.jsonError(c, http.StatusUnauthorized, err.Error())
		return
	}

	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		h.jsonError(c, http.StatusBadRequest, "Invalid todo ID")
		return
	}

	list, err := h.todos.Delete(c.Request.Context(), id, p.Email)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// CheckTodo sets the completion flag of a todo
func (h *Handler) CheckTodo(c *gin.Context) {
	p, err := principalFrom(c)
	if err != nil {
		h.jsonError(c, http.StatusUnauthorized, err.Error())
		return
	}

	var body struct {
		ID   string `json:"id" binding:"required"`
		Done *bool  `json:"done" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		h.jsonError(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if _, err := uuid.Parse(body.ID); err != nil {
		h.jsonError(c, http.StatusBadRequest, "Invalid todo ID")
		return
	}

	list, err := h.todos.Check(c.Request.Context(), body.ID, *body.Done, p.Email)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}
