package api

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/handlers"
	"github.com/patrickmn/go-cache"

	"github.com/eleven-am/todoapi/internal/auth"
	"github.com/eleven-am/todoapi/internal/logger"
	"github.com/eleven-am/todoapi/internal/todo"
	"github.com/eleven-am/todoapi/internal/user"
)

const (
	defaultCacheTTL      = 5 * time.Minute
	cacheCleanupInterval = 10 * time.Minute
	defaultMaxUpload     = 5 << 20
)

// TodoService is the todo behaviour the HTTP layer needs
type TodoService interface {
	Create(ctx context.Context, title, email string) (*todo.List, error)
	List(ctx context.Context, email string) (*todo.List, error)
	Delete(ctx context.Context, id, email string) (*todo.List, error)
	Check(ctx context.Context, id string, done bool, email string) (*todo.List, error)
}

// UserService is the account behaviour the HTTP layer needs
type UserService interface {
	SignUp(ctx context.Context, req *user.SignUpRequest, profileKey string) (*user.SignUpResponse, error)
	IsDuplicateEmail(ctx context.Context, email string) (bool, error)
	Authenticate(ctx context.Context, email, password string) (*user.LoginResponse, error)
	Promote(ctx context.Context, email string) (*user.LoginResponse, error)
	UploadProfileImage(ctx context.Context, data []byte, originalName string) (string, error)
	LoadProfileImage(ctx context.Context, email string) (io.ReadCloser, string, error)
}

// TokenParser validates bearer tokens
type TokenParser interface {
	Parse(token string) (*auth.Principal, time.Time, error)
}

// Options tunes the HTTP surface
type Options struct {
	AllowedOrigins []string
	CacheTTL       time.Duration
	MaxUploadSize  int64
}

// Handler holds the dependencies of every route
type Handler struct {
	todos      TodoService
	users      UserService
	tokens     TokenParser
	principals *cache.Cache
	opts       Options
	log        logger.Logger
}

// NewHandler creates a handler. Zero options fall back to defaults.
func NewHandler(todos TodoService, users UserService, tokens TokenParser, opts Options) *Handler {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = defaultCacheTTL
	}
	if opts.MaxUploadSize <= 0 {
		opts.MaxUploadSize = defaultMaxUpload
	}

	return &Handler{
		todos:      todos,
		users:      users,
		tokens:     tokens,
		principals: cache.New(opts.CacheTTL, cacheCleanupInterval),
		opts:       opts,
		log:        logger.HTTP(),
	}
}

// Router builds the gin engine with all routes mounted
func (h *Handler) Router() *gin.Engine {
	router := gin.New()
	router.MaxMultipartMemory = h.opts.MaxUploadSize
	router.Use(gin.Recovery(), h.logRequests)

	router.GET("/health", h.Health)

	authGroup := router.Group("/api/auth")
	authGroup.GET("/check", h.CheckEmail)
	authGroup.POST("/signup", h.SignUp)
	authGroup.POST("/signin", h.SignIn)
	authGroup.PUT("/promote", h.RequireAuth, h.Promote)
	authGroup.GET("/load-profile", h.RequireAuth, h.LoadProfile)

	todos := router.Group("/api/todos", h.RequireAuth)
	todos.GET("", h.ListTodos)
	todos.POST("", h.CreateTodo)
	todos.DELETE("/:id", h.DeleteTodo)
	todos.PUT("", h.CheckTodo)
	todos.PATCH("", h.CheckTodo)

	return router
}

// HTTPHandler returns the router behind the CORS policy for AllowedOrigins.
// Without allowed origins no cross-origin headers are sent.
func (h *Handler) HTTPHandler() http.Handler {
	router := h.Router()
	if len(h.opts.AllowedOrigins) == 0 {
		return router
	}

	cors := handlers.CORS(
		handlers.AllowedOrigins(h.opts.AllowedOrigins),
		handlers.AllowedMethods([]string{"GET", "HEAD", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
	)
	return cors(router)
}

// Health reports that the process is serving
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) jsonError(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{"error": message})
}
