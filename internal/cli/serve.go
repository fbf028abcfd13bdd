package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/eleven-am/todoapi/internal/api"
	"github.com/eleven-am/todoapi/internal/auth"
	"github.com/eleven-am/todoapi/internal/logger"
	"github.com/eleven-am/todoapi/internal/storage"
	"github.com/eleven-am/todoapi/internal/store"
	"github.com/eleven-am/todoapi/internal/todo"
	"github.com/eleven-am/todoapi/internal/user"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long:  "Connect to the database, wire the services and serve the API until SIGINT or SIGTERM",
		RunE:  runServe,
	}
}

// application owns everything serve builds and must release
type application struct {
	store   *store.Store
	hasher  *auth.Hasher
	handler *api.Handler
}

func newApplication(ctx context.Context, cfg *Config) (*application, error) {
	tokens, err := auth.NewTokenIssuer(cfg.Auth.Secret, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, err
	}

	objects, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to set up storage: %w", err)
	}

	st, err := store.Open(ctx, &store.Config{
		URL:             cfg.Database.URL,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		MaxOpenConns:    cfg.Database.MaxConnections,
		MaxIdleConns:    cfg.Database.MaxIdleConnections,
	})
	if err != nil {
		return nil, err
	}

	hasher := auth.NewHasher(cfg.Auth.HashWorkers, cfg.Auth.BcryptCost)

	todos := todo.NewService(st.TodoRepository())
	users := user.NewService(st.UserDirectory(), tokens, hasher, objects)

	return &application{
		store:  st,
		hasher: hasher,
		handler: api.NewHandler(todos, users, tokens, api.Options{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			CacheTTL:       cfg.Auth.CacheTTL,
			MaxUploadSize:  cfg.Server.MaxUploadSize,
		}),
	}, nil
}

func (a *application) Close() error {
	a.hasher.Close()
	return a.store.Close()
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := appConfig.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.CLI()

	if !debug && !verbose {
		gin.SetMode(gin.ReleaseMode)
	}

	app, err := newApplication(ctx, appConfig)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.WithError(err).Warn("Failed to close resources")
		}
	}()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", appConfig.Server.Port),
		Handler:      app.handler.HTTPHandler(),
		ReadTimeout:  appConfig.Server.ReadTimeout,
		WriteTimeout: appConfig.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		log.Infof("Serving API at http://127.0.0.1:%d", appConfig.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Signal received, shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), appConfig.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return <-errCh
}

// redactURL hides the password of a database URL or key/value DSN
func redactURL(dsn string) string {
	if u, err := url.Parse(dsn); err == nil && u.Scheme != "" {
		return u.Redacted()
	}

	fields := strings.Fields(dsn)
	for i, f := range fields {
		if strings.HasPrefix(f, "password=") {
			fields[i] = "password=xxxxx"
		}
	}
	return strings.Join(fields, " ")
}
