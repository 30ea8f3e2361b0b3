// Package appctx provides a shared bootstrap helper for CLI commands.
// It centralizes config loading, database opening, and user resolution
// to reduce boilerplate across commands.
package appctx

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/lherron/daybook/internal/config"
	"github.com/lherron/daybook/internal/db"
	"github.com/lherron/daybook/internal/domain"
	"github.com/lherron/daybook/internal/store"
)

// App holds the shared application context for commands.
type App struct {
	// Config is the loaded configuration
	Config *config.Config

	// Logger writes diagnostics to stderr at the configured level
	Logger *slog.Logger

	// DB is the opened database connection (nil if NeedsDB is false)
	DB *db.DB

	// Store wraps DB (nil if NeedsDB is false)
	Store *store.Store

	// User is the resolved user (nil if NeedsUser is false)
	User *domain.User
}

// Close releases resources held by the App.
// Safe to call multiple times.
func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
		a.DB = nil
	}
}

// UserUUID returns the resolved user's UUID.
func (a *App) UserUUID() string {
	if a.User == nil {
		return ""
	}
	return a.User.UUID
}

// Options configures the bootstrap behavior.
type Options struct {
	// NeedsDB indicates whether to open the database.
	NeedsDB bool

	// NeedsUser indicates whether to resolve the current user.
	// Requires NeedsDB to also be true.
	NeedsUser bool
}

// DefaultOptions returns default options (DB required, no user).
func DefaultOptions() Options {
	return Options{NeedsDB: true}
}

// WithUser returns options that require both DB and user.
func WithUser() Options {
	return Options{NeedsDB: true, NeedsUser: true}
}

// RunFunc is the signature for command run functions.
type RunFunc func(app *App, cmd *cobra.Command, args []string) error

// WithApp wraps a command's run function with shared bootstrap logic.
// The database is closed automatically when the wrapped function returns.
func WithApp(opts Options, fn RunFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		app, err := Bootstrap(cmd, opts)
		if err != nil {
			return err
		}
		defer app.Close()

		return fn(app, cmd, args)
	}
}

// Bootstrap initializes the App according to the given options.
// Callers are responsible for calling App.Close() when done.
func Bootstrap(cmd *cobra.Command, opts Options) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	ApplyFlags(cmd, cfg)

	app := &App{
		Config: cfg,
		Logger: cfg.NewLogger(cmd.ErrOrStderr()),
	}

	if opts.NeedsDB {
		database, err := db.Open(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := database.RequiresMigrationError(); err != nil {
			database.Close()
			return nil, err
		}
		app.DB = database
		app.Store = store.New(database).WithLogger(app.Logger)
	}

	if opts.NeedsUser {
		if app.Store == nil {
			app.Close()
			return nil, fmt.Errorf("user resolution requires database (set NeedsDB: true)")
		}
		user, err := resolveUser(cmd.Context(), app.Store, cfg)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.User = user
	}

	app.Logger.Debug("bootstrap complete", "db", cfg.DBPath, "user", app.UserUUID())
	return app, nil
}

// ApplyFlags copies the global --db, --as and --output flags over cfg.
func ApplyFlags(cmd *cobra.Command, cfg *config.Config) {
	if f := cmd.Flag("db"); f != nil && f.Value.String() != "" {
		cfg.DBPath = f.Value.String()
	}
	if f := cmd.Flag("as"); f != nil && f.Value.String() != "" {
		cfg.DefaultUser = f.Value.String()
	}
	if f := cmd.Flag("output"); f != nil && f.Changed {
		cfg.Output = f.Value.String()
	}
}

func resolveUser(ctx context.Context, s *store.Store, cfg *config.Config) (*domain.User, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ref := cfg.DefaultUser
	if ref == "" {
		return nil, fmt.Errorf("no user configured (set DAYBOOK_USER, default_user in config.yaml, or use --as)")
	}
	user, err := s.Users.Resolve(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}
	return user, nil
}
