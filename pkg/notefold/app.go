// Package notefold wires the stores, authentication, change feed, and
// HTTP layer into the notefold server application.
package notefold

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/notefold/notefold/pkg/auth"
	"github.com/notefold/notefold/pkg/store"
	"github.com/notefold/notefold/pkg/store/memory"
	"github.com/notefold/notefold/pkg/store/postgres"
	"github.com/notefold/notefold/pkg/store/surrealdb"
)

// StoreKind selects the persistence backend.
type StoreKind string

const (
	StoreMemory    StoreKind = "memory"
	StorePostgres  StoreKind = "postgres"
	StoreSurrealDB StoreKind = "surrealdb"
)

// Config holds application configuration.
type Config struct {
	// Store selects the backend: memory, postgres, or surrealdb.
	Store StoreKind

	PostgresDSN string

	SurrealDBURL  string
	SurrealDBNS   string
	SurrealDBDB   string
	SurrealDBUser string
	SurrealDBPass string

	// ReadOnly rejects all write operations when set.
	ReadOnly bool

	// RequireConfirmation makes sign-up create pending accounts.
	RequireConfirmation bool

	ServerPort string
}

// Validate rejects configurations that cannot start.
func (c *Config) Validate() error {
	switch c.Store {
	case StoreMemory:
	case StorePostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("postgres store selected but no DSN configured")
		}
	case StoreSurrealDB:
		if c.SurrealDBURL == "" {
			return fmt.Errorf("surrealdb store selected but no URL configured")
		}
	default:
		return fmt.Errorf("unknown store kind: %q", c.Store)
	}
	return nil
}

// App holds the application state.
type App struct {
	store    store.Store
	config   *Config
	sessions *auth.Sessions
	auth     *auth.Authenticator
	hub      *Hub
	logger   zerolog.Logger
	readOnly bool
}

// New creates the application: connects the configured store, wraps it
// with read-only protection, and builds the session and change hub
// machinery.
func New(config *Config) (*App, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	logger := zerolog.New(os.Stderr).With().Timestamp().Str("component", "notefold").Logger()

	var backing store.Store
	var err error
	switch config.Store {
	case StoreMemory:
		backing = memory.NewStore()
		logger.Info().Msg("using in-memory store")
	case StorePostgres:
		backing, err = postgres.NewPostgresStore(config.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		logger.Info().Msg("connected to PostgreSQL")
	case StoreSurrealDB:
		backing, err = surrealdb.NewSurrealStore(
			config.SurrealDBURL,
			config.SurrealDBNS,
			config.SurrealDBDB,
			config.SurrealDBUser,
			config.SurrealDBPass,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
		}
		logger.Info().Msg("connected to SurrealDB")
	}

	app := &App{
		config:   config,
		logger:   logger,
		readOnly: config.ReadOnly,
	}
	app.store = store.NewReadOnlyStore(backing, app.IsReadOnly)
	app.sessions = auth.NewSessions()
	app.auth = auth.NewAuthenticator(app.store, app.sessions)
	app.auth.RequireConfirmation = config.RequireConfirmation
	app.hub = NewHub(logger)

	return app, nil
}

// Close closes the application and its resources.
func (a *App) Close() error {
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}

// Store returns the underlying store (useful for testing).
func (a *App) Store() store.Store {
	return a.store
}

// SetReadOnly toggles write rejection at runtime, for maintenance
// windows. Reads keep working.
func (a *App) SetReadOnly(readOnly bool) {
	a.readOnly = readOnly
	a.logger.Info().Bool("read_only", readOnly).Msg("read-only mode changed")
}

// IsReadOnly reports the current read-only state. The store wrapper
// consults it on every write.
func (a *App) IsReadOnly() bool {
	return a.readOnly
}

// getEnv returns the environment variable value, or the default when the
// variable is unset or empty.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
