package notefold

import "context"

// Command is a discrete application operation selected on the command
// line. Each implementation carries its own options; the Config holds
// what is shared.
type Command interface {
	// Name returns the CLI sub-command this command corresponds to.
	Name() string
}

// MigrateCommand creates or updates the schema of the configured store.
// It is idempotent: running it repeatedly only applies missing schema
// elements. The SurrealDB backend needs no schema; the PostgreSQL
// backend uses GORM auto-migration.
type MigrateCommand struct{}

func (c *MigrateCommand) Name() string {
	return "migrate"
}

// RunCommand starts the HTTP server.
type RunCommand struct{}

func (c *RunCommand) Name() string {
	return "run"
}

// Migrate executes a MigrateCommand against the active store.
func (a *App) Migrate(ctx context.Context, cmd *MigrateCommand) error {
	a.logger.Info().Str("store", string(a.config.Store)).Msg("running migrations")
	return a.store.Migrate(ctx)
}
