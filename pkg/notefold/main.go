package notefold

import (
	"context"
	"fmt"
)

// Main is the entry point for the notefold application. It parses args,
// builds the App, and dispatches the selected command. Tests call it
// directly instead of building the binary; the context supports graceful
// shutdown in both settings.
//
// Environment variables:
//
//	POSTGRES_DSN    - PostgreSQL connection string
//	SURREALDB_URL   - SurrealDB WebSocket URL (default: ws://localhost:8000/rpc)
//	SURREALDB_NS    - SurrealDB namespace (default: notefold)
//	SURREALDB_DB    - SurrealDB database (default: notefold)
//	SURREALDB_USER  - SurrealDB username (default: root)
//	SURREALDB_PASS  - SurrealDB password (default: root)
//
// A .env file in the working directory is loaded when present.
func Main(ctx context.Context, args []string) error {
	cmd, config, err := Parse(args)
	if err != nil {
		return fmt.Errorf("failed to parse configuration: %w", err)
	}

	app, err := New(config)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	defer app.Close()

	switch c := cmd.(type) {
	case *MigrateCommand:
		if err := app.Migrate(ctx, c); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	case *RunCommand:
		if err := app.Run(ctx, c); err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	default:
		return fmt.Errorf("unknown command type: %T", cmd)
	}

	return nil
}
