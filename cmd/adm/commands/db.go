package commands

import (
	"context"
	"database/sql"

	"github.com/spf13/cobra"

	"lexiboost/internal/database"
	"lexiboost/internal/observability"
	contextutils "lexiboost/internal/utils"
)

// DatabaseCommands returns the database management commands
func DatabaseCommands(logger *observability.Logger, db *sql.DB, databaseURL string) *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	dbCmd.AddCommand(migrateCmd(logger, db, databaseURL))
	dbCmd.AddCommand(statsCmd(logger, db))

	return dbCmd
}

func migrateCmd(logger *observability.Logger, db *sql.DB, databaseURL string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the schema and pending migrations",
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx := context.Background()

			manager := database.NewManager(logger)
			if err := manager.RunMigrations(db, databaseURL); err != nil {
				return contextutils.WrapError(err, "migrations failed")
			}

			logger.Info(ctx, "Migrations applied", nil)
			return nil
		},
	}
}

func statsCmd(logger *observability.Logger, db *sql.DB) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show database statistics",
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx := context.Background()

			stats := map[string]interface{}{}
			for _, table := range []string{"users", "words", "user_words", "sessions", "question_attempts"} {
				var count int
				if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&count); err != nil {
					return contextutils.WrapErrorf(err, "failed to count %s", table)
				}
				stats[table] = count
			}

			logger.Info(ctx, "Database statistics", stats)
			return nil
		},
	}
}
