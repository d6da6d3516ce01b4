// Package commands provides CLI commands for the admin tool
package commands

import (
	"context"
	"database/sql"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"lexiboost/internal/observability"
	contextutils "lexiboost/internal/utils"
)

// WordCommands returns the vocabulary management commands
func WordCommands(logger *observability.Logger, db *sql.DB) *cobra.Command {
	wordsCmd := &cobra.Command{
		Use:   "words",
		Short: "Vocabulary management commands",
	}

	wordsCmd.AddCommand(importWordsCmd(logger, db))
	wordsCmd.AddCommand(countWordsCmd(logger, db))

	return wordsCmd
}

func importWordsCmd(logger *observability.Logger, db *sql.DB) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import words from a CSV file",
		Long: `Import words from a CSV file into the vocabulary table.

Each row is: word[,definition[,difficulty_level]]. A header row starting
with "word" is skipped, and words already present are left untouched.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ctx := context.Background()

			file, err := os.Open(args[0])
			if err != nil {
				return contextutils.WrapErrorf(err, "failed to open %s", args[0])
			}
			defer func() { _ = file.Close() }()

			imported, skipped, err := importWordsFromCSV(ctx, db, file)
			if err != nil {
				return err
			}

			logger.Info(ctx, "Word import finished", map[string]interface{}{
				"file":     args[0],
				"imported": imported,
				"skipped":  skipped,
			})
			return nil
		},
	}
}

func countWordsCmd(logger *observability.Logger, db *sql.DB) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Count words in the vocabulary table",
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx := context.Background()

			var count int
			if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM words`).Scan(&count); err != nil {
				return contextutils.WrapError(err, "failed to count words")
			}

			logger.Info(ctx, "Vocabulary size", map[string]interface{}{"words": count})
			return nil
		},
	}
}

// importWordsFromCSV inserts each CSV row into the words table, leaving
// existing entries untouched.
func importWordsFromCSV(ctx context.Context, db *sql.DB, r io.Reader) (imported, skipped int, err error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	for {
		record, readErr := reader.Read()
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return imported, skipped, contextutils.WrapError(readErr, "failed to parse CSV")
		}
		if len(record) == 0 {
			continue
		}

		word := strings.ToLower(strings.TrimSpace(record[0]))
		if word == "" || word == "word" {
			continue
		}

		definition := ""
		if len(record) > 1 {
			definition = strings.TrimSpace(record[1])
		}
		difficulty := 1
		if len(record) > 2 {
			if d, convErr := strconv.Atoi(strings.TrimSpace(record[2])); convErr == nil {
				difficulty = d
			}
		}

		result, execErr := db.ExecContext(ctx, `
			INSERT INTO words (word, definition, difficulty_level)
			VALUES ($1, $2, $3)
			ON CONFLICT (word) DO NOTHING`, word, definition, difficulty)
		if execErr != nil {
			return imported, skipped, contextutils.WrapErrorf(execErr, "failed to insert word %q", word)
		}

		affected, _ := result.RowsAffected()
		if affected > 0 {
			imported++
		} else {
			skipped++
		}
	}

	return imported, skipped, nil
}
