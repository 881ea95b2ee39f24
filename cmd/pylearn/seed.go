package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/michaelbrown/pylearn/internal/storage"
)

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert the default lessons into an empty lessons table",
	Long: `Seed the configured database with lessons. Nothing is inserted when
the lessons table already has rows.

Examples:
  pylearn seed
  pylearn seed --file my-lessons.yaml`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringVar(&seedFile, "file", "", "YAML lessons file (default: built-in lessons)")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := cfg.NewLogger(os.Stderr)

	store, err := openStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer store.Close()

	var lessons []storage.NewLesson
	if seedFile != "" {
		data, err := os.ReadFile(seedFile)
		if err != nil {
			return fmt.Errorf("reading lessons file: %w", err)
		}
		lessons, err = storage.ParseLessons(data)
		if err != nil {
			return err
		}
	} else {
		lessons, err = storage.DefaultLessons()
		if err != nil {
			return err
		}
	}

	n, err := storage.Seed(cmd.Context(), store, lessons)
	if err != nil {
		return fmt.Errorf("seeding lessons: %w", err)
	}
	logger.Debug("seed finished", slog.Int("inserted", n))

	if n == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Lessons already present, nothing inserted.")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Inserted %d lessons.\n", n)
	return nil
}
