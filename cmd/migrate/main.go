package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"mediabot/internal/storage/ch"
	"mediabot/migrations"
)

var migrationsDir string

var rootCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the ClickHouse schema of the media bot",
	Long: `Runs the embedded goose migrations against the ClickHouse server
configured by the CLICKHOUSE_* environment variables (a .env file is read if present).`,
	SilenceUsage: true,
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: withDB(func(db *sql.DB, args []string) error {
		if err := goose.Up(db, "."); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Println("Migrations completed successfully")
		return nil
	}),
}

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the latest migration",
	Args:  cobra.NoArgs,
	RunE: withDB(func(db *sql.DB, args []string) error {
		if err := goose.Down(db, "."); err != nil {
			return fmt.Errorf("failed to rollback migration: %w", err)
		}
		log.Println("Rollback completed successfully")
		return nil
	}),
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which migrations are applied",
	Args:  cobra.NoArgs,
	RunE: withDB(func(db *sql.DB, args []string) error {
		if err := goose.Status(db, "."); err != nil {
			return fmt.Errorf("failed to get migration status: %w", err)
		}
		return nil
	}),
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current schema version",
	Args:  cobra.NoArgs,
	RunE: withDB(func(db *sql.DB, args []string) error {
		version, err := goose.GetDBVersion(db)
		if err != nil {
			return fmt.Errorf("failed to get version: %w", err)
		}
		log.Printf("Current migration version: %d", version)
		return nil
	}),
}

var createCmd = &cobra.Command{
	Use:   "create <migration_name>",
	Short: "Create a new SQL migration file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		// New files go to disk, not to the embedded FS
		goose.SetBaseFS(nil)
		if err := goose.Create(nil, migrationsDir, args[0], "sql"); err != nil {
			return fmt.Errorf("failed to create migration: %w", err)
		}
		log.Printf("Created migration: %s", args[0])
		return nil
	},
}

func init() {
	createCmd.Flags().StringVar(&migrationsDir, "dir", "./migrations", "directory to write the new migration to")

	rootCmd.AddCommand(upCmd)
	rootCmd.AddCommand(downCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(createCmd)
}

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using existing environment variables")
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// withDB opens ClickHouse, points goose at the embedded migrations and runs fn
func withDB(fn func(db *sql.DB, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		opts, err := optionsFromEnv()
		if err != nil {
			return err
		}

		db := ch.OpenSQL(opts)
		defer db.Close()

		if err := db.Ping(); err != nil {
			return fmt.Errorf("failed to ping database: %w", err)
		}
		log.Println("Connected to ClickHouse successfully")

		goose.SetBaseFS(migrations.FS)
		if err := goose.SetDialect(migrations.Dialect); err != nil {
			return fmt.Errorf("failed to set dialect: %w", err)
		}
		return fn(db, args)
	}
}

func optionsFromEnv() (ch.Options, error) {
	port, err := strconv.Atoi(getEnv("CLICKHOUSE_PORT", "9000"))
	if err != nil {
		return ch.Options{}, fmt.Errorf("invalid CLICKHOUSE_PORT: %w", err)
	}
	return ch.Options{
		Host:     getEnv("CLICKHOUSE_HOST", "localhost"),
		Port:     port,
		Database: getEnv("CLICKHOUSE_DATABASE", "default"),
		User:     getEnv("CLICKHOUSE_USER", "default"),
		Password: getEnv("CLICKHOUSE_PASSWORD", ""),
		UseTLS:   getEnv("CLICKHOUSE_USE_TLS", "false") == "true",
	}, nil
}

// getEnv retrieves environment variable or returns default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
