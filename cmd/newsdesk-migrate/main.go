// cmd/newsdesk-migrate/main.go
package main

import (
	"fmt"
	"os"

	"github.com/capekei/safra-sub003/internal/config"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{Use: "newsdesk-migrate"}

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down]",
	Short:     "Run database migrations",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down"},
	Run: func(cmd *cobra.Command, args []string) {
		direction := "up"
		if len(args) == 1 {
			direction = args[0]
		}

		connStr, _ := cmd.Flags().GetString("db")
		if connStr == "" {
			// Falls back to database.dsn, NEWSDESK_DATABASE_DSN or the DB_* variables (.env included).
			cfg, err := config.Load("")
			if err != nil {
				fmt.Printf("Failed to load configuration: %v\n", err)
				os.Exit(1)
			}
			if cfg.Database.Driver != config.DriverPostgres || cfg.Database.DSN == "" {
				fmt.Println("Error: --db flag, NEWSDESK_DATABASE_DSN or complete DB_* env vars (DB_USERNAME, DB_PASSWORD, DB_HOST, DB_PORT, DB_NAME) required")
				os.Exit(1)
			}
			connStr = cfg.Database.DSN
		}
		sourcePath, _ := cmd.Flags().GetString("path")

		m, err := migrate.New(sourcePath, connStr)
		if err != nil {
			fmt.Printf("Failed to initialize migrations: %v\n", err)
			os.Exit(1)
		}
		defer m.Close()

		if direction == "down" {
			err = m.Down()
		} else {
			err = m.Up()
		}
		if err != nil && err != migrate.ErrNoChange {
			fmt.Printf("Failed to apply migrations (%s): %v\n", direction, err)
			os.Exit(1)
		}
		fmt.Printf("Migrations applied successfully (%s)\n", direction)
	},
}

func main() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().String("db", "", "Database connection string (optional if DB_* env vars are set)")
	migrateCmd.Flags().String("path", "file://migrations", "Migration source URL")
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
