// Package cmd contains the CLI commands for slatectl.
package cmd

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/good-yellow-bee/slate/internal/storage"
)

// defaultDBPath is the default database path, can be overridden via SLATE_DB_PATH env var
var defaultDBPath = "./data/slate.db"

func init() {
	if envPath := os.Getenv("SLATE_DB_PATH"); envPath != "" {
		defaultDBPath = envPath
	}
}

var (
	dbPath  string
	verbose bool
	output  string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "slatectl",
	Short: "slatectl - Slate administration",
	Long: `slatectl manages a Slate database directly.

It is intended for administrators: creating accounts, inspecting
projects and removing them without going through the web interface.

Examples:
  # Create an account
  slatectl user create --email dee@example.com --name "Dee"

  # List the projects someone can see
  slatectl project list --owner dee@example.com

  # Show a project's shot and budget totals
  slatectl project show 0192f0c4-...`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", defaultDBPath, "path to SQLite database file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "output format (table, json)")
}

// PrintVerbose prints a message only if verbose mode is enabled.
func PrintVerbose(format string, args ...interface{}) {
	if verbose {
		fmt.Printf(format+"\n", args...)
	}
}

// openDatabase opens an existing SQLite database and brings its schema up to date.
func openDatabase(path string) (*storage.SQLiteStorage, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("database file not found: %s", path)
	}

	store := storage.NewSQLiteStorage(path)
	if err := store.Open(); err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	PrintVerbose("opened %s", path)
	return store, nil
}

func newTable() table.Writer {
	tw := table.NewWriter()
	tw.Style().Options.DrawBorder = false
	tw.Style().Options.SeparateColumns = false
	tw.Style().Options.SeparateFooter = false
	tw.Style().Options.SeparateHeader = false
	tw.Style().Options.SeparateRows = false
	return tw
}
