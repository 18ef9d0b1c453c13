package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nerrad567/fujitsu-bridge/internal/infrastructure/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Inspect or change the database schema",
	Long: `Inspect or change the schema of the bridge database.

The run command applies pending migrations on start. These subcommands are
for checking a deployment and for stepping back after a bad upgrade.`,
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List applied and pending migrations",
	Args:  cobra.NoArgs,
	RunE:  runMigrateStatus,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	Args:  cobra.NoArgs,
	RunE:  runMigrateUp,
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the newest migration",
	Args:  cobra.NoArgs,
	RunE:  runMigrateDown,
}

func init() {
	migrateCmd.AddCommand(migrateStatusCmd, migrateUpCmd, migrateDownCmd)
	rootCmd.AddCommand(migrateCmd)
}

func openForMigrate(cmd *cobra.Command) (*database.DB, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return openDatabaseFile(cmd.Context(), cfg.Database)
}

func runMigrateStatus(cmd *cobra.Command, _ []string) error {
	db, err := openForMigrate(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	status, err := db.MigrationStatus(cmd.Context())
	if err != nil {
		return fmt.Errorf("reading migration status: %w", err)
	}
	return writeMigrationStatus(os.Stdout, status)
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	db, err := openForMigrate(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	before, err := db.MigrationStatus(cmd.Context())
	if err != nil {
		return fmt.Errorf("reading migration status: %w", err)
	}
	if err := db.Migrate(cmd.Context()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	fmt.Printf("Applied %d migration(s)\n", len(before.Pending))
	return nil
}

func runMigrateDown(cmd *cobra.Command, _ []string) error {
	db, err := openForMigrate(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	m, err := db.Rollback(cmd.Context())
	if err != nil {
		return err
	}
	if m == nil {
		fmt.Println("No migrations applied")
		return nil
	}
	fmt.Printf("Rolled back %s (%s)\n", m.Version, m.Name)
	return nil
}

// writeMigrationStatus prints one row per migration, applied ones first.
func writeMigrationStatus(out io.Writer, status database.MigrationStatus) error {
	if len(status.Applied) == 0 && len(status.Pending) == 0 {
		_, err := fmt.Fprintln(out, "No migrations")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tSTATE\tAPPLIED")
	for _, a := range status.Applied {
		fmt.Fprintf(w, "%s\tapplied\t%s\n", a.Version, a.AppliedAt.Local().Format("2006-01-02 15:04:05"))
	}
	for _, m := range status.Pending {
		fmt.Fprintf(w, "%s\tpending\t-\n", m.Version)
	}
	return w.Flush()
}
