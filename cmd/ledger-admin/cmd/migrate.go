package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/buildledger/api/pkg/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database schema migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE:  runMigrateUp,
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	RunE:  runMigrateDown,
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied and pending migrations",
	RunE:  runMigrateStatus,
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
}

func migrationRunner() (*migrations.Runner, *adminEnv, error) {
	env, err := openEnv()
	if err != nil {
		return nil, nil, err
	}

	runner := migrations.NewRunner(env.db.DB)
	if err := runner.EnsureMigrationTable(context.Background()); err != nil {
		env.Close()
		return nil, nil, fmt.Errorf("prepare migration table: %w", err)
	}
	return runner, env, nil
}

func runMigrateUp(cmd *cobra.Command, args []string) error {
	runner, env, err := migrationRunner()
	if err != nil {
		return err
	}
	defer env.Close()

	applied, err := runner.Up(context.Background())
	if err != nil {
		return err
	}

	if applied == 0 {
		fmt.Println("Database is up to date.")
	} else {
		fmt.Printf("Applied %d migration(s)\n", applied)
	}
	return nil
}

func runMigrateDown(cmd *cobra.Command, args []string) error {
	runner, env, err := migrationRunner()
	if err != nil {
		return err
	}
	defer env.Close()

	version, err := runner.Down(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("Rolled back migration %s\n", version)
	return nil
}

func runMigrateStatus(cmd *cobra.Command, args []string) error {
	runner, env, err := migrationRunner()
	if err != nil {
		return err
	}
	defer env.Close()

	ctx := context.Background()

	applied, err := runner.Applied(ctx)
	if err != nil {
		return err
	}
	pending, err := runner.Pending(ctx)
	if err != nil {
		return err
	}

	table := newTable("VERSION", "STATUS", "APPLIED AT")
	for _, rec := range applied {
		table.AddRow(rec.Version, "applied", shortTime(rec.AppliedAt))
	}
	for _, m := range pending {
		table.AddRow(m.Version, "pending", "-")
	}
	table.Flush()

	fmt.Printf("\n%d applied, %d pending\n", len(applied), len(pending))
	return nil
}
