package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var (
	version string

	// Global flags
	flagOutput  string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "ledger-admin",
	Short: "BuildLedger operator CLI",
	Long: `ledger-admin is the operator CLI for a BuildLedger deployment.

It connects directly to the configured database and covers the tasks
that have no tenant-facing API: listing workspaces, inspecting and
sweeping invitations, deactivating members, and running schema
migrations.

Connection settings come from the same environment variables the API
server reads.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the CLI version from build flags.
func SetVersion(v string) {
	version = v
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ledger-admin %s (%s, %s/%s)\n", version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", "table", "Output format: table, json, yaml")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable verbose output")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(tenantCmd)
	rootCmd.AddCommand(invitationCmd)
	rootCmd.AddCommand(memberCmd)
	rootCmd.AddCommand(migrateCmd)
}
