// Package cmd contains the admin app commands.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// NewRoot constructs the base command with every child command attached.
func NewRoot() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "admin",
		Short:         "Administrative tooling for the ledger node",
		SilenceUsage:  true,
	}

	rootCmd.AddCommand(newMerkleCmd())
	rootCmd.AddCommand(newMineCmd())
	rootCmd.AddCommand(newChainCmd())
	rootCmd.AddCommand(newStatusCmd())

	return rootCmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := NewRoot().Execute(); err != nil {
		os.Exit(1)
	}
}
