package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

// version is the simulator's own release tag, bumped by hand per release.
const version = "0.1.0"

var envFile string

// rootCmd is the base command when the binary is invoked without a
// subcommand.
var rootCmd = &cobra.Command{
	Use:   "simulator",
	Short: "Multicore OS simulator: pipelined cores, paged memory, and a blocking I/O service over a batch of assembled processes.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env",
		"path to an optional .env file overriding simulation parameters")

	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newVersionCommand())
}

// Execute runs the root command, exiting the process with status 1 on
// error, the way the teacher's own CLI entry point does. The exit goes
// through atexit.Exit so the handlers registered with atexit run first.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		atexit.Exit(1)
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print the simulator's version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), version)
			return nil
		},
	}
}
