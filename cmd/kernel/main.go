// Package main implements kernel, the cognitive kernel's CLI front end.
//
// File index:
//   - main.go       - entry point, rootCmd, global flags
//   - cmd_serve.go  - serveCmd, the control-loop driver reading/writing
//                     newline-delimited JSON over stdio
//   - cmd_assert.go - assertCmd, queryCmd: one-shot KB operations against
//                     the configured persistence file
//   - cmd_version.go - versionCmd
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"cogkernel/internal/logging"
)

var (
	configPath string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:   "kernel",
	Short: "cogkernel - a term-logic reasoning kernel",
	Long: `kernel hosts the cognitive kernel: a term-logic knowledge base with
a justification-based truth maintenance system, a rule engine, a
primitive tool registry, and an LLM-backed API gateway, driven by a
scheduled control loop.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logging.Initialize(debug); err != nil {
			return fmt.Errorf("kernel: initialize logging: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logging.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "kernel.yaml", "path to the YAML configuration file")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug-level logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(assertCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
