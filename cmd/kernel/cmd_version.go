package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is stamped at release time; the development default is
// reported verbatim.
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the kernel version",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("kernel " + version)
		return nil
	},
}
