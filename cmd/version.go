package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags "-X stopkeeper/cmd.version=...".
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the stopkeeper version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("stopkeeper " + version)
	},
}
