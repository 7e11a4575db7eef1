package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the inquest version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("inquest %s\n", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
