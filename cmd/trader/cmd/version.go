package cmd

import (
	"fmt"

	"github.com/Quaser41/Autonomous-Trader/strategies"
	"github.com/spf13/cobra"
)

const version = "0.3.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  `Display the current version of the trader CLI and the registered strategies.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("trader version %s\n", version)
		fmt.Printf("strategies: %v\n", strategies.Names())
		fmt.Println("https://github.com/Quaser41/Autonomous-Trader")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
