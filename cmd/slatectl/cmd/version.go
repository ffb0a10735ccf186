package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/good-yellow-bee/slate/pkg/config"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit, and build time of slatectl.`,
	Run: func(cmd *cobra.Command, args []string) {
		if output == "json" {
			data, _ := json.MarshalIndent(config.GetBuildInfo(), "", "  ")
			fmt.Println(string(data))
		} else {
			fmt.Println(config.VersionString("slatectl"))
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
