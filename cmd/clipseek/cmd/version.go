package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clipseek/clipseek/internal/version"
)

var versionJSON bool

// versionCmd represents the version command.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Print the version, commit, and build date of clipseek.",
	Run: func(cmd *cobra.Command, args []string) {
		if versionJSON {
			fmt.Println(version.JSON())
			return
		}

		fmt.Println(version.String())
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "output version information as JSON")
	rootCmd.AddCommand(versionCmd)
}
