package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/simonhull/audioprobe"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Print the version, commit and build time of audioprobe.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		format, err := outputFormat(cmd)
		if err != nil {
			return err
		}
		info := audioprobe.GetVersionInfo()
		return render(cmd.OutOrStdout(), format, info, func(w io.Writer) error {
			_, err := fmt.Fprintf(w, "audioprobe %s (commit %s, built %s, %s)\n",
				info.Version, info.GitCommit, info.BuildTime, info.GoVersion)
			return err
		})
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
