package cmd

import (
	"fmt"
	"runtime"

	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/eos_io"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the autocommit version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "autocommit %s (%s %s/%s)\n",
			eos_io.Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}
