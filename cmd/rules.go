package cmd

import (
	"fmt"

	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/categorize"
	"github.com/spf13/cobra"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Print the categorization rules in priority order",
	Long: `Print the ordered rules that map changed paths to categories.
The first matching rule wins. Patterns containing "/" match the whole
path; patterns without "/" match anywhere in it. Matching ignores case.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		for i, r := range categorize.Rules() {
			if _, err := fmt.Fprintf(out, "%2d  %-8s %s\n", i+1, r.Category, r.Pattern); err != nil {
				return err
			}
		}
		return nil
	},
}
