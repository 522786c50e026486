package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var swimmerCmd = &cobra.Command{
	Use:   "swimmer",
	Short: "Manage swimmers",
}

var swimmerImportCmd = &cobra.Command{
	Use:   "import <file.csv>",
	Short: "Seed swimmers from a CSV file while the server is stopped",
	Long: `Register swimmers from a CSV file with the columns id and name.
Rows with an invalid or already registered id are reported and skipped.

This writes straight to the database and is meant for seeding before
"swim4love serve" starts. A running server does not see the new swimmers
until its next resync; upload the file to POST /admin/swimmer/import instead.`,
	Example: `swim4love swimmer import swimmers.csv
curl -b cookies.txt -F file=@swimmers.csv http://localhost:5000/admin/swimmer/import`,
	Args:    cobra.ExactArgs(1),
	RunE:    swimmerImport,
}

func init() {
	swimmerCmd.AddCommand(swimmerImportCmd)
	rootCmd.AddCommand(swimmerCmd)
}

func swimmerImport(cmd *cobra.Command, args []string) error {
	file, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer file.Close() //nolint:errcheck

	eng, closeFn, err := openEngine()
	if err != nil {
		return err
	}
	defer closeFn()

	result, err := eng.ImportSwimmers(cmd.Context(), cliActor, file)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, skipped := range result.Skipped {
		fmt.Fprintf(out, "skipped %s\n", skipped.Error())
	}
	fmt.Fprintf(out, "imported %d swimmers, skipped %d\n", len(result.Added), len(result.Skipped))
	return nil
}
