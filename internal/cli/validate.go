package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateRecursive bool

var validateCmd = &cobra.Command{
	Use:   "validate <path>",
	Short: "Check on-disk files against the database (size then hash) and report drift",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().BoolVarP(&validateRecursive, "recursive", "r", false, "walk path recursively instead of listing its direct entries")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	lib, err := openLibrary(ctx)
	if err != nil {
		return err
	}
	defer lib.Close()

	results, err := lib.Valid.ValidateFilesInPath(ctx, args[0], validateRecursive)
	if err != nil {
		return err
	}

	var bad int
	for _, r := range results {
		if r.Status != "valid" {
			bad++
		}
		fmt.Printf("%-16s  %s\n", r.Status, r.Path)
	}
	fmt.Printf("%d file(s) checked, %d not valid\n", len(results), bad)
	return nil
}
