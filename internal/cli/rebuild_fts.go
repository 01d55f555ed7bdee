package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rebuildFTSCmd = &cobra.Command{
	Use:   "rebuild-fts",
	Short: "Rebuild the full-text search index from current file, author, and tag data",
	Args:  cobra.NoArgs,
	RunE:  runRebuildFTS,
}

func init() {
	rootCmd.AddCommand(rebuildFTSCmd)
}

func runRebuildFTS(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	lib, err := openLibrary(ctx)
	if err != nil {
		return err
	}
	defer lib.Close()

	if err := lib.Valid.RebuildFTSIndex(ctx); err != nil {
		return err
	}
	fmt.Println("FTS index rebuilt")
	return nil
}
