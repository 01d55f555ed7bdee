package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	rebuildPathsApply   bool
	rebuildPathsWorkers int
)

var rebuildPathsCmd = &cobra.Command{
	Use:   "rebuild-paths",
	Short: "Recompute every file's target path from its current metadata, and optionally relocate files that drifted",
	Args:  cobra.NoArgs,
	RunE:  runRebuildPaths,
}

func init() {
	rebuildPathsCmd.Flags().BoolVar(&rebuildPathsApply, "apply", false, "actually move files instead of only reporting what would move")
	rebuildPathsCmd.Flags().IntVar(&rebuildPathsWorkers, "workers", 4, "parallel workers used to plan moves")
	rootCmd.AddCommand(rebuildPathsCmd)
}

func runRebuildPaths(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	lib, err := openLibrary(ctx)
	if err != nil {
		return err
	}
	defer lib.Close()

	plans, err := lib.Valid.RebuildPaths(ctx, rebuildPathsApply, rebuildPathsWorkers)
	if err != nil {
		return err
	}

	var moved, planned, failed int
	for _, p := range plans {
		if !p.NeedsMove {
			continue
		}
		planned++
		switch {
		case p.Err != nil:
			failed++
			fmt.Printf("failed: %s -> %s: %v\n", p.OldPath, p.NewPath, p.Err)
		case p.Applied:
			moved++
			fmt.Printf("moved:  %s -> %s\n", p.OldPath, p.NewPath)
		default:
			fmt.Printf("would move: %s -> %s\n", p.OldPath, p.NewPath)
		}
	}

	if rebuildPathsApply {
		fmt.Printf("%d planned, %d moved, %d failed\n", planned, moved, failed)
	} else {
		fmt.Printf("%d file(s) would move (dry run)\n", planned)
	}
	return nil
}
