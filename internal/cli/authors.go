package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var mergeAuthorsCmd = &cobra.Command{
	Use:   "merge-authors <source-id> <target-id>",
	Short: "Merge one author identity into another, repointing every file and alias",
	Args:  cobra.ExactArgs(2),
	RunE:  runMergeAuthors,
}

var findDuplicateAuthorsCmd = &cobra.Command{
	Use:   "find-duplicate-authors",
	Short: "List author pairs whose names look like the same person",
	Args:  cobra.NoArgs,
	RunE:  runFindDuplicateAuthors,
}

func init() {
	rootCmd.AddCommand(mergeAuthorsCmd, findDuplicateAuthorsCmd)
}

func runMergeAuthors(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	lib, err := openLibrary(ctx)
	if err != nil {
		return err
	}
	defer lib.Close()

	if err := lib.Auth.Merge(ctx, args[0], args[1]); err != nil {
		return err
	}
	fmt.Printf("merged %s into %s\n", args[0], args[1])
	return nil
}

func runFindDuplicateAuthors(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	lib, err := openLibrary(ctx)
	if err != nil {
		return err
	}
	defer lib.Close()

	candidates, err := lib.Auth.FindDuplicates(ctx)
	if err != nil {
		return err
	}
	for _, c := range candidates {
		fmt.Printf("%.2f  %s (%s) <-> %s (%s)\n", c.Similarity, c.AuthorA.ID, c.AuthorA.Name, c.AuthorB.ID, c.AuthorB.Name)
	}
	fmt.Printf("%d candidate pair(s)\n", len(candidates))
	return nil
}
