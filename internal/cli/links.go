package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerdneilsfield/tagbox-go/internal/links"
)

var linkCmd = &cobra.Command{
	Use:   "link <file-id-a> <file-id-b> <relation>",
	Short: "Record a relation between two files (e.g. translation, version, supplement)",
	Args:  cobra.ExactArgs(3),
	RunE:  runLink,
}

var unlinkCmd = &cobra.Command{
	Use:   "unlink <file-id-a> <file-id-b> <relation>",
	Short: "Remove a relation between two files",
	Args:  cobra.ExactArgs(3),
	RunE:  runUnlink,
}

var unlinkBatchFile string

var unlinkBatchCmd = &cobra.Command{
	Use:   "unlink-batch",
	Short: "Remove relations listed in a file, one \"file-id-a file-id-b relation\" triple per line",
	Args:  cobra.NoArgs,
	RunE:  runUnlinkBatch,
}

var linksCmd = &cobra.Command{
	Use:   "links <file-id>",
	Short: "List every relation recorded for a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runLinks,
}

func init() {
	unlinkBatchCmd.Flags().StringVar(&unlinkBatchFile, "file", "", "path to the pairs file (required)")
	unlinkBatchCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(linkCmd, unlinkCmd, unlinkBatchCmd, linksCmd)
}

func runLink(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	lib, err := openLibrary(ctx)
	if err != nil {
		return err
	}
	defer lib.Close()

	if err := lib.Links.Link(ctx, args[0], args[1], args[2]); err != nil {
		return err
	}
	fmt.Printf("linked %s <-> %s (%s)\n", args[0], args[1], args[2])
	return nil
}

func runUnlink(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	lib, err := openLibrary(ctx)
	if err != nil {
		return err
	}
	defer lib.Close()

	if err := lib.Links.Unlink(ctx, args[0], args[1], args[2]); err != nil {
		return err
	}
	fmt.Printf("unlinked %s <-> %s (%s)\n", args[0], args[1], args[2])
	return nil
}

func runUnlinkBatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	lib, err := openLibrary(ctx)
	if err != nil {
		return err
	}
	defer lib.Close()

	pairs, err := links.UnlinkPairsFromFile(unlinkBatchFile)
	if err != nil {
		return err
	}

	results := lib.Links.UnlinkBatch(ctx, pairs)
	failures := 0
	for _, r := range results {
		if r.Err != nil {
			failures++
			fmt.Printf("FAILED %s <-> %s (%s): %v\n", r.Pair.FileIDA, r.Pair.FileIDB, r.Pair.RelationType, r.Err)
			continue
		}
		fmt.Printf("unlinked %s <-> %s (%s)\n", r.Pair.FileIDA, r.Pair.FileIDB, r.Pair.RelationType)
	}
	fmt.Printf("%d unlinked, %d failed\n", len(results)-failures, failures)
	return nil
}

func runLinks(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	lib, err := openLibrary(ctx)
	if err != nil {
		return err
	}
	defer lib.Close()

	links, err := lib.Links.ListForFile(ctx, args[0])
	if err != nil {
		return err
	}
	for _, l := range links {
		fmt.Printf("%s  %s  %s\n", l.FileIDA, l.FileIDB, l.RelationType)
	}
	fmt.Printf("%d link(s)\n", len(links))
	return nil
}
