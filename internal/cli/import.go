package cli

import (
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/nerdneilsfield/tagbox-go/internal/extract"
	"github.com/nerdneilsfield/tagbox-go/internal/importer"
)

var (
	importRecursive      bool
	importInclude        []string
	importExclude        []string
	importDeleteOriginal bool
	importConcurrency    int
)

var importCmd = &cobra.Command{
	Use:   "import <path>...",
	Short: "Import one or more files, or every file under a directory, into the library",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runImport,
}

func init() {
	importCmd.Flags().BoolVarP(&importRecursive, "recursive", "r", false, "treat each path as a directory and import every file under it")
	importCmd.Flags().StringSliceVar(&importInclude, "include", nil, "glob patterns a discovered file must match (recursive mode only)")
	importCmd.Flags().StringSliceVar(&importExclude, "exclude", nil, "glob patterns that exclude a discovered file (recursive mode only)")
	importCmd.Flags().BoolVar(&importDeleteOriginal, "delete-original", false, "remove the source file after a successful import")
	importCmd.Flags().IntVar(&importConcurrency, "concurrency", 4, "number of files to import in parallel")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	lib, err := openLibrary(ctx)
	if err != nil {
		return err
	}
	defer lib.Close()

	var paths []string
	for _, arg := range args {
		if !importRecursive {
			paths = append(paths, arg)
			continue
		}
		found, err := extract.Discover(arg, importInclude, importExclude)
		if err != nil {
			return fmt.Errorf("discover files under %s: %w", arg, err)
		}
		paths = append(paths, found...)
	}

	opts := importer.Options{DeleteOriginal: importDeleteOriginal}
	results := lib.Import.ImportBatch(ctx, paths, opts, importConcurrency)

	bar := progressbar.NewOptions(len(results),
		progressbar.OptionSetDescription("Importing"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionOnCompletion(func() { fmt.Println() }),
	)

	var imported, duplicates, failed int
	for _, r := range results {
		bar.Add(1)
		switch {
		case r.Err != nil:
			failed++
			fmt.Printf("\nfailed: %s: %v\n", r.Path, r.Err)
		case r.Result.AlreadyExisted:
			duplicates++
		default:
			imported++
		}
	}

	fmt.Printf("imported %d, duplicates %d, failed %d (of %d)\n", imported, duplicates, failed, len(results))
	if failed > 0 {
		return fmt.Errorf("%d file(s) failed to import", failed)
	}
	return nil
}
