package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nerdneilsfield/tagbox-go/internal/search"
)

var (
	searchLimit   int
	searchOffset  int
	searchSort    string
	searchDesc    bool
	searchDeleted bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the library with TagBox's query DSL (tag:, author:, year:, category:, title:)",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().IntVar(&searchLimit, "limit", 20, "maximum number of results")
	searchCmd.Flags().IntVar(&searchOffset, "offset", 0, "result offset for pagination")
	searchCmd.Flags().StringVar(&searchSort, "sort", "relevance", "sort field: relevance, updated_at, created_at, title, year")
	searchCmd.Flags().BoolVar(&searchDesc, "desc", true, "sort descending")
	searchCmd.Flags().BoolVar(&searchDeleted, "include-deleted", false, "include soft-deleted files")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	lib, err := openLibrary(ctx)
	if err != nil {
		return err
	}
	defer lib.Close()

	result, err := lib.SearchFiles(ctx, args[0], search.Options{
		Limit:          searchLimit,
		Offset:         searchOffset,
		SortBy:         searchSort,
		SortDescending: searchDesc,
		IncludeDeleted: searchDeleted,
	})
	if err != nil {
		return err
	}

	fmt.Printf("%d of %d result(s)\n", len(result.Entries), result.TotalCount)
	for _, f := range result.Entries {
		fmt.Printf("%s  %-40s  %s  [%s]\n", f.ID, truncate(f.Title, 40), f.Category1, strings.Join(f.Tags, ","))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
