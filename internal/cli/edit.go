package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/nerdneilsfield/tagbox-go/internal/editor"
)

var (
	editTitle     string
	editYear      int
	editPublisher string
	editSource    string
	editCategory1 string
	editCategory2 string
	editCategory3 string
	editSummary   string
	editAuthors   []string
	editTags      []string
	editMove      bool
)

var editCmd = &cobra.Command{
	Use:   "edit <file-id>",
	Short: "Update a file's metadata, optionally relocating it on disk",
	Args:  cobra.ExactArgs(1),
	RunE:  runEdit,
}

func init() {
	f := editCmd.Flags()
	f.StringVar(&editTitle, "title", "", "new title")
	f.IntVar(&editYear, "year", 0, "new publication year")
	f.StringVar(&editPublisher, "publisher", "", "new publisher")
	f.StringVar(&editSource, "source", "", "new source")
	f.StringVar(&editCategory1, "category1", "", "new primary category")
	f.StringVar(&editCategory2, "category2", "", "new secondary category")
	f.StringVar(&editCategory3, "category3", "", "new tertiary category")
	f.StringVar(&editSummary, "summary", "", "new summary")
	f.StringSliceVar(&editAuthors, "authors", nil, "replacement author names (comma-separated)")
	f.StringSliceVar(&editTags, "tags", nil, "replacement tag names (comma-separated)")
	f.BoolVar(&editMove, "move", false, "physically relocate the file if its category change produces a new path")
	rootCmd.AddCommand(editCmd)
}

func runEdit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	lib, err := openLibrary(ctx)
	if err != nil {
		return err
	}
	defer lib.Close()

	patch := editor.Patch{}
	flagSetString(cmd.Flags(), "title", &patch.Title, editTitle)
	flagSetString(cmd.Flags(), "publisher", &patch.Publisher, editPublisher)
	flagSetString(cmd.Flags(), "source", &patch.Source, editSource)
	flagSetString(cmd.Flags(), "category1", &patch.Category1, editCategory1)
	flagSetString(cmd.Flags(), "category2", &patch.Category2, editCategory2)
	flagSetString(cmd.Flags(), "category3", &patch.Category3, editCategory3)
	flagSetString(cmd.Flags(), "summary", &patch.Summary, editSummary)
	if cmd.Flags().Changed("year") {
		patch.Year = &editYear
	}
	if cmd.Flags().Changed("authors") {
		patch.Authors = &editAuthors
	}
	if cmd.Flags().Changed("tags") {
		patch.Tags = &editTags
	}

	f, err := lib.UpdateFile(ctx, args[0], patch, editor.MoveOptions{Move: editMove})
	if err != nil {
		return err
	}

	fmt.Printf("updated %s: %q [%s] year=%s authors=%s tags=%s\n",
		f.ID, f.Title, f.Category1, yearString(f.Year), strings.Join(f.Authors, ","), strings.Join(f.Tags, ","))
	return nil
}

// flagSetString assigns patch field dst only when the flag was explicitly
// set on the command line, so an unset flag leaves the patch field nil.
func flagSetString(flags *pflag.FlagSet, name string, dst **string, value string) {
	if flags.Changed(name) {
		*dst = &value
	}
}

func yearString(y *int) string {
	if y == nil {
		return ""
	}
	return strconv.Itoa(*y)
}
