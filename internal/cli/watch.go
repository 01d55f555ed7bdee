package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nerdneilsfield/tagbox-go/internal/importer"
	"github.com/nerdneilsfield/tagbox-go/internal/tagbox"
	"github.com/nerdneilsfield/tagbox-go/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir>...",
	Short: "Watch one or more drop folders and import files that appear in them",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

// libraryImporter adapts *tagbox.Library to watch.Importer.
type libraryImporter struct {
	lib *tagbox.Library
}

func (li libraryImporter) Import(ctx context.Context, path string) (string, error) {
	f, err := li.lib.ImportFile(ctx, path, importer.Options{})
	if err != nil {
		return "", err
	}
	return f.ID, nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	lib, err := openLibrary(ctx)
	if err != nil {
		return err
	}
	defer lib.Close()

	w, err := watch.New(args, libraryImporter{lib: lib})
	if err != nil {
		return err
	}
	w.Start(ctx)

	fmt.Printf("watching %d director(y/ies), press Ctrl-C to stop\n", len(args))
	<-ctx.Done()
	return w.Stop()
}
