package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nerdneilsfield/tagbox-go/internal/config"
	"github.com/nerdneilsfield/tagbox-go/internal/tagbox"
)

var rootDir string

var rootCmd = &cobra.Command{
	Use:   "tagbox",
	Short: "TagBox - a local-first document library",
	Long: `TagBox imports, tags, and searches a local document library backed by
a single SQLite database and a content-addressed storage directory.`,
}

// Execute adds all child commands to the root command and runs it. Called
// once by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", "", "library root directory (default is the current directory)")
}

// loadConfig reads tagbox.yaml/tagbox.toml from --root (or the working
// directory) layered with TAGBOX_* environment overrides.
func loadConfig() (*config.Config, error) {
	dir := rootDir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("get working directory: %w", err)
		}
		dir = wd
	}
	return config.NewLoader(dir).Load()
}

// openLibrary loads configuration and opens the library it points at.
func openLibrary(ctx context.Context) (*tagbox.Library, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return tagbox.Open(ctx, cfg)
}
