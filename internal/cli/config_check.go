package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerdneilsfield/tagbox-go/internal/storage"
	"github.com/nerdneilsfield/tagbox-go/internal/sysconfig"
)

var configCheckCmd = &cobra.Command{
	Use:   "config-check",
	Short: "Report whether the current config agrees with the library's stored system config",
	Args:  cobra.NoArgs,
	RunE:  runConfigCheck,
}

func init() {
	rootCmd.AddCommand(configCheckCmd)
}

func runConfigCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := storage.Open(cfg.Database.Path, storage.Options{
		JournalMode:    cfg.Database.JournalMode,
		MaxConnections: cfg.Database.MaxConnections,
		BusyTimeoutMs:  cfg.Database.BusyTimeoutMs,
		SyncMode:       cfg.Database.SyncMode,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	result, err := sysconfig.New(db).CheckCompatibility(ctx, cfg)
	if err != nil {
		return err
	}

	for _, w := range result.Warnings {
		fmt.Println("warning:", w)
	}
	for _, e := range result.Errors {
		fmt.Println("error:", e)
	}
	if len(result.Warnings) == 0 && len(result.Errors) == 0 {
		fmt.Println("config is compatible with the library")
	}
	if len(result.Errors) > 0 {
		return fmt.Errorf("%d incompatibility error(s)", len(result.Errors))
	}
	return nil
}
