package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader provides configuration loading capabilities.
type Loader interface {
	// Load loads configuration from file and environment variables.
	// Priority: defaults → config file → environment variables (env wins).
	Load() (*Config, error)
}

type loader struct {
	rootDir string
}

// NewLoader creates a new configuration loader rooted at rootDir, which is
// searched for a `tagbox.yaml`/`tagbox.yml`/`tagbox.toml` file.
func NewLoader(rootDir string) Loader {
	return &loader{rootDir: rootDir}
}

// Load loads configuration with the following priority (highest to lowest):
//  1. Environment variables (TAGBOX_*)
//  2. Config file (tagbox.yaml or tagbox.toml in rootDir)
//  3. Default values
func (l *loader) Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("tagbox")
	v.AddConfigPath(l.rootDir)

	v.SetEnvPrefix("TAGBOX")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	v.BindEnv("database.path")
	v.BindEnv("database.journal_mode")
	v.BindEnv("database.max_connections")
	v.BindEnv("database.busy_timeout")
	v.BindEnv("database.sync_mode")

	v.BindEnv("import.paths.storage_dir")
	v.BindEnv("import.paths.rename_template")
	v.BindEnv("import.paths.classify_template")
	v.BindEnv("import.metadata.prefer_json")
	v.BindEnv("import.metadata.fallback_pdf")
	v.BindEnv("import.metadata.default_category")

	v.BindEnv("search.default_limit")
	v.BindEnv("search.enable_fts")
	v.BindEnv("search.fts_language")
	v.BindEnv("search.fuzzy_search_enabled")

	v.BindEnv("hash.algorithm")
}

// setDefaults configures viper with TagBox's default values.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("database.journal_mode", d.Database.JournalMode)
	v.SetDefault("database.max_connections", d.Database.MaxConnections)
	v.SetDefault("database.busy_timeout", d.Database.BusyTimeoutMs)
	v.SetDefault("database.sync_mode", d.Database.SyncMode)

	v.SetDefault("import.paths.storage_dir", d.Import.Paths.StorageDir)
	v.SetDefault("import.paths.rename_template", d.Import.Paths.RenameTemplate)
	v.SetDefault("import.paths.classify_template", d.Import.Paths.ClassifyTemplate)
	v.SetDefault("import.metadata.prefer_json", d.Import.Metadata.PreferJSON)
	v.SetDefault("import.metadata.fallback_pdf", d.Import.Metadata.FallbackPDF)
	v.SetDefault("import.metadata.default_category", d.Import.Metadata.DefaultCategory)

	v.SetDefault("search.default_limit", d.Search.DefaultLimit)
	v.SetDefault("search.enable_fts", d.Search.EnableFTS)
	v.SetDefault("search.fts_language", d.Search.FTSLanguage)
	v.SetDefault("search.fuzzy_search_enabled", d.Search.FuzzySearchEnabled)

	v.SetDefault("hash.algorithm", d.Hash.Algorithm)
}

// LoadConfig loads configuration rooted at the current working directory.
func LoadConfig() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}
	return NewLoader(wd).Load()
}

// LoadConfigFromDir loads configuration from a specific directory.
func LoadConfigFromDir(rootDir string) (*Config, error) {
	return NewLoader(filepath.Clean(rootDir)).Load()
}
