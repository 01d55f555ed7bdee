// Package config loads and validates TagBox's on-disk configuration: the
// database engine tunables, import path templates and metadata policy,
// search defaults, and the hash algorithm.
package config

// Config is the complete TagBox configuration, loadable from a YAML or
// TOML file with environment variable overrides.
type Config struct {
	Database DatabaseConfig `yaml:"database" mapstructure:"database" validate:"required"`
	Import   ImportConfig   `yaml:"import" mapstructure:"import" validate:"required"`
	Search   SearchConfig   `yaml:"search" mapstructure:"search" validate:"required"`
	Hash     HashConfig     `yaml:"hash" mapstructure:"hash" validate:"required"`
}

// DatabaseConfig tunes the embedded SQLite engine.
type DatabaseConfig struct {
	Path           string `yaml:"path" mapstructure:"path" validate:"required"`
	JournalMode    string `yaml:"journal_mode" mapstructure:"journal_mode" validate:"required,oneof=WAL DELETE TRUNCATE PERSIST MEMORY OFF"`
	MaxConnections int    `yaml:"max_connections" mapstructure:"max_connections" validate:"min=1"`
	BusyTimeoutMs  int    `yaml:"busy_timeout" mapstructure:"busy_timeout" validate:"min=0"`
	SyncMode       string `yaml:"sync_mode" mapstructure:"sync_mode" validate:"required,oneof=OFF NORMAL FULL EXTRA"`
}

// ImportConfig groups path generation and metadata extraction policy.
type ImportConfig struct {
	Paths    ImportPathsConfig    `yaml:"paths" mapstructure:"paths"`
	Metadata ImportMetadataConfig `yaml:"metadata" mapstructure:"metadata"`
}

// ImportPathsConfig controls where imported files land on disk.
type ImportPathsConfig struct {
	StorageDir       string `yaml:"storage_dir" mapstructure:"storage_dir" validate:"required"`
	RenameTemplate   string `yaml:"rename_template" mapstructure:"rename_template" validate:"required"`
	ClassifyTemplate string `yaml:"classify_template" mapstructure:"classify_template" validate:"required"`
}

// ImportMetadataConfig controls extraction behavior.
type ImportMetadataConfig struct {
	PreferJSON      bool   `yaml:"prefer_json" mapstructure:"prefer_json"`
	FallbackPDF     bool   `yaml:"fallback_pdf" mapstructure:"fallback_pdf"`
	DefaultCategory string `yaml:"default_category" mapstructure:"default_category" validate:"required"`
}

// SearchConfig tunes default search behavior.
type SearchConfig struct {
	DefaultLimit       int    `yaml:"default_limit" mapstructure:"default_limit" validate:"min=1"`
	EnableFTS          bool   `yaml:"enable_fts" mapstructure:"enable_fts"`
	FTSLanguage        string `yaml:"fts_language" mapstructure:"fts_language"`
	FuzzySearchEnabled bool   `yaml:"fuzzy_search_enabled" mapstructure:"fuzzy_search_enabled"`
}

// HashConfig selects the content-addressing digest.
type HashConfig struct {
	Algorithm string `yaml:"algorithm" mapstructure:"algorithm" validate:"required,oneof=blake2b sha256"`
}

// Default returns a configuration with TagBox's baked-in defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:           "tagbox.db",
			JournalMode:    "WAL",
			MaxConnections: 5,
			BusyTimeoutMs:  5000,
			SyncMode:       "NORMAL",
		},
		Import: ImportConfig{
			Paths: ImportPathsConfig{
				StorageDir:       "library",
				RenameTemplate:   "{title}_{authors}_{year}",
				ClassifyTemplate: "{category1}/{filename}",
			},
			Metadata: ImportMetadataConfig{
				PreferJSON:      true,
				FallbackPDF:     true,
				DefaultCategory: "uncategorized",
			},
		},
		Search: SearchConfig{
			DefaultLimit:       20,
			EnableFTS:          true,
			FTSLanguage:        "unicode61",
			FuzzySearchEnabled: true,
		},
		Hash: HashConfig{
			Algorithm: "blake2b",
		},
	}
}
