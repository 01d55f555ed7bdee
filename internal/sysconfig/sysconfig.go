// Package sysconfig tracks the small set of facts that must stay stable for
// the lifetime of a library (hash algorithm, storage directory, schema
// version) and flags when an on-disk database disagrees with the config
// file currently pointed at it.
package sysconfig

import (
	"context"
	"fmt"
	"time"

	"github.com/nerdneilsfield/tagbox-go/internal/config"
	"github.com/nerdneilsfield/tagbox-go/internal/storage"
)

const currentDatabaseVersion = storage.SchemaVersion

// Manager owns system_config CRUD and the compatibility check run at
// library open.
type Manager struct {
	db *storage.DB
}

// New builds a Manager over an opened library database.
func New(db *storage.DB) *Manager {
	return &Manager{db: db}
}

// Set upserts one key/value pair.
func (m *Manager) Set(ctx context.Context, key, value string) error {
	return storage.SetSystemConfig(ctx, m.db.Writer, key, value, time.Now().UTC().Format(time.RFC3339))
}

// Get returns the value for key, or storage.ErrNotFound if unset.
func (m *Manager) Get(ctx context.Context, key string) (string, error) {
	return storage.GetSystemConfig(ctx, m.db.Reader, key)
}

// GetAll returns every stored key/value pair.
func (m *Manager) GetAll(ctx context.Context) (map[string]string, error) {
	return storage.GetAllSystemConfig(ctx, m.db.Reader)
}

// Delete removes a key.
func (m *Manager) Delete(ctx context.Context, key string) error {
	return storage.DeleteSystemConfig(ctx, m.db.Writer, key)
}

// CompatibilityResult reports whether an open library's stored
// configuration agrees with the configuration currently pointed at it.
type CompatibilityResult struct {
	IsCompatible bool
	Warnings     []string
	Errors       []string
}

// CheckCompatibility compares cfg against the library's stored
// hash_algorithm, data_directory, and database_version keys. A hash
// algorithm or schema version mismatch is a warning (files hashed under the
// old algorithm remain valid; the schema upgrade path handles the rest); a
// data directory mismatch is an error, since every stored relative_path
// would resolve to the wrong files. Any key missing from system_config is
// seeded from cfg rather than flagged, since a brand-new library has
// nothing to disagree with yet.
func (m *Manager) CheckCompatibility(ctx context.Context, cfg *config.Config) (*CompatibilityResult, error) {
	stored, err := m.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	result := &CompatibilityResult{}

	if storedAlgo, ok := stored["hash_algorithm"]; ok {
		if storedAlgo != cfg.Hash.Algorithm {
			result.Warnings = append(result.Warnings, fmt.Sprintf(
				"hash algorithm mismatch: database uses %q, config uses %q", storedAlgo, cfg.Hash.Algorithm))
		}
	} else if err := m.Set(ctx, "hash_algorithm", cfg.Hash.Algorithm); err != nil {
		return nil, err
	}

	if storedDir, ok := stored["data_directory"]; ok {
		if storedDir != cfg.Import.Paths.StorageDir {
			result.Errors = append(result.Errors, fmt.Sprintf(
				"data directory mismatch: database uses %q, config uses %q", storedDir, cfg.Import.Paths.StorageDir))
		}
	} else if err := m.Set(ctx, "data_directory", cfg.Import.Paths.StorageDir); err != nil {
		return nil, err
	}

	if storedVersion, ok := stored["database_version"]; ok {
		if storedVersion != currentDatabaseVersion {
			result.Warnings = append(result.Warnings, fmt.Sprintf(
				"database version mismatch: stored %q, current %q", storedVersion, currentDatabaseVersion))
		}
	} else if err := m.Set(ctx, "database_version", currentDatabaseVersion); err != nil {
		return nil, err
	}

	result.IsCompatible = len(result.Errors) == 0
	return result, nil
}
