package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidConfig wraps every validation failure reported by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

var validate = validator.New()

// Validate checks that the configuration is structurally sound: required
// fields are present, enumerated options (journal_mode, sync_mode,
// hash.algorithm) hold one of their allowed values, and numeric tunables
// are within range. Struct-tag validation does the field-shape checking;
// the one rule checked explicitly below is that search.fts_language is not
// empty.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, formatValidationError(err))
	}

	if cfg.Search.FTSLanguage == "" {
		return fmt.Errorf("%w: search.fts_language must not be empty", ErrInvalidConfig)
	}

	return nil
}

func formatValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s validation", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(msgs, "; ")
}
