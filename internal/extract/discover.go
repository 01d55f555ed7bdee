package extract

import (
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/gobwas/glob"
)

// Discover walks root recursively and returns every regular file path that
// matches at least one include pattern (or every file, if include is empty)
// and no exclude pattern. Patterns are shell-style globs evaluated against
// the path relative to root, e.g. "*.pdf" or "drafts/**".
func Discover(root string, include, exclude []string) ([]string, error) {
	includeGlobs, err := compileGlobs(include)
	if err != nil {
		return nil, fmt.Errorf("compile include patterns: %w", err)
	}
	excludeGlobs, err := compileGlobs(exclude)
	if err != nil {
		return nil, fmt.Errorf("compile exclude patterns: %w", err)
	}

	var matches []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		if matchesAny(excludeGlobs, rel) {
			return nil
		}
		if len(includeGlobs) > 0 && !matchesAny(includeGlobs, rel) {
			return nil
		}
		matches = append(matches, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return matches, nil
}

func compileGlobs(patterns []string) ([]glob.Glob, error) {
	compiled := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
		}
		compiled = append(compiled, g)
	}
	return compiled, nil
}

func matchesAny(globs []glob.Glob, path string) bool {
	for _, g := range globs {
		if g.Match(path) {
			return true
		}
	}
	return false
}
