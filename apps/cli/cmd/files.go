package cmd

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// collectFiles resolves the documents to load from positional args, --file
// values (repeatable, comma separated) and the --pattern glob. Directories
// are walked for .http files, while files named explicitly are kept
// whatever their extension.
func collectFiles(args, fileFlags []string, pattern string) ([]string, error) {
	var named []string
	named = append(named, args...)
	for _, f := range fileFlags {
		named = append(named, splitList(f)...)
	}

	if pattern != "" {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("pattern %q matched no files", pattern)
		}
		named = append(named, matches...)
	}
	if len(named) == 0 {
		return nil, fmt.Errorf("no files given: pass a file, --file or --pattern")
	}

	var files []string
	seen := make(map[string]bool)
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, arg := range named {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}
		if !info.IsDir() {
			add(arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && isHTTPFile(path) {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	return files, nil
}

func isHTTPFile(path string) bool {
	return filepath.Ext(path) == ".http"
}

// splitList splits a comma separated flag value, dropping empty entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
