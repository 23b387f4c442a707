package env

import (
	"os"
	"strings"
)

// LoadSystemEnv returns environment variables whose name starts with prefix,
// with the prefix removed. An empty prefix returns the whole environment.
func LoadSystemEnv(prefix string) map[string]string {
	result := make(map[string]string)
	for _, e := range os.Environ() {
		key, val, ok := strings.Cut(e, "=")
		if !ok {
			continue
		}
		if prefix == "" {
			result[key] = val
		} else if len(key) > len(prefix) && strings.HasPrefix(key, prefix) {
			result[key[len(prefix):]] = val
		}
	}
	return result
}

// MergeVariables combines sources left to right; later sources win.
func MergeVariables(sources ...map[string]string) map[string]string {
	result := make(map[string]string)
	for _, src := range sources {
		for k, v := range src {
			result[k] = v
		}
	}
	return result
}

// ParseAssignments parses key=value pairs as given to --var. The value is
// everything after the first '='.
func ParseAssignments(pairs []string) (map[string]string, []string) {
	result := make(map[string]string)
	var invalid []string
	for _, p := range pairs {
		key, val, ok := strings.Cut(p, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			invalid = append(invalid, p)
			continue
		}
		result[key] = val
	}
	return result, invalid
}
