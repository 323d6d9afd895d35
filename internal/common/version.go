package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Set with -ldflags "-X github.com/ternarybob/specula/internal/common.Version=..."
var (
	Version   = "dev"
	Build     = "unknown"
	GitCommit = "unknown"
)

// GetFullVersion formats the version as "1.2.0 (build: 2026-10-01, commit: abc123)"
func GetFullVersion() string {
	return fmt.Sprintf("%s (build: %s, commit: %s)", Version, Build, GitCommit)
}

// LoadVersionFromFile overrides Version with the first non-empty .version
// file found next to the executable or in the working directory.
func LoadVersionFromFile() string {
	var candidates []string
	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), ".version"))
	}
	candidates = append(candidates, ".version")

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if v := strings.TrimSpace(string(data)); v != "" {
			Version = v
			break
		}
	}
	return Version
}
