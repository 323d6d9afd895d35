package badger

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// VariableFile is one entry of a variables TOML file:
//
//	[imap_password]
//	value = "app-password"
//	description = "optional"
type VariableFile struct {
	Value       string `toml:"value"`
	Description string `toml:"description"`
}

// variableKey normalises IMAP_HOST and imap_host to the stored form
func variableKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// LoadVariablesFromFiles seeds the KV store from dir/variables.toml and any
// *.toml under dir/variables/. Missing files are not an error.
func (m *Manager) LoadVariablesFromFiles(ctx context.Context, dirPath string) error {
	if strings.TrimSpace(dirPath) == "" {
		return nil
	}

	files := []string{filepath.Join(dirPath, "variables.toml")}
	if matches, err := filepath.Glob(filepath.Join(dirPath, "variables", "*.toml")); err == nil {
		files = append(files, matches...)
	}

	loaded, skipped := 0, 0
	for _, path := range files {
		content, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				m.logger.Warn().Err(err).Str("file", path).Msg("Failed to read variable file")
			}
			continue
		}

		var variables map[string]VariableFile
		if err := toml.Unmarshal(content, &variables); err != nil {
			m.logger.Warn().Err(err).Str("file", path).Msg("Failed to parse variable file")
			continue
		}

		for key, variable := range variables {
			description := variable.Description
			if description == "" {
				description = "Loaded from " + filepath.Base(path)
			}
			if m.storeVariable(ctx, key, variable.Value, description) {
				loaded++
			} else {
				skipped++
			}
		}
	}

	m.logger.Debug().
		Str("dir", dirPath).
		Int("loaded", loaded).
		Int("skipped", skipped).
		Msg("Variables loaded from files")
	return nil
}

// LoadEnvFile seeds the KV store from a KEY=value file. Quotes around
// values are stripped; blank lines and # comments are ignored.
// It runs after LoadVariablesFromFiles so .env values win.
func (m *Manager) LoadEnvFile(ctx context.Context, filePath string) error {
	if strings.TrimSpace(filePath) == "" {
		return nil
	}

	file, err := os.Open(filePath)
	if err != nil {
		if !os.IsNotExist(err) {
			m.logger.Warn().Err(err).Str("file", filePath).Msg("Failed to open .env file")
		}
		return nil
	}
	defer file.Close()

	loaded, skipped := 0, 0
	scanner := bufio.NewScanner(file)
	for lineNum := 1; scanner.Scan(); lineNum++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			m.logger.Warn().Str("file", filePath).Int("line", lineNum).Msg("Invalid line, expected KEY=value")
			skipped++
			continue
		}

		value = strings.TrimSpace(value)
		if len(value) >= 2 && (value[0] == '"' || value[0] == '\'') && value[len(value)-1] == value[0] {
			value = value[1 : len(value)-1]
		}

		if m.storeVariable(ctx, key, value, "Loaded from .env file") {
			loaded++
		} else {
			skipped++
		}
	}
	if err := scanner.Err(); err != nil {
		m.logger.Warn().Err(err).Str("file", filePath).Msg("Error reading .env file")
	}

	m.logger.Debug().
		Str("file", filePath).
		Int("loaded", loaded).
		Int("skipped", skipped).
		Msg("Variables loaded from .env")
	return nil
}

func (m *Manager) storeVariable(ctx context.Context, key, value, description string) bool {
	key = variableKey(key)
	if key == "" || value == "" {
		m.logger.Warn().Str("key", key).Msg("Skipping variable with empty key or value")
		return false
	}

	isNew, err := m.kv.Upsert(ctx, key, value, description)
	if err != nil {
		m.logger.Error().Err(err).Str("key", key).Msg("Failed to store variable")
		return false
	}
	m.logger.Debug().Str("key", key).Bool("new", isNew).Msg("Variable stored")
	return true
}
