// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys and credentials from a directory of
// plain-text files. Each file is one secret: the filename is the key and
// the trimmed contents are the value.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/litscout/internal/httputil"
)

// DefaultDir is where the CLI looks for secrets.
const DefaultDir = ".secrets"

// Known key files.
const (
	SemanticScholarKey = "semantic-scholar-api-key"
	AnthropicKey       = "anthropic-api-key"
	GeminiKey          = "gemini-api-key"
	OpenAlexEmail      = "openalex-email"
)

// Secrets maps key names to values.
type Secrets map[string]string

// Get returns the value for key, or "" when it is not set.
func (s Secrets) Get(key string) string {
	return s[key]
}

// Require returns the value for key or an httputil.ErrConfig error
// naming the missing file.
func (s Secrets) Require(key string) (string, error) {
	if v := s[key]; v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%w: missing secret %s", httputil.ErrConfig, key)
}

// Load reads all files in dir. A missing directory is not an error and
// yields empty Secrets. Unreadable files are logged and skipped.
func Load(dir string, logger *zap.Logger) (Secrets, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Secrets{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(Secrets)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logger.Warn("could not read secret", zap.String("name", name), zap.Error(err))
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}
