package secrets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vyrodovalexey/avauthgate/internal/observability"
)

// LocalProvider reads secrets from files under a base directory, one
// value per file. The key may contain subdirectories ("db/password"
// reads base/db/password); a single trailing newline is trimmed so
// editor-written files behave.
type LocalProvider struct {
	basePath string
	logger   observability.Logger
}

// NewLocalProvider creates a file provider rooted at basePath. The
// directory must exist.
func NewLocalProvider(basePath string, logger observability.Logger) (*LocalProvider, error) {
	if basePath == "" {
		return nil, fmt.Errorf("%w: base path is required", ErrProviderNotConfigured)
	}

	info, err := os.Stat(basePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProviderNotConfigured, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrProviderNotConfigured, basePath)
	}

	if logger == nil {
		logger = observability.NopLogger()
	}

	return &LocalProvider{basePath: basePath, logger: logger}, nil
}

// Name implements Provider.
func (p *LocalProvider) Name() string {
	return ProviderLocal
}

// GetSecret implements Provider.
func (p *LocalProvider) GetSecret(ctx context.Context, key string) (value string, err error) {
	start := time.Now()
	defer func() { recordOperation(p.Name(), start, err) }()

	path, err := p.secretPath(key)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(path) //nolint:gosec // path is confined to basePath above
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrSecretNotFound, key)
		}
		return "", fmt.Errorf("reading secret file: %w", err)
	}

	return strings.TrimSuffix(string(data), "\n"), nil
}

// secretPath maps a key to a file path, refusing keys that would
// escape the base directory.
func (p *LocalProvider) secretPath(key string) (string, error) {
	if key == "" {
		return "", ErrInvalidKey
	}

	clean := filepath.Clean(key)
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q escapes the secrets directory", ErrInvalidKey, key)
	}

	return filepath.Join(p.basePath, clean), nil
}

// HealthCheck implements Provider.
func (p *LocalProvider) HealthCheck(ctx context.Context) error {
	_, err := os.Stat(p.basePath)
	return err
}

// Close implements Provider.
func (p *LocalProvider) Close() error {
	return nil
}
