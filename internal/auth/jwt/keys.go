package jwt

import (
	"fmt"
	"os"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

// hmacKey wraps a shared secret as a jwk.Key.
func hmacKey(secret string) (jwk.Key, error) {
	if secret == "" {
		return nil, fmt.Errorf("hmac secret is empty")
	}
	key, err := jwk.FromRaw([]byte(secret))
	if err != nil {
		return nil, fmt.Errorf("failed to wrap hmac secret: %w", err)
	}
	return key, nil
}

// loadPEMKey reads a PEM-encoded key from path. Handles both public and
// private keys for RSA and ECDSA.
func loadPEMKey(path string) (jwk.Key, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file %s: %w", path, err)
	}
	key, err := jwk.ParseKey(data, jwk.WithPEM(true))
	if err != nil {
		return nil, fmt.Errorf("failed to parse PEM key %s: %w", path, err)
	}
	return key, nil
}
