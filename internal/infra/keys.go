package infra

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const keySize = 32

// LoadOrCreateKey returns the store encryption key from path, creating
// a fresh random key on first use. The key file is hex-encoded, 0600.
func LoadOrCreateKey(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		key, derr := hex.DecodeString(strings.TrimSpace(string(data)))
		if derr != nil {
			return nil, fmt.Errorf("key file %q is not hex: %w", path, derr)
		}
		if len(key) != keySize {
			return nil, fmt.Errorf("key file %q has %d bytes, want %d", path, len(key), keySize)
		}
		return key, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, []byte(hex.EncodeToString(key)+"\n"), 0600); err != nil {
		return nil, err
	}
	return key, nil
}
