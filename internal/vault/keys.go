package vault

import (
	"fmt"
	"io"
	"strings"
)

// validateKey rejects keys that could escape the vault's namespace.
func validateKey(key string) error {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return fmt.Errorf("invalid vault key %q", key)
	}
	return nil
}

// fanout returns the two-character shard a content key is filed under.
func fanout(key string) string {
	if len(key) < 2 {
		return "_"
	}
	return key[:2]
}

func readExactly(r io.Reader, size int64) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read content: %w", err)
	}
	if int64(len(data)) != size {
		return nil, fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}
	return data, nil
}
