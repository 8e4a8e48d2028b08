package testutil

import (
	"testing"

	"qvcs-go/internal/content"
	"qvcs-go/internal/encryption"
	"qvcs-go/internal/vault"
)

// NewTestArchive creates a content archive over an in-memory vault, using
// the marker encryptor so stored blobs differ from their plaintext.
func NewTestArchive(t *testing.T) *content.Archive {
	t.Helper()

	enc := encryption.NewMarkerEncryptor()
	dc, err := enc.Unlock("")
	if err != nil {
		t.Fatalf("failed to unlock test encryptor: %v", err)
	}
	return content.NewArchive(vault.NewMemoryVault("test-vault"), enc, dc)
}
