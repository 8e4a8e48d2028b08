// Package content stores revision bodies in a vault. Bodies are addressed by
// the BLAKE3 hash of their plaintext, compressed with zstd and then passed
// through the configured encryptor before they reach the vault.
package content

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"lukechampine.com/blake3"

	"qvcs-go/internal/qvcs"
)

// Archive implements qvcs.ContentArchive on top of a qvcs.Vault.
type Archive struct {
	vault     qvcs.Vault
	encryptor qvcs.Encryptor
	decryptor qvcs.DecryptionContext
}

var _ qvcs.ContentArchive = (*Archive)(nil)

// NewArchive creates an Archive. decryptor may be nil, in which case Get
// fails until the server is started with an unlocked key.
func NewArchive(vault qvcs.Vault, encryptor qvcs.Encryptor, decryptor qvcs.DecryptionContext) *Archive {
	return &Archive{vault: vault, encryptor: encryptor, decryptor: decryptor}
}

// ContentID returns the content id of data.
func ContentID(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Put reads the whole body from r and stores it unless the vault already
// holds the same content id.
func (a *Archive) Put(ctx context.Context, r io.Reader) (string, int64, error) {
	hasher := blake3.New(32, nil)
	var plain bytes.Buffer
	size, err := io.Copy(io.MultiWriter(&plain, hasher), r)
	if err != nil {
		return "", 0, fmt.Errorf("reading content: %w", err)
	}
	id := hex.EncodeToString(hasher.Sum(nil))

	exists, err := a.vault.HasContent(ctx, id)
	if err != nil {
		return "", 0, fmt.Errorf("checking content %s: %w", id, err)
	}
	if exists {
		return id, size, nil
	}

	var compressed bytes.Buffer
	encoder, err := zstd.NewWriter(&compressed)
	if err != nil {
		return "", 0, fmt.Errorf("creating zstd encoder: %w", err)
	}
	if _, err := encoder.Write(plain.Bytes()); err != nil {
		encoder.Close()
		return "", 0, fmt.Errorf("compressing: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return "", 0, fmt.Errorf("closing encoder: %w", err)
	}

	var sealed bytes.Buffer
	if err := a.encryptor.Encrypt(&compressed, &sealed); err != nil {
		return "", 0, fmt.Errorf("encrypting content: %w", err)
	}

	if err := a.vault.PutContent(ctx, id, &sealed, int64(sealed.Len())); err != nil {
		return "", 0, fmt.Errorf("storing content %s: %w", id, err)
	}
	return id, size, nil
}

// Get writes the plaintext for contentID to w, verifying its hash first.
func (a *Archive) Get(ctx context.Context, contentID string, w io.Writer) error {
	if a.decryptor == nil {
		return fmt.Errorf("content archive is locked")
	}

	var sealed bytes.Buffer
	if err := a.vault.GetContent(ctx, contentID, &sealed); err != nil {
		return err
	}

	var compressed bytes.Buffer
	if err := a.decryptor.Decrypt(&sealed, &compressed); err != nil {
		return fmt.Errorf("decrypting content %s: %w", contentID, err)
	}

	decoder, err := zstd.NewReader(&compressed)
	if err != nil {
		return fmt.Errorf("creating zstd decoder: %w", err)
	}
	defer decoder.Close()

	plain, err := io.ReadAll(decoder)
	if err != nil {
		return fmt.Errorf("decompressing content %s: %w", contentID, err)
	}

	if got := ContentID(plain); got != contentID {
		return fmt.Errorf("content %s is corrupt (hash %s): %w", contentID, got, qvcs.ErrStorageFailure)
	}

	if _, err := w.Write(plain); err != nil {
		return fmt.Errorf("writing content: %w", err)
	}
	return nil
}
