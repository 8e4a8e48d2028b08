package encryption

import (
	"bytes"
	"fmt"
	"io"

	"qvcs-go/internal/qvcs"
)

// PlainEncryptor stores content unencrypted. It is selected by type "none".
type PlainEncryptor struct{}

var _ qvcs.Encryptor = PlainEncryptor{}

func (PlainEncryptor) Setup(string) error { return nil }

func (PlainEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	_, err := io.Copy(w, r)
	return err
}

func (PlainEncryptor) Unlock(string) (qvcs.DecryptionContext, error) {
	return plainDecryptor{}, nil
}

func (PlainEncryptor) IsConfigured() bool { return true }

type plainDecryptor struct{}

func (plainDecryptor) Decrypt(r io.Reader, w io.Writer) error {
	_, err := io.Copy(w, r)
	return err
}

// markerHeader is prepended by MarkerEncryptor so stored blobs visibly differ
// from plaintext.
var markerHeader = []byte("QVENC\x00\x00\x01")

// MarkerEncryptor is a deterministic stand-in for age, selected by type
// "test". It frames content with a fixed header and needs no keys.
type MarkerEncryptor struct {
	setupCalled bool
}

var _ qvcs.Encryptor = (*MarkerEncryptor)(nil)

// NewMarkerEncryptor creates a new MarkerEncryptor.
func NewMarkerEncryptor() *MarkerEncryptor {
	return &MarkerEncryptor{}
}

func (e *MarkerEncryptor) Setup(string) error {
	e.setupCalled = true
	return nil
}

func (e *MarkerEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := w.Write(markerHeader); err != nil {
		return fmt.Errorf("writing marker header: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

func (e *MarkerEncryptor) Unlock(string) (qvcs.DecryptionContext, error) {
	return markerDecryptor{}, nil
}

func (e *MarkerEncryptor) IsConfigured() bool { return true }

type markerDecryptor struct{}

func (markerDecryptor) Decrypt(r io.Reader, w io.Writer) error {
	header := make([]byte, len(markerHeader))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("reading marker header: %w", err)
	}
	if !bytes.Equal(header, markerHeader) {
		return fmt.Errorf("invalid marker header")
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}
