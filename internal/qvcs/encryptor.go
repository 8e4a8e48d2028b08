package qvcs

import "io"

// Encryptor encrypts revision content at rest. Encryption needs the public
// key only; decryption needs the identity unlocked with the passphrase once at
// server start, producing a DecryptionContext.
type Encryptor interface {
	// Setup performs one-time key generation (`qvcsd keys init`).
	Setup(passphrase string) error

	// Encrypt encrypts data read from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock decrypts the identity using the passphrase. Returns an error if
	// the passphrase is incorrect.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured returns true if both key files exist at configured paths.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked identity in memory for the lifetime of
// the server process.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}
