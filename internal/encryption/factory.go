package encryption

import (
	"fmt"

	"qvcs-go/internal/config"
	"qvcs-go/internal/qvcs"
)

// NewEncryptorFromConfig creates an Encryptor based on the configuration type.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (qvcs.Encryptor, error) {
	switch cfg.Type {
	case "none", "":
		return PlainEncryptor{}, nil
	case "age":
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewMarkerEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
