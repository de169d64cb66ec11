package encryption

import (
	"fmt"

	"gallery-go/internal/config"
)

// NewSealerFromConfig returns the Sealer selected by the configuration, or nil
// if the index is stored in plaintext. passphrase is only called for age.
func NewSealerFromConfig(cfg config.EncryptionConfig, passphrase func() (string, error)) (Sealer, error) {
	switch cfg.Type {
	case "none", "":
		return nil, nil
	case "age":
		k := NewAgeKeyring(cfg)
		if !k.IsConfigured() {
			return nil, fmt.Errorf("age keys not found, run 'gallery keys init' first")
		}
		p, err := passphrase()
		if err != nil {
			return nil, fmt.Errorf("reading passphrase: %w", err)
		}
		s, err := k.Unlock(p)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "test":
		return TestSealer{}, nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
