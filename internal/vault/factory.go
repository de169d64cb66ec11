package vault

import (
	"context"
	"fmt"

	"gallery-go/internal/config"
	"gallery-go/internal/gallery"
)

// NewVaultFromConfig creates a Vault implementation based on the vault config type.
func NewVaultFromConfig(ctx context.Context, cfg config.VaultConfig) (gallery.Vault, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryVault(cfg.Name), nil
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("s3 vault requires s3_bucket to be set")
		}
		v, err := NewS3VaultFromConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return v, nil
	case "minio":
		if cfg.MinioBucket == "" {
			return nil, fmt.Errorf("minio vault requires minio_bucket to be set")
		}
		v, err := NewMinioVaultFromConfig(cfg)
		if err != nil {
			return nil, err
		}
		return v, nil
	case "filesystem", "":
		if cfg.FSRoot == "" {
			return nil, fmt.Errorf("filesystem vault requires fs_root to be set")
		}
		v, err := NewFileSystemVault(cfg.Name, cfg.FSRoot)
		if err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unknown vault type: %s", cfg.Type)
	}
}
