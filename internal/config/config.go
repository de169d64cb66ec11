package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// DefaultIndexKey names the slot holding the index document.
const DefaultIndexKey = "gallery"

// Config represents the main configuration for gallery.
type Config struct {
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	LogLevel   string           `toml:"log_level"` // "debug", "info" (default), "warn" or "error"
	Vault      VaultConfig      `toml:"vault"`
	Index      IndexConfig      `toml:"index"`
	Encryption EncryptionConfig `toml:"encryption"`
	Metrics    MetricsConfig    `toml:"metrics"`
}

// VaultConfig represents configuration for the blob sink holding photos.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type VaultConfig struct {
	Type      string `toml:"type"` // "filesystem", "memory", "s3" or "minio"
	Name      string `toml:"name"`
	Extension string `toml:"extension,omitempty"` // appended to photo ids, defaults to ".jpg"

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSRoot string `toml:"fs_root,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket    string `toml:"s3_bucket,omitempty"`
	S3Prefix    string `toml:"s3_prefix,omitempty"`
	S3Region    string `toml:"s3_region,omitempty"`
	S3Endpoint  string `toml:"s3_endpoint,omitempty"`   // for S3-compatible services
	S3AccessKey string `toml:"s3_access_key,omitempty"` // default credential chain if empty
	S3SecretKey string `toml:"s3_secret_key,omitempty"`

	// MinIO-specific fields (only used when Type == "minio")
	MinioEndpoint  string `toml:"minio_endpoint,omitempty"`
	MinioBucket    string `toml:"minio_bucket,omitempty"`
	MinioPrefix    string `toml:"minio_prefix,omitempty"`
	MinioAccessKey string `toml:"minio_access_key,omitempty"`
	MinioSecretKey string `toml:"minio_secret_key,omitempty"`
	MinioUseSSL    bool   `toml:"minio_use_ssl,omitempty"`
}

// IndexConfig represents configuration for the slot holding the index document.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type IndexConfig struct {
	Type    string `toml:"type"` // "file", "sqlite" or "memory"
	Key     string `toml:"key"`
	Path    string `toml:"path,omitempty"`     // only used for type=file
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// EncryptionConfig selects how the index document is sealed at rest.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "none" (default), "age" or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// MetricsConfig controls the Prometheus textfile written after each command.
type MetricsConfig struct {
	TextfilePath string `toml:"textfile_path,omitempty"`
}

// NewConfig creates a new Config rooted at baseDir with a filesystem vault and
// a file index.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir:  baseDir,
		LogDir:   filepath.Join(baseDir, "log"),
		LogLevel: "info",
		Vault: VaultConfig{
			Type:      "filesystem",
			Name:      "local",
			Extension: ".jpg",
			FSRoot:    filepath.Join(baseDir, "vault"),
		},
		Index: IndexConfig{
			Type: "file",
			Key:  DefaultIndexKey,
			Path: filepath.Join(baseDir, "index.json"),
		},
		Encryption: EncryptionConfig{
			Type:           "none",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "gallery.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "gallery.key"),
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.Index.Key == "" {
		cfg.Index.Key = DefaultIndexKey
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
