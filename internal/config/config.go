package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for inspect.
type Config struct {
	InspectorID string            `toml:"inspector_id"`
	BaseDir     string            `toml:"base_dir"`
	LogDir      string            `toml:"log_dir"`
	Portal      PortalConfig      `toml:"portal"`
	Archive     ArchiveConfig     `toml:"archive"`
	Encryption  EncryptionConfig  `toml:"encryption"`
	Database    DatabaseConfig    `toml:"database"`
	Attachments AttachmentsConfig `toml:"attachments"`
	Metrics     MetricsConfig     `toml:"metrics"`
}

// PortalConfig describes how to reach the back-office API.
type PortalConfig struct {
	BaseURL        string `toml:"base_url"`
	Token          string `toml:"token,omitempty"` // overridden by INSPECT_PORTAL_TOKEN
	ReportPath     string `toml:"report_path,omitempty"`
	TaskPath       string `toml:"task_path,omitempty"`
	TimeoutSeconds int    `toml:"timeout_seconds,omitempty"`
}

// EncryptionConfig holds paths to the age key pair used for receipts.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age" (default), "test" or "none"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// ArchiveConfig represents configuration for the receipt archive.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type ArchiveConfig struct {
	Type string `toml:"type"` // "none", "memory", "filesystem" or "s3"
	Name string `toml:"name"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket   string `toml:"s3_bucket,omitempty"`
	S3Prefix   string `toml:"s3_prefix,omitempty"`
	S3Region   string `toml:"s3_region,omitempty"`
	S3Endpoint string `toml:"s3_endpoint,omitempty"` // for S3-compatible stores
	// Static credentials; the default AWS chain is used when empty.
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`

	// Filesystem-specific fields (only used when Type == "filesystem")
	FSRoot string `toml:"fs_root,omitempty"`
}

// DatabaseConfig represents configuration for the local history database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// AttachmentsConfig limits what may be attached to a report.
type AttachmentsConfig struct {
	MaxSize    int64    `toml:"max_size"`              // per file, in bytes
	Extensions []string `toml:"extensions,omitempty"` // allowed, e.g. ".jpg"
}

// MetricsConfig selects an optional metrics backend.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type MetricsConfig struct {
	Type string `toml:"type"` // "none", "prometheus" or "datadog"

	// Prometheus Pushgateway (Type == "prometheus")
	PushgatewayURL string `toml:"pushgateway_url,omitempty"`
	Job            string `toml:"job,omitempty"`

	// DogStatsD (Type == "datadog")
	StatsdAddr string   `toml:"statsd_addr,omitempty"`
	Namespace  string   `toml:"namespace,omitempty"`
	Tags       []string `toml:"tags,omitempty"`
}

// DefaultMaxAttachmentSize is 10MB.
const DefaultMaxAttachmentSize = 10 * 1024 * 1024

// NewConfig creates a new Config with the provided values and default paths.
func NewConfig(inspectorID, baseDir string) *Config {
	return &Config{
		InspectorID: inspectorID,
		BaseDir:     baseDir,
		LogDir:      filepath.Join(baseDir, "log"),
		Portal: PortalConfig{
			BaseURL:        "http://localhost:8000",
			TimeoutSeconds: 30,
		},
		Archive: ArchiveConfig{
			Type:   "filesystem",
			Name:   "local",
			FSRoot: filepath.Join(baseDir, "archive"),
		},
		Encryption: EncryptionConfig{
			Type:           "age",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "inspect.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "inspect.key"),
		},
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Attachments: AttachmentsConfig{
			MaxSize:    DefaultMaxAttachmentSize,
			Extensions: []string{".jpg", ".jpeg", ".png", ".heic", ".webp"},
		},
		Metrics: MetricsConfig{Type: "none"},
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

// ApplyEnv overrides secrets and endpoints from the environment. getenv is
// injected so tests do not touch the process environment.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("INSPECT_PORTAL_URL"); v != "" {
		c.Portal.BaseURL = v
	}
	if v := getenv("INSPECT_PORTAL_TOKEN"); v != "" {
		c.Portal.Token = v
	}
	if v := getenv("INSPECT_S3_ACCESS_KEY_ID"); v != "" {
		c.Archive.S3AccessKeyID = v
	}
	if v := getenv("INSPECT_S3_SECRET_ACCESS_KEY"); v != "" {
		c.Archive.S3SecretAccessKey = v
	}
}

// Validate checks the fields every command needs.
func (c *Config) Validate() error {
	if c.InspectorID == "" {
		return fmt.Errorf("inspector_id is not set")
	}
	if c.Portal.BaseURL == "" {
		return fmt.Errorf("portal.base_url is not set")
	}
	if c.Attachments.MaxSize < 0 {
		return fmt.Errorf("attachments.max_size must not be negative")
	}
	return nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
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
