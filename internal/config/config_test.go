package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := &Config{
		InspectorID: "inspector-abc",
		BaseDir:     "/home/user/.local/share/inspect",
		LogDir:      "/home/user/.local/share/inspect/log",
		Portal: PortalConfig{
			BaseURL:        "https://portal.example.com",
			ReportPath:     "/api/inspector/inspection-report",
			TimeoutSeconds: 15,
		},
		Archive: ArchiveConfig{Type: "s3", Name: "receipts", S3Bucket: "bucket", S3Prefix: "inspect/", S3Region: "us-east-1"},
		Encryption: EncryptionConfig{
			Type:           "age",
			PublicKeyPath:  "/keys/inspect.pub",
			PrivateKeyPath: "/keys/inspect.key",
		},
		Database:    DatabaseConfig{Type: "sqlite", DataDir: "/home/user/.local/share/inspect/db"},
		Attachments: AttachmentsConfig{MaxSize: 2048, Extensions: []string{".jpg", ".png"}},
		Metrics:     MetricsConfig{Type: "datadog", StatsdAddr: "127.0.0.1:8125", Tags: []string{"env:test"}},
	}

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.InspectorID != original.InspectorID {
		t.Errorf("InspectorID = %q, want %q", got.InspectorID, original.InspectorID)
	}
	if got.Portal.BaseURL != original.Portal.BaseURL {
		t.Errorf("Portal.BaseURL = %q, want %q", got.Portal.BaseURL, original.Portal.BaseURL)
	}
	if got.Portal.TimeoutSeconds != 15 {
		t.Errorf("Portal.TimeoutSeconds = %d, want 15", got.Portal.TimeoutSeconds)
	}
	if got.Archive.Type != "s3" || got.Archive.S3Bucket != "bucket" {
		t.Errorf("Archive = %+v, want s3 bucket", got.Archive)
	}
	if got.Encryption.PrivateKeyPath != original.Encryption.PrivateKeyPath {
		t.Errorf("Encryption.PrivateKeyPath = %q, want %q", got.Encryption.PrivateKeyPath, original.Encryption.PrivateKeyPath)
	}
	if got.Database.Type != "sqlite" {
		t.Errorf("Database.Type = %q, want %q", got.Database.Type, "sqlite")
	}
	if got.Attachments.MaxSize != 2048 {
		t.Errorf("Attachments.MaxSize = %d, want 2048", got.Attachments.MaxSize)
	}
	if len(got.Attachments.Extensions) != 2 {
		t.Fatalf("len(Attachments.Extensions) = %d, want 2", len(got.Attachments.Extensions))
	}
	if got.Metrics.Type != "datadog" || got.Metrics.StatsdAddr != "127.0.0.1:8125" {
		t.Errorf("Metrics = %+v, want datadog at 127.0.0.1:8125", got.Metrics)
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("inspector-1", "/data/inspect")

	if cfg.InspectorID != "inspector-1" {
		t.Errorf("InspectorID = %q, want %q", cfg.InspectorID, "inspector-1")
	}
	if cfg.LogDir != "/data/inspect/log" {
		t.Errorf("LogDir = %q, want %q", cfg.LogDir, "/data/inspect/log")
	}
	if cfg.Archive.FSRoot != "/data/inspect/archive" {
		t.Errorf("Archive.FSRoot = %q, want %q", cfg.Archive.FSRoot, "/data/inspect/archive")
	}
	if cfg.Encryption.PublicKeyPath != "/data/inspect/keys/inspect.pub" {
		t.Errorf("Encryption.PublicKeyPath = %q", cfg.Encryption.PublicKeyPath)
	}
	if cfg.Database.DataDir != "/data/inspect/db" {
		t.Errorf("Database.DataDir = %q", cfg.Database.DataDir)
	}
	if cfg.Attachments.MaxSize != DefaultMaxAttachmentSize {
		t.Errorf("Attachments.MaxSize = %d, want %d", cfg.Attachments.MaxSize, DefaultMaxAttachmentSize)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestConfig_ApplyEnv(t *testing.T) {
	env := map[string]string{
		"INSPECT_PORTAL_URL":   "https://staging.example.com",
		"INSPECT_PORTAL_TOKEN": "secret-token",
	}
	cfg := NewConfig("i", "/data")
	cfg.Portal.Token = "from-file"

	cfg.ApplyEnv(func(k string) string { return env[k] })

	if cfg.Portal.BaseURL != "https://staging.example.com" {
		t.Errorf("Portal.BaseURL = %q", cfg.Portal.BaseURL)
	}
	if cfg.Portal.Token != "secret-token" {
		t.Errorf("Portal.Token = %q, want env value", cfg.Portal.Token)
	}
	if cfg.Archive.S3AccessKeyID != "" {
		t.Errorf("S3AccessKeyID = %q, want empty", cfg.Archive.S3AccessKeyID)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing inspector id", mutate: func(c *Config) { c.InspectorID = "" }, wantErr: true},
		{name: "missing base url", mutate: func(c *Config) { c.Portal.BaseURL = "" }, wantErr: true},
		{name: "negative max size", mutate: func(c *Config) { c.Attachments.MaxSize = -1 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig("i", "/data")
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "inspect.toml")
		cfg := NewConfig("h1", dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("config file not created: %v", err)
		}
		if info.Mode().Perm() != 0600 {
			t.Errorf("config file mode = %v, want 0600", info.Mode().Perm())
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "inspect.toml")
		cfg := NewConfig("h1", dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}

		if err := Init(path, cfg); err == nil {
			t.Fatal("second Init() expected error")
		}
	})
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads valid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "inspect.toml")
		cfg := NewConfig("read-test", dir)
		cfg.Database = DatabaseConfig{Type: "memory"}

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.InspectorID != "read-test" {
			t.Errorf("InspectorID = %q, want %q", got.InspectorID, "read-test")
		}
		if got.Database.Type != "memory" {
			t.Errorf("Database.Type = %q, want memory", got.Database.Type)
		}
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		if _, err := ReadFromFile("/nonexistent/path/inspect.toml"); err == nil {
			t.Fatal("ReadFromFile() expected error for missing file")
		}
	})
}
