package archive

import (
	"context"
	"testing"

	"autoinspect/internal/config"
)

func TestNewArchiveFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.ArchiveConfig
		wantErr bool
		wantNil bool
	}{
		{name: "none", cfg: config.ArchiveConfig{Type: "none"}, wantNil: true},
		{name: "empty type", cfg: config.ArchiveConfig{}, wantNil: true},
		{name: "memory", cfg: config.ArchiveConfig{Type: "memory", Name: "m"}},
		{name: "filesystem", cfg: config.ArchiveConfig{Type: "filesystem", Name: "fs", FSRoot: "TEMP"}},
		{name: "filesystem without root", cfg: config.ArchiveConfig{Type: "filesystem"}, wantErr: true, wantNil: true},
		{name: "s3 without bucket", cfg: config.ArchiveConfig{Type: "s3"}, wantErr: true, wantNil: true},
		{name: "unknown", cfg: config.ArchiveConfig{Type: "ftp"}, wantErr: true, wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.cfg.FSRoot == "TEMP" {
				tt.cfg.FSRoot = t.TempDir()
			}

			got, err := NewArchiveFromConfig(context.Background(), tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewArchiveFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if (got == nil) != tt.wantNil {
				t.Fatalf("NewArchiveFromConfig() returned nil = %v, wantNil %v", got == nil, tt.wantNil)
			}
			if got != nil {
				if err := got.ValidateSetup(); err != nil {
					t.Errorf("ValidateSetup() error = %v", err)
				}
			}
		})
	}
}
