package config

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, int64(1048576), cfg.Stream.ChunkSize)
	assert.Equal(t, 3, cfg.Stream.Retries)
	assert.Equal(t, 100000, cfg.Stream.BufferSize)
	assert.Equal(t, int64(MinPartSize), cfg.Copy.PartSize)
	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Hmac.Activated)
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("S3_BUCKET", "source")
	t.Setenv("STREAM_CHUNK_SIZE", "4096")
	t.Setenv("STREAM_RETRIES", "0")
	t.Setenv("COPY_BUCKET", "target")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "source", cfg.S3.Bucket)
	assert.Equal(t, int64(4096), cfg.Stream.ChunkSize)
	assert.Equal(t, 0, cfg.Stream.Retries)
	assert.Equal(t, "target", cfg.Copy.Bucket)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	content := []byte("s3:\n  s3_bucket: from-file\nstream:\n  chunk_size: 2048\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.S3.Bucket)
	assert.Equal(t, int64(2048), cfg.Stream.ChunkSize)
	assert.Equal(t, 3, cfg.Stream.Retries)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			modify: func(*Config) {},
		},
		{
			name:    "zero chunk size",
			modify:  func(c *Config) { c.Stream.ChunkSize = 0 },
			wantErr: "chunk size",
		},
		{
			name:    "negative retries",
			modify:  func(c *Config) { c.Stream.Retries = -1 },
			wantErr: "retries",
		},
		{
			name:    "part size below minimum",
			modify:  func(c *Config) { c.Copy.PartSize = 1024 },
			wantErr: "part size",
		},
		{
			name:    "hmac without secret",
			modify:  func(c *Config) { c.Hmac.Activated = true },
			wantErr: "hmac secret",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{
				Stream: Stream{ChunkSize: 1, Retries: 3, BufferSize: 1},
				Copy:   Copy{PartSize: MinPartSize},
			}
			tt.modify(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
