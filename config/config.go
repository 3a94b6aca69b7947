package config

import (
	"errors"
	"fmt"
	"github.com/ilyakaznacheev/cleanenv"
)

// MinPartSize is the smallest part S3 accepts for every part but the last.
const MinPartSize = 5 * 1024 * 1024

type Config struct {
	Hmac            HMAC            `yaml:"hmac"`
	S3              S3              `yaml:"s3"`
	Stream          Stream          `yaml:"stream"`
	Copy            Copy            `yaml:"copy"`
	CacheController CacheController `yaml:"cache_controller"`
	Cache           Cache           `yaml:"cache"`
	Log             Log             `yaml:"log"`
	Base64Path      bool            `yaml:"base64_path" env:"BASE64_PATH" env-default:"false"`
	Listen          string          `yaml:"listen" env:"LISTEN" env-default:":8080"`
}

// Load reads the configuration from path when it is set, and from the
// environment otherwise. Environment variables override file values.
func Load(path string) (*Config, error) {
	var cfg Config
	var err error
	if path != "" {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Stream.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("stream chunk size must be positive, got %d", c.Stream.ChunkSize))
	}
	if c.Stream.Retries < 0 {
		errs = append(errs, fmt.Errorf("stream retries must not be negative, got %d", c.Stream.Retries))
	}
	if c.Stream.BufferSize <= 0 {
		errs = append(errs, fmt.Errorf("stream buffer size must be positive, got %d", c.Stream.BufferSize))
	}
	if c.Copy.PartSize < MinPartSize {
		errs = append(errs, fmt.Errorf("copy part size must be at least %d, got %d", MinPartSize, c.Copy.PartSize))
	}
	if c.Hmac.Activated && c.Hmac.SecretKey == "" {
		errs = append(errs, errors.New("hmac secret is required when hmac is activated"))
	}
	return errors.Join(errs...)
}

// Usage returns the environment variable help text.
func Usage() string {
	var cfg Config
	desc, err := cleanenv.GetDescription(&cfg, nil)
	if err != nil {
		return ""
	}
	return desc
}
