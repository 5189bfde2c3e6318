package server

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the on-disk server configuration. All fields are optional; zero
// values fall back to the defaults NewServer applies.
type Config struct {
	Address           string   `toml:"address"`
	SupportedVersions []string `toml:"supported_versions"`
	ListTTL           duration `toml:"list_ttl"`
	ResourceTTL       duration `toml:"resource_ttl"`

	TLS TLSConfig `toml:"tls"`
}

// TLSConfig holds the certificate file paths for TLS serving.
type TLSConfig struct {
	CertFile string `toml:"cert_file"`
	KeyFile  string `toml:"key_file"`
	CAFile   string `toml:"ca_file"`
}

// duration is a time.Duration that decodes from TOML duration text such as
// "60m" or "1h30m".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}

// LoadConfig reads and decodes a TOML config file.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown config keys in %s: %v", path, undecoded)
	}
	return &cfg, nil
}

// Options translates the config into server options.
func (c *Config) Options() []Option {
	var opts []Option
	if len(c.SupportedVersions) > 0 {
		opts = append(opts, WithSupportedVersions(c.SupportedVersions))
	}
	if c.ListTTL.Duration > 0 {
		opts = append(opts, WithListTTL(c.ListTTL.Duration))
	}
	if c.ResourceTTL.Duration > 0 {
		opts = append(opts, WithResourceTTL(c.ResourceTTL.Duration))
	}
	if c.TLS.CertFile != "" && c.TLS.KeyFile != "" {
		opts = append(opts, WithTLS(c.TLS.CertFile, c.TLS.KeyFile, c.TLS.CAFile))
	}
	return opts
}
