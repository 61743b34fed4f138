// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config provides the xfade server configuration, its validation
// and live reloading.
package config

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"hash"
	"log/slog"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/kortschak/xfade/internal/decode"
	"github.com/kortschak/xfade/internal/pipeline"
)

// Config is a complete server configuration. Unset fields take their
// default values.
type Config struct {
	Server   Server   `json:"server" toml:"server"`
	Defaults Defaults `json:"defaults" toml:"defaults"`
	Log      Log      `json:"log" toml:"log"`
	Decode   Decode   `json:"decode" toml:"decode"`
}

// Server is the web server configuration.
type Server struct {
	// Addr is the listen address.
	Addr string `json:"addr,omitempty" toml:"addr"`

	// MaxUploadBytes is the largest request body
	// that will be accepted.
	MaxUploadBytes int64 `json:"max_upload_bytes,omitempty" toml:"max_upload_bytes"`
	// MaxMemoryBytes is the largest frame memory
	// an animation may use.
	MaxMemoryBytes int64 `json:"max_memory_bytes,omitempty" toml:"max_memory_bytes"`

	// CertPEM, KeyPEM and CAPEM are paths to PEM
	// files used to configure TLS. If CAPEM is set,
	// clients must present a certificate signed by
	// the CA.
	CertPEM string `json:"cert_pem,omitempty" toml:"cert_pem"`
	KeyPEM  string `json:"key_pem,omitempty" toml:"key_pem"`
	CAPEM   string `json:"ca_pem,omitempty" toml:"ca_pem"`

	// Insecure allows serving without TLS on a
	// non-loopback address.
	Insecure bool `json:"insecure,omitempty" toml:"insecure"`
}

// Defaults are the initial animation parameters offered by the upload
// form.
type Defaults struct {
	Delay       *time.Duration `json:"delay,omitempty" toml:"delay"`
	Quality     *int           `json:"quality,omitempty" toml:"quality"`
	Transitions *int           `json:"transitions,omitempty" toml:"transitions"`
}

// Log is the logging configuration.
type Log struct {
	Level     *slog.Level `json:"level,omitempty" toml:"level"`
	AddSource *bool       `json:"add_source,omitempty" toml:"add_source"`
}

// Decode is the image decoding configuration.
type Decode struct {
	// Formats is the set of accepted upload formats.
	Formats []string `json:"formats,omitempty" toml:"formats"`
	// MaxPixels is the largest accepted upload in
	// pixels. Zero is DefaultMaxPixels.
	MaxPixels int `json:"max_pixels,omitempty" toml:"max_pixels"`
}

// Default server limits.
const (
	DefaultAddr           = "localhost:7474"
	DefaultMaxUploadBytes = 64 << 20
	DefaultMaxMemoryBytes = 1 << 30
	DefaultMaxPixels      = 1 << 26
)

// Addr returns the configured listen address or DefaultAddr.
func (c *Config) Addr() string {
	if c.Server.Addr == "" {
		return DefaultAddr
	}
	return c.Server.Addr
}

// MaxUploadBytes returns the configured upload limit or
// DefaultMaxUploadBytes.
func (c *Config) MaxUploadBytes() int64 {
	if c.Server.MaxUploadBytes == 0 {
		return DefaultMaxUploadBytes
	}
	return c.Server.MaxUploadBytes
}

// MaxMemoryBytes returns the configured memory budget or
// DefaultMaxMemoryBytes.
func (c *Config) MaxMemoryBytes() int64 {
	if c.Server.MaxMemoryBytes == 0 {
		return DefaultMaxMemoryBytes
	}
	return c.Server.MaxMemoryBytes
}

// MaxPixels returns the configured upload pixel limit or
// DefaultMaxPixels.
func (c *Config) MaxPixels() int {
	if c.Decode.MaxPixels == 0 {
		return DefaultMaxPixels
	}
	return c.Decode.MaxPixels
}

// Params returns the configured default animation parameters with unset
// values taken from pipeline.DefaultParams.
func (c *Config) Params() pipeline.Params {
	p := pipeline.DefaultParams()
	if c.Defaults.Delay != nil {
		p.Delay = *c.Defaults.Delay
	}
	if c.Defaults.Quality != nil {
		p.Quality = *c.Defaults.Quality
	}
	if c.Defaults.Transitions != nil {
		p.Transitions = *c.Defaults.Transitions
	}
	return p
}

// Decoder returns an image decoder for the configured formats.
func (c *Config) Decoder() (*decode.Decoder, error) {
	d := &decode.Decoder{MaxPixels: c.MaxPixels()}
	for _, s := range c.Decode.Formats {
		f, err := decode.ParseFormat(s)
		if err != nil {
			return nil, err
		}
		d.Formats = append(d.Formats, f)
	}
	return d, nil
}

// Check validates the configuration against Schema and the animation
// parameter ranges, returning the paths to any invalid fields.
func (c *Config) Check() (paths [][]string, err error) {
	paths, err = Validate(Schema, c)
	if err != nil {
		return paths, err
	}
	err = c.Params().Validate()
	if err != nil {
		var perr *pipeline.ParamError
		if errors.As(err, &perr) {
			paths = [][]string{{"defaults", perr.Name}}
		}
		return paths, err
	}
	return nil, nil
}

// Load reads and validates the TOML configuration in the named file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, _, err := unmarshal(sha1.New(), b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// unmarshal returns a validated configuration and its semantic hash from
// the provided raw TOML data.
func unmarshal(h hash.Hash, b []byte) (*Config, Sum, error) {
	var (
		cfg Config
		sum Sum
	)
	err := toml.Unmarshal(b, &cfg)
	if err != nil {
		return nil, sum, err
	}
	_, err = cfg.Check()
	if err != nil {
		return nil, sum, err
	}
	h.Reset()
	err = json.NewEncoder(h).Encode(&cfg)
	if err != nil {
		return nil, sum, err
	}
	sum = Sum(h.Sum(nil))
	h.Reset()
	return &cfg, sum, nil
}

// Sum is the SHA-1 hash of the semantic content of a configuration.
type Sum [sha1.Size]byte

func (s Sum) String() string {
	return hex.EncodeToString(s[:])
}

func (s Sum) LogValue() slog.Value {
	return slog.StringValue(s.String())
}
