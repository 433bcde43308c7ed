// Package config loads the server's TOML configuration document, per
// spec.md §6. The teacher's own config package used a bespoke in-repo DSL
// (pkg/vibe); that is dropped here because the spec hard-requires a TOML
// document with a specific key layout, which only a real TOML parser can
// serve.
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/mntlake/rustcast/internal/hooks"
)

// Config is the parsed contents of the server's TOML config file.
type Config struct {
	Listen        string `toml:"listen"`
	StreamDump    string `toml:"stream_dump"`
	SessionCookie string `toml:"session_cookie"`
	Webhooks      struct {
		StreamStart   string `toml:"stream_start"`
		StreamEnd     string `toml:"stream_end"`
		ListenerStart string `toml:"listener_start"`
		ListenerEnd   string `toml:"listener_end"`
	} `toml:"webhooks"`
}

// HooksConfig adapts the parsed [webhooks] table to the hooks package's
// own Config type.
func (c Config) HooksConfig() hooks.Config {
	return hooks.Config{
		StreamStart:   c.Webhooks.StreamStart,
		StreamEnd:     c.Webhooks.StreamEnd,
		ListenerStart: c.Webhooks.ListenerStart,
		ListenerEnd:   c.Webhooks.ListenerEnd,
	}
}

// Load reads and parses the TOML config file at path, then validates the
// required keys are present.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var c Config
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks that the required keys (listen, stream_dump) are
// present. session_cookie and every webhook URL are optional.
func (c Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("config: %q is required", "listen")
	}
	if c.StreamDump == "" {
		return fmt.Errorf("config: %q is required", "stream_dump")
	}
	return nil
}
