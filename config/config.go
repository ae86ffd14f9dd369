// Package config handles YAML config file loading for cinnabar sessions.
package config

import (
	"fmt"
	"time"

	"github.com/justapithecus/cinnabar/session"
)

// Config represents a cinnabar.yaml configuration file.
// All values are optional and act as defaults for opening sessions;
// options set by the caller always override config values.
type Config struct {
	// Binary is the hg executable path. Empty means "hg" from PATH.
	Binary string `yaml:"binary"`
	// Encoding is the HGENCODING value requested for servers.
	Encoding string `yaml:"encoding"`
	// Config holds section.key=value overrides passed to every server.
	Config []string `yaml:"config"`
	// ShutdownGrace bounds how long Close waits for a polite exit
	// before killing the server.
	ShutdownGrace Duration `yaml:"shutdown_grace"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// SessionOptions converts the file values into options for one session
// against the given repository. The overrides slice is copied so later
// mutation of the Config does not leak into open sessions.
func (c *Config) SessionOptions(repo string) session.Options {
	return session.Options{
		Repo:          repo,
		Binary:        c.Binary,
		Encoding:      c.Encoding,
		Config:        append([]string(nil), c.Config...),
		ShutdownGrace: c.ShutdownGrace.Duration,
	}
}
