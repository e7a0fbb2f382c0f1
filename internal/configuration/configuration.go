// Package configuration defines the YAML-loaded configuration for the
// ingestion worker, following the same struct-tag conventions as the
// registry's own configuration package: no underscores in yaml field names
// (so a DISTRIBUTION_-style env prefix can always substitute for a field by
// upper-casing its dotted path), omitempty on everything but the handful of
// settings that must always be present.
package configuration

import (
	"errors"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"
)

// Configuration is the root of the ingestion worker's config file.
type Configuration struct {
	// Log configures the logging subsystem.
	Log Log `yaml:"log,omitempty"`

	// DownloadDir is the scratch area archives are downloaded and
	// extracted into.
	DownloadDir string `yaml:"downloaddir"`

	// ManifestURL is the absolute URL of the GDELT translation manifest.
	ManifestURL string `yaml:"manifesturl"`

	// ObjectStore configures the S3-compatible object store archives are
	// unpacked into.
	ObjectStore ObjectStore `yaml:"objectstore"`

	// Redis configures the key/value store backing HashStore and
	// StatusStore.
	Redis Redis `yaml:"redis"`

	// Bus configures the message bus archives' object URLs are published
	// to.
	Bus Bus `yaml:"bus"`

	// Hash configures HashStore record behavior.
	Hash Hash `yaml:"hash,omitempty"`

	// Status configures StatusStore record behavior.
	Status Status `yaml:"status,omitempty"`

	// Check configures the Coordinator's periodic manifest poll.
	Check Check `yaml:"check,omitempty"`

	// Retry configures the RetryScheduler's periodic sweep.
	Retry Retry `yaml:"retry,omitempty"`

	// HTTP configures archive download timeouts and the control-surface
	// HTTP server.
	HTTP HTTP `yaml:"http,omitempty"`
}

// Log configures the logging subsystem.
type Log struct {
	// Level is the granularity at which the worker logs.
	Level string `yaml:"level,omitempty"`

	// Formatter overrides the default formatter. Options include "text"
	// and "json".
	Formatter string `yaml:"formatter,omitempty"`

	// Fields allows static fields to be attached to every log line.
	Fields map[string]any `yaml:"fields,omitempty"`
}

// ObjectStore configures the S3-compatible destination bucket.
type ObjectStore struct {
	Endpoint       string `yaml:"endpoint"`
	Bucket         string `yaml:"bucket"`
	Region         string `yaml:"region,omitempty"`
	AccessKey      string `yaml:"accesskey,omitempty"`
	SecretKey      string `yaml:"secretkey,omitempty"`
	ForcePathStyle bool   `yaml:"forcepathstyle,omitempty"`
	Secure         bool   `yaml:"secure,omitempty"`
}

// Redis configures the connection pool used for HashStore and
// StatusStore, adapted from registry/storage/cache/redis's Redis struct.
type Redis struct {
	Addr     string `yaml:"addr"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`

	DialTimeout  time.Duration `yaml:"dialtimeout,omitempty"`
	ReadTimeout  time.Duration `yaml:"readtimeout,omitempty"`
	WriteTimeout time.Duration `yaml:"writetimeout,omitempty"`

	Pool struct {
		MaxIdle     int           `yaml:"maxidle,omitempty"`
		MaxActive   int           `yaml:"maxactive,omitempty"`
		IdleTimeout time.Duration `yaml:"idletimeout,omitempty"`
	} `yaml:"pool,omitempty"`
}

// Bus configures the Kafka-compatible message bus the Publisher writes to.
type Bus struct {
	BootstrapServers []string `yaml:"bootstrapservers"`
	TopicEvent       string   `yaml:"topic.event"`
	TopicMention     string   `yaml:"topic.mention"`
}

// Hash configures the TTL applied to HashStore records.
type Hash struct {
	TTL time.Duration `yaml:"ttl,omitempty"`
}

// Status configures the TTL applied to StatusStore records.
type Status struct {
	TTL time.Duration `yaml:"ttl,omitempty"`
}

// Check configures the Coordinator's scheduled tick.
type Check struct {
	Interval time.Duration `yaml:"interval,omitempty"`
}

// Retry configures the RetryScheduler's scheduled sweep.
type Retry struct {
	Interval time.Duration `yaml:"interval,omitempty"`
}

// HTTP configures archive-download timeouts and the control-surface trigger
// server. The Retry block is parsed and defaulted, but no component reads
// it: manifest fetches and archive downloads are not retried.
type HTTP struct {
	Addr string `yaml:"addr,omitempty"`

	ConnectTimeout time.Duration `yaml:"connecttimeout,omitempty"`
	ReadTimeout    time.Duration `yaml:"readtimeout,omitempty"`

	Retry struct {
		Period      time.Duration `yaml:"period,omitempty"`
		MaxPeriod   time.Duration `yaml:"maxperiod,omitempty"`
		MaxAttempts int           `yaml:"maxattempts,omitempty"`
	} `yaml:"retry,omitempty"`
}

// defaults are applied after Parse for any field left at its zero value,
// matching the spec's stated defaults (§6).
func (c *Configuration) applyDefaults() {
	if c.Hash.TTL == 0 {
		c.Hash.TTL = 7 * 24 * time.Hour
	}
	if c.Status.TTL == 0 {
		c.Status.TTL = time.Hour
	}
	if c.Check.Interval == 0 {
		c.Check.Interval = 60 * time.Second
	}
	if c.Retry.Interval == 0 {
		c.Retry.Interval = 5 * time.Minute
	}
	if c.HTTP.ConnectTimeout == 0 {
		c.HTTP.ConnectTimeout = 2 * time.Minute
	}
	if c.HTTP.ReadTimeout == 0 {
		c.HTTP.ReadTimeout = 2 * time.Minute
	}
	if c.HTTP.Retry.MaxAttempts == 0 {
		c.HTTP.Retry.MaxAttempts = 5
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":5000"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Formatter == "" {
		c.Log.Formatter = "text"
	}
}

// Parse reads and validates a YAML configuration from rd, applying the
// spec's documented defaults for any field left unset.
func Parse(rd io.Reader) (*Configuration, error) {
	in, err := io.ReadAll(rd)
	if err != nil {
		return nil, err
	}

	config := new(Configuration)
	if err := yaml.Unmarshal(in, config); err != nil {
		return nil, fmt.Errorf("configuration: %w", err)
	}

	if config.ManifestURL == "" {
		return nil, errors.New("configuration: manifesturl must be set")
	}
	if config.DownloadDir == "" {
		return nil, errors.New("configuration: downloaddir must be set")
	}
	if config.ObjectStore.Bucket == "" {
		return nil, errors.New("configuration: objectstore.bucket must be set")
	}
	if config.Bus.TopicEvent == "" || config.Bus.TopicMention == "" {
		return nil, errors.New("configuration: bus.topic.event and bus.topic.mention must be set")
	}

	config.applyDefaults()
	return config, nil
}
