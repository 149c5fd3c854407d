// Package config loads the athenaq YAML configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	FormatTable = "table"
	FormatCSV   = "csv"
	FormatJSON  = "json"
)

// Config is the whole configuration file.
type Config struct {
	AWS         AWSConfig         `yaml:"aws"`
	Athena      AthenaConfig      `yaml:"athena"`
	Output      OutputConfig      `yaml:"output"`
	Cache       CacheConfig       `yaml:"cache"`
	QueryPrefix QueryPrefixConfig `yaml:"query_prefix"`
	Retry       RetryConfig       `yaml:"retry"`
	Polling     PollingConfig     `yaml:"polling"`
	Server      ServerConfig      `yaml:"server"`
	Logging     LoggingConfig     `yaml:"logging"`
	Queries     []QueryConfig     `yaml:"queries"`
}

type AWSConfig struct {
	Profile string `yaml:"profile"` // empty uses the default credential chain
	Region  string `yaml:"region"`
}

type AthenaConfig struct {
	Database       string `yaml:"database"`
	Workgroup      string `yaml:"workgroup"`
	OutputLocation string `yaml:"output_location"`
	Catalog        string `yaml:"catalog"`
}

type OutputConfig struct {
	Format string `yaml:"format"` // table, csv, json
	File   string `yaml:"file"`
}

type CacheConfig struct {
	Enabled    bool   `yaml:"enabled"`
	TTLSeconds int    `yaml:"ttl_seconds"`
	Directory  string `yaml:"directory"`
}

type QueryPrefixConfig struct {
	Enabled  bool   `yaml:"enabled"`
	ToolName string `yaml:"tool_name"`
}

type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
}

type PollingConfig struct {
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"` // 0 = poll until terminal
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

type QueryConfig struct {
	Name string `yaml:"name"`
	SQL  string `yaml:"sql"`
	Skip bool   `yaml:"skip"`
}

// Error is an invalid or unreadable configuration.
type Error struct {
	Field string
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	msg := e.Msg
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Field == "" {
		return "configuration: " + msg
	}
	return fmt.Sprintf("configuration: %s: %s", e.Field, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Default returns a configuration with every optional field set.
func Default() *Config {
	return &Config{
		AWS:         AWSConfig{Region: "us-east-1"},
		Athena:      AthenaConfig{Catalog: "AwsDataCatalog"},
		Output:      OutputConfig{Format: FormatTable},
		Cache:       CacheConfig{TTLSeconds: 3600, Directory: ".athena_cache"},
		QueryPrefix: QueryPrefixConfig{Enabled: true, ToolName: "athenaq"},
		Retry:       RetryConfig{MaxAttempts: 3, BaseDelay: time.Second},
		Polling:     PollingConfig{Interval: time.Second, Timeout: 30 * time.Minute},
		Server:      ServerConfig{Addr: ":8080"},
		Logging:     LoggingConfig{Level: "info"},
	}
}

// Load reads, expands and validates the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, &Error{Msg: "configuration file not found: " + path}
	}
	if err != nil {
		return nil, &Error{Msg: "failed to read config file " + path, Err: err}
	}
	return Parse(data)
}

// Parse decodes data on top of Default and validates the result.
// ${VAR} references are expanded from the environment first.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, &Error{Msg: "invalid YAML", Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	required := []struct {
		field string
		value string
	}{
		{"athena.database", c.Athena.Database},
		{"athena.workgroup", c.Athena.Workgroup},
		{"athena.output_location", c.Athena.OutputLocation},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &Error{Field: r.field, Msg: "must be a non-empty string"}
		}
	}
	if !strings.HasPrefix(c.Athena.OutputLocation, "s3://") {
		return &Error{Field: "athena.output_location", Msg: "must be an s3:// location"}
	}

	switch c.Output.Format {
	case FormatTable, FormatCSV, FormatJSON:
	default:
		return &Error{Field: "output.format", Msg: fmt.Sprintf("invalid output format %q, must be one of: table, csv, json", c.Output.Format)}
	}
	if c.Output.Format != FormatTable && c.Output.File == "" {
		return &Error{Field: "output.file", Msg: c.Output.Format + " output requires a file"}
	}

	if c.Cache.TTLSeconds < 0 {
		return &Error{Field: "cache.ttl_seconds", Msg: "must not be negative"}
	}
	if c.Cache.Enabled && c.Cache.Directory == "" {
		return &Error{Field: "cache.directory", Msg: "must be set when the cache is enabled"}
	}
	if c.Retry.MaxAttempts < 1 {
		return &Error{Field: "retry.max_attempts", Msg: "must be at least 1"}
	}
	if c.Retry.BaseDelay < 0 {
		return &Error{Field: "retry.base_delay", Msg: "must not be negative"}
	}
	if c.Polling.Interval <= 0 {
		return &Error{Field: "polling.interval", Msg: "must be positive"}
	}
	if c.Polling.Timeout < 0 {
		return &Error{Field: "polling.timeout", Msg: "must not be negative"}
	}

	if len(c.Queries) == 0 {
		return &Error{Field: "queries", Msg: "must contain at least one query"}
	}
	for i, q := range c.Queries {
		if strings.TrimSpace(q.Name) == "" {
			return &Error{Field: fmt.Sprintf("queries[%d].name", i), Msg: "must be a non-empty string"}
		}
		if strings.TrimSpace(q.SQL) == "" {
			return &Error{Field: fmt.Sprintf("queries[%d].sql", i), Msg: "must be a non-empty string"}
		}
	}
	return nil
}

// ActiveQueries returns the queries not marked skip, in file order.
func (c *Config) ActiveQueries() []QueryConfig {
	active := make([]QueryConfig, 0, len(c.Queries))
	for _, q := range c.Queries {
		if !q.Skip {
			active = append(active, q)
		}
	}
	return active
}
