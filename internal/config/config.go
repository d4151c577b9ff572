package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report fields by their yaml names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Config represents the top-level dynbind.yaml configuration.
type Config struct {
	Log   LogConfig   `yaml:"log"`
	Cache CacheConfig `yaml:"cache"`
	Trace TraceConfig `yaml:"trace"`
	Grpc  GrpcConfig  `yaml:"grpc"`
}

// LogConfig selects the slog handler built by Logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Defaults to info.
	Level string `yaml:"level,omitempty" validate:"omitempty,oneof=debug info warn error"`

	// Format is text or json. Defaults to text.
	Format string `yaml:"format,omitempty" validate:"omitempty,oneof=text json"`
}

// CacheConfig bounds the call-site descriptor cache.
type CacheConfig struct {
	// MaxSites is the most descriptors kept. 0 means unbounded.
	MaxSites int `yaml:"max_sites,omitempty" validate:"gte=0"`
}

// TraceConfig controls recording of binding events.
type TraceConfig struct {
	Enabled bool `yaml:"enabled,omitempty"`

	// Path is the SQLite database file, relative to the config file.
	// Defaults to .dynbind/trace.db.
	Path string `yaml:"path,omitempty"`
}

// GrpcConfig describes the remote services reachable through the gRPC
// interop fallback.
type GrpcConfig struct {
	// Target is the address dialed by the CLI (e.g. "localhost:50051").
	Target string `yaml:"target,omitempty" validate:"required_with=Protos"`

	// ImportPaths are searched for .proto files and their imports.
	ImportPaths []string `yaml:"import_paths,omitempty" validate:"dive,required"`

	// Protos lists the .proto files to load, relative to ImportPaths.
	Protos []string `yaml:"protos,omitempty" validate:"dive,required,endswith=.proto"`

	// Timeout bounds each call, in time.ParseDuration syntax. Defaults to 10s.
	Timeout string `yaml:"timeout,omitempty"`
}

// Default returns the configuration used when no dynbind.yaml is found.
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// LoadConfig reads and parses a dynbind.yaml file. Relative paths in the
// file are resolved against its directory.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg, err := ParseConfig(data, path)
	if err != nil {
		return nil, err
	}
	cfg.resolvePaths(filepath.Dir(path))
	return cfg, nil
}

// ParseConfig parses dynbind.yaml content from bytes.
// The path argument is used only for error messages.
func ParseConfig(data []byte, path string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.validate(path); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	return &cfg, nil
}

// FindConfig searches for dynbind.yaml starting from dir and walking up
// to parent directories. It returns "" and a nil error if none is found.
func FindConfig(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}

	for {
		for _, name := range []string{ConfigFileName, AltConfigFileName} {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// validate checks the configuration for semantic errors.
func (c *Config) validate(path string) error {
	if err := validate.Struct(c); err != nil {
		var valErrs validator.ValidationErrors
		if !errors.As(err, &valErrs) {
			return fmt.Errorf("%s: %w", path, err)
		}
		msgs := make([]string, 0, len(valErrs))
		for _, ve := range valErrs {
			field := ve.Namespace()
			if _, rest, ok := strings.Cut(field, "."); ok {
				field = rest
			}
			msgs = append(msgs, field+": "+describe(ve))
		}
		return fmt.Errorf("%s: %s", path, strings.Join(msgs, "; "))
	}

	if c.Grpc.Timeout != "" {
		d, err := time.ParseDuration(c.Grpc.Timeout)
		if err != nil {
			return fmt.Errorf("%s: grpc.timeout: %w", path, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s: grpc.timeout: must be positive, got %s", path, d)
		}
	}
	return nil
}

func describe(ve validator.FieldError) string {
	switch ve.Tag() {
	case "required":
		return "must not be empty"
	case "required_with":
		return "required when " + strings.ToLower(ve.Param()) + " is set"
	case "oneof":
		return "must be one of: " + ve.Param()
	case "gte":
		return "must be at least " + ve.Param()
	case "endswith":
		return "must end with " + ve.Param()
	}
	if ve.Param() != "" {
		return fmt.Sprintf("failed %s=%s validation", ve.Tag(), ve.Param())
	}
	return fmt.Sprintf("failed %s validation", ve.Tag())
}

// setDefaults fills in default values for omitted fields.
func (c *Config) setDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
	if c.Trace.Path == "" {
		c.Trace.Path = DefaultTracePath
	}
	if c.Grpc.Timeout == "" {
		c.Grpc.Timeout = DefaultGrpcTimeout
	}
}

func (c *Config) resolvePaths(dir string) {
	if !filepath.IsAbs(c.Trace.Path) {
		c.Trace.Path = filepath.Join(dir, c.Trace.Path)
	}
	for i, p := range c.Grpc.ImportPaths {
		if !filepath.IsAbs(p) {
			c.Grpc.ImportPaths[i] = filepath.Join(dir, p)
		}
	}
}

// SlogLevel maps Level to a slog.Level.
func (l LogConfig) SlogLevel() slog.Level {
	switch l.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Logger builds a logger writing to w in the configured format and level.
func (l LogConfig) Logger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: l.SlogLevel()}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// TimeoutDuration returns Timeout parsed, or the default when unset.
func (g GrpcConfig) TimeoutDuration() time.Duration {
	if d, err := time.ParseDuration(g.Timeout); err == nil && d > 0 {
		return d
	}
	d, _ := time.ParseDuration(DefaultGrpcTimeout)
	return d
}
