// Package config provides configuration loading and validation for docdeps.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/nainya/docdeps/pkg/document"
	"github.com/nainya/docdeps/pkg/resolver"
)

// ProjectConfigFile is picked up from the working directory when no path is given
const ProjectConfigFile = "docdeps.yaml"

// Config represents the complete docdeps configuration
type Config struct {
	Corpus  CorpusConfig  `yaml:"corpus"`
	Resolve ResolveConfig `yaml:"resolve"`
	Log     LogConfig     `yaml:"log"`
	Server  ServerConfig  `yaml:"server"`
}

// CorpusConfig locates the documents file
type CorpusConfig struct {
	// Path is the JSON corpus file
	Path string `yaml:"path" validate:"required"`
	// Watch reloads the corpus on change (daemon only)
	Watch bool `yaml:"watch"`
	// Debounce is how long to wait for more writes before reloading
	Debounce time.Duration `yaml:"debounce" validate:"gte=0"`
}

// ResolveConfig holds resolution defaults
type ResolveConfig struct {
	Category  string `yaml:"category" validate:"oneof=normative bibliographic"`
	OnMissing string `yaml:"on_missing" validate:"oneof=fail skip"`
	MaxDepth  int    `yaml:"max_depth" validate:"gte=0"`
}

// LogConfig configures the structured logger
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error disabled"`
	Pretty bool   `yaml:"pretty"`
}

// ServerConfig configures docdepsd listeners
type ServerConfig struct {
	GRPCPort int `yaml:"grpc_port" validate:"gte=1,lte=65535"`
	// MetricsPort serves /metrics, /health and pprof; 0 disables it
	MetricsPort int `yaml:"metrics_port" validate:"gte=0,lte=65535"`
}

// DefaultConfig returns a Config with the defaults
func DefaultConfig() *Config {
	return &Config{
		Corpus: CorpusConfig{
			Path:     "data/documents.json",
			Watch:    true,
			Debounce: 500 * time.Millisecond,
		},
		Resolve: ResolveConfig{
			Category:  string(document.Normative),
			OnMissing: string(resolver.MissingFail),
		},
		Log: LogConfig{
			Level:  "warn",
			Pretty: true,
		},
		Server: ServerConfig{
			GRPCPort:    50061,
			MetricsPort: 9091,
		},
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: must satisfy %s=%s (got %v)", field, fe.Tag(), fe.Param(), fe.Value()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: %s", field, fe.Tag()))
		}
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// ResolveOptions converts the resolve section into resolver options
func (c *Config) ResolveOptions() (resolver.Options, error) {
	cat, err := document.ParseCategory(c.Resolve.Category)
	if err != nil {
		return resolver.Options{}, err
	}
	policy, err := resolver.ParseMissingPolicy(c.Resolve.OnMissing)
	if err != nil {
		return resolver.Options{}, err
	}
	return resolver.Options{
		Category:  cat,
		OnMissing: policy,
		MaxDepth:  c.Resolve.MaxDepth,
	}, nil
}

// LoadFromFile loads configuration from a YAML file on top of the defaults
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// Load resolves the configuration:
// 1. the explicit path, when given (must exist)
// 2. docdeps.yaml in the working directory, when present
// 3. defaults
func Load(path string) (*Config, error) {
	var (
		config *Config
		err    error
	)

	switch {
	case path != "":
		config, err = LoadFromFile(path)
	default:
		if _, statErr := os.Stat(ProjectConfigFile); statErr == nil {
			config, err = LoadFromFile(ProjectConfigFile)
		} else {
			config = DefaultConfig()
		}
	}
	if err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}
