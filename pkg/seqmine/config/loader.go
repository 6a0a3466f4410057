package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	koanfyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"
)

// DefaultEnvPrefix prefixes environment overrides read by Load.
const DefaultEnvPrefix = "SEQMINE_"

type loadOptions struct {
	envPrefix string
	defaults  Params
}

// LoadOption configures Load.
type LoadOption func(*loadOptions)

// WithEnvPrefix changes the environment variable prefix. An empty prefix
// disables environment overrides.
func WithEnvPrefix(prefix string) LoadOption {
	return func(o *loadOptions) {
		o.envPrefix = prefix
	}
}

// WithDefaults replaces the base layer.
func WithDefaults(p Params) LoadOption {
	return func(o *loadOptions) {
		o.defaults = p
	}
}

// Load layers defaults, the YAML file at path (skipped when path is empty)
// and environment overrides, then validates the result.
func Load(path string, opts ...LoadOption) (Params, error) {
	o := loadOptions{envPrefix: DefaultEnvPrefix, defaults: Default()}
	for _, opt := range opts {
		opt(&o)
	}

	k := koanf.New(".")

	if err := k.Load(structs.Provider(&o.defaults, "koanf"), nil); err != nil {
		return Params{}, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), koanfyaml.Parser()); err != nil {
			return Params{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if o.envPrefix != "" {
		prefix := o.envPrefix
		if err := k.Load(env.Provider(prefix, ".", func(s string) string {
			return strings.ToLower(strings.TrimPrefix(s, prefix))
		}), nil); err != nil {
			return Params{}, fmt.Errorf("load environment: %w", err)
		}
	}

	var p Params
	if err := k.Unmarshal("", &p); err != nil {
		return Params{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}

// FromFile loads parameters from a file, auto-detecting format by extension.
// Supported extensions: .yaml, .yml, .json
func FromFile(path string) (Params, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Params{}, fmt.Errorf("read config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return FromYAML(data)
	case ".json":
		return FromJSON(data)
	default:
		return Params{}, fmt.Errorf("unsupported config file extension: %s", ext)
	}
}

// FromYAML decodes YAML over the defaults and validates the result.
// Unknown keys are rejected.
func FromYAML(data []byte) (Params, error) {
	p := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return Params{}, fmt.Errorf("parse yaml: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}

// FromJSON decodes JSON over the defaults and validates the result.
// JSON is read as YAML, so durations must be duration strings such as
// "10m"; bare numbers are rejected rather than read as nanoseconds.
func FromJSON(data []byte) (Params, error) {
	return FromYAML(data)
}
