// Package config reads the harvest configuration file and keeps it current.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/lowkey/internal/core/domain"
)

// fileConfig mirrors the on-disk layout. Pointers tell "absent" from zero.
type fileConfig struct {
	Cities        []string `yaml:"cities" toml:"cities"`
	QueryPatterns []string `yaml:"query_patterns" toml:"query_patterns"`
	PostsPerQuery *int     `yaml:"posts_per_query" toml:"posts_per_query"`
	RequestDelay  string   `yaml:"request_delay" toml:"request_delay"`
	Validate      *bool    `yaml:"validate" toml:"validate"`
	OutputDir     string   `yaml:"output_dir" toml:"output_dir"`
}

// Load reads a YAML (.yaml, .yml) or TOML (.toml) harvest config.
// Fields missing from the file keep their defaults.
func Load(path string) (*domain.HarvestConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data, filepath.Ext(path))
}

// Parse decodes config data in the format named by ext.
func Parse(data []byte, ext string) (*domain.HarvestConfig, error) {
	var fc fileConfig

	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse yaml config: %w", err)
		}
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&fc); err != nil {
			return nil, fmt.Errorf("failed to parse toml config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q: %w", ext, domain.ErrInvalidInput)
	}

	return fc.apply(domain.DefaultHarvestConfig())
}

func (fc *fileConfig) apply(cfg *domain.HarvestConfig) (*domain.HarvestConfig, error) {
	if cities := trimAll(fc.Cities); len(cities) > 0 {
		cfg.Cities = cities
	}

	if patterns := trimAll(fc.QueryPatterns); len(patterns) > 0 {
		for _, p := range patterns {
			if !strings.Contains(p, domain.CityPlaceholder) {
				return nil, fmt.Errorf("query pattern %q has no %s placeholder: %w", p, domain.CityPlaceholder, domain.ErrInvalidInput)
			}
		}
		cfg.QueryPatterns = patterns
	}

	if fc.PostsPerQuery != nil {
		if *fc.PostsPerQuery <= 0 {
			return nil, fmt.Errorf("posts_per_query must be positive: %w", domain.ErrInvalidInput)
		}
		cfg.PostsPerQuery = *fc.PostsPerQuery
	}

	if fc.RequestDelay != "" {
		d, err := time.ParseDuration(fc.RequestDelay)
		if err != nil || d < 0 {
			return nil, fmt.Errorf("invalid request_delay %q: %w", fc.RequestDelay, domain.ErrInvalidInput)
		}
		cfg.RequestDelay = d
	}

	if fc.Validate != nil {
		cfg.Validate = *fc.Validate
	}
	if dir := strings.TrimSpace(fc.OutputDir); dir != "" {
		cfg.OutputDir = dir
	}

	return cfg, nil
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
