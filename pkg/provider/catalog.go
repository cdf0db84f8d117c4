package provider

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

// Spec is one provider entry in the catalog file.
type Spec struct {
	Name           string  `yaml:"name"`
	BaseURL        string  `yaml:"base_url"`
	APIKey         string  `yaml:"api_key"`
	TimeoutSeconds int     `yaml:"timeout_seconds" default:"3"`
	Routes         []Route `yaml:"routes"`
}

// Timeout returns the per-provider request timeout.
func (s *Spec) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

func (s *Spec) validate() error {
	if s.Name == "" {
		return fmt.Errorf("provider entry missing name")
	}
	if s.BaseURL == "" {
		return fmt.Errorf("provider %s: missing base_url", s.Name)
	}
	if len(s.Routes) == 0 {
		return fmt.Errorf("provider %s: no routes configured", s.Name)
	}
	for i, r := range s.Routes {
		if r.Source == "" || r.Destination == "" {
			return fmt.Errorf("provider %s: route %d incomplete", s.Name, i)
		}
	}
	return nil
}

// Catalog is the parsed provider catalog file.
type Catalog struct {
	Providers []Spec `yaml:"providers"`
}

// LoadCatalog reads and validates the provider catalog YAML file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read provider catalog: %w", err)
	}
	// Secrets are referenced as ${VAR} in the catalog file.
	return ParseCatalog([]byte(os.ExpandEnv(string(data))))
}

// ParseCatalog decodes catalog YAML, applying per-entry defaults.
func ParseCatalog(data []byte) (*Catalog, error) {
	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("parse provider catalog: %w", err)
	}
	if len(catalog.Providers) == 0 {
		return nil, fmt.Errorf("provider catalog is empty")
	}

	seen := make(map[string]bool, len(catalog.Providers))
	for i := range catalog.Providers {
		spec := &catalog.Providers[i]
		if err := defaults.Set(spec); err != nil {
			return nil, fmt.Errorf("apply catalog defaults: %w", err)
		}
		if err := spec.validate(); err != nil {
			return nil, err
		}
		if seen[spec.Name] {
			return nil, fmt.Errorf("duplicate provider name %s", spec.Name)
		}
		seen[spec.Name] = true
	}
	return &catalog, nil
}

// Build instantiates the REST clients for every catalog entry, sharing one
// HTTP client across providers.
func (c *Catalog) Build() []Provider {
	httpClient := &http.Client{
		Transport: &http.Transport{
			MaxIdleConnsPerHost: 8,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	providers := make([]Provider, 0, len(c.Providers))
	for i := range c.Providers {
		providers = append(providers, NewRESTProvider(&c.Providers[i], httpClient))
	}
	return providers
}
