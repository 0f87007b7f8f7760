// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package smartproxy

import (
	"encoding/json"
	"fmt"

	"github.com/stacklok/toolgate/pkg/gateway"
)

// SearchMode selects the discover backend for an endpoint.
type SearchMode string

const (
	// SearchModeKeyword serves discover from the in-memory lexical index.
	SearchModeKeyword SearchMode = "keyword"

	// SearchModeEmbeddings serves discover from vector similarity search,
	// falling back to keyword on any failure.
	SearchModeEmbeddings SearchMode = "embeddings"
)

// Defaults for the per-endpoint knobs.
const (
	DefaultFuzzy            = 0.2
	DefaultDescriptionBoost = 2.0
	DefaultMaxResults       = 10
	DefaultMinScore         = 0.3
	DefaultDropThreshold    = 0.30

	DefaultTruncationDelimiter  = "\n"
	DefaultTruncationOccurrence = 1
	DefaultTruncationMinLength  = 5
)

// DynamicLimitConfig bounds a ranked result list: a hard cap, an absolute
// score floor, and a relative score-drop cutoff.
type DynamicLimitConfig struct {
	MaxResults    int     `json:"maxResults"`
	MinScore      float64 `json:"minScore"`
	DropThreshold float64 `json:"dropThreshold"`
}

// TruncationConfig controls how tool descriptions are cut down before
// embedding, so verbose schema fragments do not dominate the vector.
type TruncationConfig struct {
	Enabled    *bool  `json:"enabled,omitempty"`
	Delimiter  string `json:"delimiter,omitempty"`
	Occurrence int    `json:"occurrence,omitempty"`
	MinLength  int    `json:"minLength,omitempty"`
}

// IsEnabled reports whether truncation is on; it defaults to on.
func (t TruncationConfig) IsEnabled() bool {
	return t.Enabled == nil || *t.Enabled
}

// EmbeddingConfig points the endpoint at an OpenAI-compatible embedding
// service.
type EmbeddingConfig struct {
	APIKey string `json:"apiKey"`
	APIURL string `json:"apiUrl"`
	Model  string `json:"model,omitempty"`
}

// Config is the per-endpoint smart proxy configuration, handed down from
// the admin layer as a JSON object. Unknown keys are ignored.
type Config struct {
	SearchMode          SearchMode         `json:"searchMode,omitempty"`
	Fuzzy               *float64           `json:"fuzzy,omitempty"`
	DescriptionBoost    *float64           `json:"descriptionBoost,omitempty"`
	DiscoverDescription string             `json:"discoverDescription,omitempty"`
	DynamicLimit        DynamicLimitConfig `json:"dynamicLimit,omitempty"`
	Embedding           *EmbeddingConfig   `json:"embedding,omitempty"`
	Truncation          TruncationConfig   `json:"truncation,omitempty"`

	// DiscoverLimit is a deprecated upper bound on discover results.
	// DynamicLimit.MaxResults supersedes it; when only DiscoverLimit is
	// set it seeds MaxResults so old endpoint configs stay bounded.
	DiscoverLimit int `json:"discoverLimit,omitempty"`
}

// ParseConfig decodes the admin layer's raw config object into a Config
// with defaults applied and ranges validated.
func ParseConfig(raw map[string]any) (*Config, error) {
	cfg := &Config{}
	if raw != nil {
		data, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", gateway.ErrInvalidConfig, err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: %v", gateway.ErrInvalidConfig, err)
		}
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetDefaults fills unset fields with the documented defaults.
func (c *Config) SetDefaults() {
	if c.SearchMode == "" {
		c.SearchMode = SearchModeKeyword
	}
	if c.Fuzzy == nil {
		v := DefaultFuzzy
		c.Fuzzy = &v
	}
	if c.DescriptionBoost == nil {
		v := DefaultDescriptionBoost
		c.DescriptionBoost = &v
	}
	if c.DynamicLimit.MaxResults == 0 {
		if c.DiscoverLimit > 0 {
			c.DynamicLimit.MaxResults = c.DiscoverLimit
		} else {
			c.DynamicLimit.MaxResults = DefaultMaxResults
		}
	}
	if c.DynamicLimit.MinScore == 0 {
		c.DynamicLimit.MinScore = DefaultMinScore
	}
	if c.DynamicLimit.DropThreshold == 0 {
		c.DynamicLimit.DropThreshold = DefaultDropThreshold
	}
	if c.Truncation.Delimiter == "" {
		c.Truncation.Delimiter = DefaultTruncationDelimiter
	}
	if c.Truncation.Occurrence == 0 {
		c.Truncation.Occurrence = DefaultTruncationOccurrence
	}
	if c.Truncation.MinLength == 0 {
		c.Truncation.MinLength = DefaultTruncationMinLength
	}
}

// Validate checks value ranges. Call after SetDefaults.
func (c *Config) Validate() error {
	switch c.SearchMode {
	case SearchModeKeyword, SearchModeEmbeddings:
	default:
		return fmt.Errorf("%w: searchMode must be %q or %q, got %q",
			gateway.ErrInvalidConfig, SearchModeKeyword, SearchModeEmbeddings, c.SearchMode)
	}

	if *c.Fuzzy < 0 || *c.Fuzzy > 1 {
		return fmt.Errorf("%w: fuzzy must be between 0.0 and 1.0, got %g", gateway.ErrInvalidConfig, *c.Fuzzy)
	}
	if *c.DescriptionBoost < 0 {
		return fmt.Errorf("%w: descriptionBoost must be >= 0, got %g", gateway.ErrInvalidConfig, *c.DescriptionBoost)
	}
	if c.DynamicLimit.MaxResults < 1 {
		return fmt.Errorf("%w: dynamicLimit.maxResults must be >= 1, got %d",
			gateway.ErrInvalidConfig, c.DynamicLimit.MaxResults)
	}
	if c.Truncation.Occurrence < 1 {
		return fmt.Errorf("%w: truncation.occurrence must be >= 1, got %d",
			gateway.ErrInvalidConfig, c.Truncation.Occurrence)
	}
	if c.Truncation.MinLength < 0 {
		return fmt.Errorf("%w: truncation.minLength must be >= 0, got %d",
			gateway.ErrInvalidConfig, c.Truncation.MinLength)
	}
	return nil
}
