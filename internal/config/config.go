// Package config loads the merge tool's JSON configuration. Every field is
// optional; the Get* accessors supply defaults for anything left out.
package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/kaptinlin/jsonschema"

	"github.com/banshee-data/trialmerge/internal/merge"
	"github.com/banshee-data/trialmerge/internal/session"
)

//go:embed schema.json
var schemaJSON []byte

// Defaults for fields omitted from the configuration file.
const (
	DefaultTrialLogExt       = ".csv"
	DefaultStreamExt         = ".sqlite"
	DefaultOutputSuffix      = "_combined"
	DefaultWorkers           = 1
	// DefaultMaxAnchorResidual is in stream time units (seconds).
	DefaultMaxAnchorResidual = 0.05
)

// Config is the root configuration.
type Config struct {
	// Input discovery
	TrialLogExt *string `json:"trial_log_ext,omitempty"`
	StreamExt   *string `json:"stream_ext,omitempty"`

	// Alignment
	TrialStartColumn  *string  `json:"trial_start_column,omitempty"`
	TrialStartPattern *string  `json:"trial_start_pattern,omitempty"`
	MetadataFields    []string `json:"metadata_fields,omitempty"`

	// Output
	OutputSuffix *string `json:"output_suffix,omitempty"`
	ReportPNG    *bool   `json:"report_png,omitempty"`
	ReportHTML   *bool   `json:"report_html,omitempty"`
	Manifest     *bool   `json:"manifest,omitempty"`

	// Batch
	Workers         *int  `json:"workers,omitempty"`
	ContinueOnError *bool `json:"continue_on_error,omitempty"`

	// Diagnostics
	MaxAnchorResidual *float64 `json:"max_anchor_residual,omitempty"`
}

// Empty returns a Config with every field unset, so all getters return
// defaults.
func Empty() *Config {
	return &Config{}
}

// LoadConfig loads a Config from a JSON file.
// The file must have a .json extension, be under 1MB and match the embedded
// JSON schema before it is decoded.
func LoadConfig(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse validates and decodes a JSON configuration document.
func Parse(data []byte) (*Config, error) {
	if err := validateSchema(data); err != nil {
		return nil, err
	}

	cfg := Empty()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func validateSchema(data []byte) error {
	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile(schemaJSON)
	if err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	result := schema.ValidateJSON(data)
	if result.IsValid() {
		return nil
	}
	return fmt.Errorf("config schema validation failed: %v", result.Errors)
}

// Validate checks values the schema cannot express.
func (c *Config) Validate() error {
	if c.TrialStartPattern != nil {
		if _, err := regexp.Compile(*c.TrialStartPattern); err != nil {
			return fmt.Errorf("invalid trial_start_pattern %q: %w", *c.TrialStartPattern, err)
		}
	}
	if c.Workers != nil && *c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", *c.Workers)
	}
	if c.MaxAnchorResidual != nil && *c.MaxAnchorResidual < 0 {
		return fmt.Errorf("max_anchor_residual must be non-negative, got %f", *c.MaxAnchorResidual)
	}
	if c.TrialLogExt != nil && c.StreamExt != nil && *c.TrialLogExt == *c.StreamExt {
		return fmt.Errorf("trial_log_ext and stream_ext must differ, both are %q", *c.TrialLogExt)
	}
	seen := make(map[string]bool, len(c.MetadataFields))
	for _, f := range c.MetadataFields {
		if f == c.GetTrialStartColumn() {
			return fmt.Errorf("metadata_fields must not include the trial start column %q", f)
		}
		if seen[f] {
			return fmt.Errorf("metadata field %q listed twice", f)
		}
		seen[f] = true
	}
	return nil
}

// GetTrialLogExt returns the trial log extension or the default.
func (c *Config) GetTrialLogExt() string {
	if c.TrialLogExt == nil {
		return DefaultTrialLogExt
	}
	return *c.TrialLogExt
}

// GetStreamExt returns the sensor stream container extension or the default.
func (c *Config) GetStreamExt() string {
	if c.StreamExt == nil {
		return DefaultStreamExt
	}
	return *c.StreamExt
}

// GetTrialStartColumn returns the trial start column or the default.
func (c *Config) GetTrialStartColumn() string {
	if c.TrialStartColumn == nil {
		return session.DefaultStartColumn
	}
	return *c.TrialStartColumn
}

// GetTrialStartPattern returns the trial start marker pattern or the default.
func (c *Config) GetTrialStartPattern() string {
	if c.TrialStartPattern == nil {
		return merge.DefaultTrialStartPattern
	}
	return *c.TrialStartPattern
}

// GetMetadataFields returns the metadata field set or the default.
func (c *Config) GetMetadataFields() session.FieldSet {
	if len(c.MetadataFields) == 0 {
		return session.DefaultFieldSet.Clone()
	}
	return session.FieldSet(c.MetadataFields).Clone()
}

// GetOutputSuffix returns the output name suffix or the default.
func (c *Config) GetOutputSuffix() string {
	if c.OutputSuffix == nil {
		return DefaultOutputSuffix
	}
	return *c.OutputSuffix
}

// GetWorkers returns how many sessions may run at once.
func (c *Config) GetWorkers() int {
	if c.Workers == nil {
		return DefaultWorkers
	}
	return *c.Workers
}

// GetContinueOnError reports whether a failed session should not abort the
// batch.
func (c *Config) GetContinueOnError() bool {
	if c.ContinueOnError == nil {
		return false
	}
	return *c.ContinueOnError
}

// GetReportPNG returns the report_png value or the default.
func (c *Config) GetReportPNG() bool {
	if c.ReportPNG == nil {
		return false
	}
	return *c.ReportPNG
}

// GetReportHTML returns the report_html value or the default.
func (c *Config) GetReportHTML() bool {
	if c.ReportHTML == nil {
		return false
	}
	return *c.ReportHTML
}

// GetManifest returns the manifest value or the default.
func (c *Config) GetManifest() bool {
	if c.Manifest == nil {
		return true
	}
	return *c.Manifest
}

// GetMaxAnchorResidual returns the residual warning threshold or the default.
func (c *Config) GetMaxAnchorResidual() float64 {
	if c.MaxAnchorResidual == nil {
		return DefaultMaxAnchorResidual
	}
	return *c.MaxAnchorResidual
}

// SetWorkers overrides the worker count, e.g. from a command-line flag.
func (c *Config) SetWorkers(n int) {
	c.Workers = &n
}
