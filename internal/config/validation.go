package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ValidationError represents a single configuration validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate performs hand-written range and presence checks.
func (c *Config) Validate() error {
	var errs ValidationErrors

	if c.WindowSeconds < 1 {
		errs = append(errs, ValidationError{"window_seconds", "must be at least 1"})
	}
	if c.CheckInterval < 1 {
		errs = append(errs, ValidationError{"check_interval", "must be at least 1"})
	}
	if c.ModifiedThreshold < 1 {
		errs = append(errs, ValidationError{"modified_threshold", "must be at least 1"})
	}
	if c.EntropyThreshold < 0 || c.EntropyThreshold > 8 {
		errs = append(errs, ValidationError{"entropy_threshold", "must be within [0, 8]"})
	}
	if c.HighEntropyCount < 0 {
		errs = append(errs, ValidationError{"high_entropy_count", "must not be negative"})
	}
	if c.SampleEntropyCount < 1 {
		errs = append(errs, ValidationError{"sample_entropy_count", "must be at least 1"})
	}
	if c.DetectionScoreThreshold < 0 || c.DetectionScoreThreshold > 100 {
		errs = append(errs, ValidationError{"detection_score_threshold", "must be within [0, 100]"})
	}
	if c.ProcessSuspicionScore < 0 {
		errs = append(errs, ValidationError{"process_suspicion_score", "must not be negative"})
	}
	if c.QuarantineDir == "" {
		errs = append(errs, ValidationError{"quarantine_dir", "is required"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

//go:embed config.schema.json
var configSchema []byte

// ValidateSchema round-trips c through JSON and validates it against the
// embedded JSON Schema. This is a second, independent validation pass,
// grounded on the schema-validate-instance pattern used elsewhere for
// wire-format validation, that catches shape errors (wrong JSON types
// surviving a hand-edited TOML file) that Validate's hand-written checks
// don't cover.
func (c *Config) ValidateSchema() error {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("config.schema.json", bytes.NewReader(configSchema)); err != nil {
		return fmt.Errorf("config: compile schema: %w", err)
	}
	schema, err := compiler.Compile("config.schema.json")
	if err != nil {
		return fmt.Errorf("config: compile schema: %w", err)
	}

	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal for schema check: %w", err)
	}

	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return fmt.Errorf("config: unmarshal for schema check: %w", err)
	}

	if err := schema.Validate(instance); err != nil {
		return fmt.Errorf("config: schema validation failed: %w", err)
	}
	return nil
}
