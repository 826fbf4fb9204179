package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "debate.target_consensus")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation
// errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	if c.Debate.TargetConsensus < 0 || c.Debate.TargetConsensus > 100 {
		errors = append(errors, ValidationError{
			Field:   "debate.target_consensus",
			Value:   c.Debate.TargetConsensus,
			Message: "must be between 0 and 100",
		})
	}
	if c.Debate.MaxRounds < 1 {
		errors = append(errors, ValidationError{
			Field:   "debate.max_rounds",
			Value:   c.Debate.MaxRounds,
			Message: "must be at least 1",
		})
	}
	if c.Debate.ProviderTimeoutSeconds < 1 {
		errors = append(errors, ValidationError{
			Field:   "debate.provider_timeout_seconds",
			Value:   c.Debate.ProviderTimeoutSeconds,
			Message: "must be at least 1",
		})
	}

	if err := c.Consensus.Weights.Validate(); err != nil {
		errors = append(errors, ValidationError{
			Field:   "consensus.weights",
			Value:   c.Consensus.Weights,
			Message: err.Error(),
		})
	}

	if c.Complexity.Threshold < 0 || c.Complexity.Threshold > 100 {
		errors = append(errors, ValidationError{
			Field:   "complexity.threshold",
			Value:   c.Complexity.Threshold,
			Message: "must be between 0 and 100",
		})
	}
	if c.Complexity.SimilarityFloor < 0 || c.Complexity.SimilarityFloor > 1 {
		errors = append(errors, ValidationError{
			Field:   "complexity.similarity_floor",
			Value:   c.Complexity.SimilarityFloor,
			Message: "must be between 0 and 1",
		})
	}

	if c.Cache.TTLMinutes < 0 {
		errors = append(errors, ValidationError{
			Field:   "cache.ttl_minutes",
			Value:   c.Cache.TTLMinutes,
			Message: "cannot be negative",
		})
	}

	if c.Providers.CLI.Command == "" {
		errors = append(errors, ValidationError{
			Field:   "providers.cli.command",
			Value:   c.Providers.CLI.Command,
			Message: "cannot be empty",
		})
	}
	if c.Providers.Bridge.Endpoint == "" {
		errors = append(errors, ValidationError{
			Field:   "providers.bridge.endpoint",
			Value:   c.Providers.Bridge.Endpoint,
			Message: "cannot be empty",
		})
	}

	if !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}
