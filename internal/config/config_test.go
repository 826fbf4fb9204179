package config

import (
	"strings"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := Default()
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Fatalf("Default().Validate() = %v, want no errors", errs)
	}
}

func TestDefaultValues(t *testing.T) {
	cfg := Default()

	if cfg.Debate.TargetConsensus != 75 {
		t.Errorf("TargetConsensus = %d, want 75", cfg.Debate.TargetConsensus)
	}
	if cfg.Complexity.Threshold != 40 {
		t.Errorf("Complexity.Threshold = %d, want 40", cfg.Complexity.Threshold)
	}
	if !cfg.Cache.Enabled || cfg.Cache.TTLMinutes != 5 {
		t.Errorf("Cache = %+v, want enabled with 5 minute TTL", cfg.Cache)
	}

	sum := cfg.Consensus.Weights.Stance + cfg.Consensus.Weights.Concerns +
		cfg.Consensus.Weights.RiskFlags + cfg.Consensus.Weights.Confidence
	if sum < 0.999 || sum > 1.001 {
		t.Errorf("default weights sum to %v, want 1.0", sum)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.Debate.TargetConsensus = 150
	cfg.Complexity.SimilarityFloor = 2.0
	cfg.Logging.Level = "loud"
	cfg.Providers.CLI.Command = ""

	errs := cfg.Validate()
	if len(errs) != 4 {
		t.Fatalf("Validate() returned %d errors, want 4: %v", len(errs), errs)
	}

	fields := make(map[string]bool)
	for _, e := range errs {
		fields[e.Field] = true
	}
	for _, want := range []string{
		"debate.target_consensus",
		"complexity.similarity_floor",
		"logging.level",
		"providers.cli.command",
	} {
		if !fields[want] {
			t.Errorf("Validate() missing error for %s", want)
		}
	}
}

func TestValidateRejectsBadWeights(t *testing.T) {
	cfg := Default()
	cfg.Consensus.Weights.Stance = 0.9

	errs := cfg.Validate()
	if len(errs) != 1 || errs[0].Field != "consensus.weights" {
		t.Fatalf("Validate() = %v, want one consensus.weights error", errs)
	}
}

func TestValidationErrorsMessage(t *testing.T) {
	errs := ValidationErrors{
		{Field: "a", Value: 1, Message: "too small"},
		{Field: "b", Value: "x", Message: "unknown"},
	}
	msg := errs.Error()
	if !strings.Contains(msg, "2 validation errors") {
		t.Errorf("Error() = %q, want count prefix", msg)
	}
	if !strings.Contains(msg, "a: too small (got: 1)") {
		t.Errorf("Error() = %q, want first error detail", msg)
	}
}

func TestResolveDataDirExpandsHome(t *testing.T) {
	p := PathsConfig{DataDir: "/var/lib/parley"}
	if got := p.ResolveDataDir(); got != "/var/lib/parley" {
		t.Errorf("ResolveDataDir() = %q, want absolute path unchanged", got)
	}

	t.Setenv("XDG_DATA_HOME", "/tmp/xdg-data")
	empty := PathsConfig{}
	if got := empty.ResolveDataDir(); got != "/tmp/xdg-data/parley" {
		t.Errorf("ResolveDataDir() = %q, want XDG fallback", got)
	}
}
