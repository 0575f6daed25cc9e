package matching

import (
	"errors"
	"math"
	"testing"
)

func TestDefaultConfigurationIsValid(t *testing.T) {
	if err := DefaultConfiguration().Validate(); err != nil {
		t.Fatalf("default configuration rejected: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ScoringConfiguration)
	}{
		{"negative weight", func(c *ScoringConfiguration) { c.Weights.Pattern = -0.1 }},
		{"risk above 100", func(c *ScoringConfiguration) { c.MaximumRisk = 101 }},
		{"negative days", func(c *ScoringConfiguration) { c.MinimumDays = -1 }},
		{"max below min", func(c *ScoringConfiguration) { c.MinimumAmount = 500; c.MaximumAmount = 100 }},
	}
	for _, tt := range tests {
		cfg := DefaultConfiguration()
		tt.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", tt.name)
		}
	}
}

func TestValidateAllowsUnboundedMaximum(t *testing.T) {
	cfg := DefaultConfiguration()
	cfg.MinimumAmount = 300
	cfg.MaximumAmount = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("zero maximum amount should be accepted: %v", err)
	}
}

func TestManagerReplaceOverwritesEverything(t *testing.T) {
	m, err := NewManager(DefaultConfiguration())
	if err != nil {
		t.Fatal(err)
	}

	next := ScoringConfiguration{MinimumDays: 5, MaximumRisk: 20, Weights: Weights{Days: 1}}
	if err := m.Replace(next); err != nil {
		t.Fatal(err)
	}
	if got := m.Get(); got != next {
		t.Fatalf("want %+v, got %+v", next, got)
	}
}

func TestManagerRejectsInvalidAndKeepsCurrent(t *testing.T) {
	m, err := NewManager(DefaultConfiguration())
	if err != nil {
		t.Fatal(err)
	}
	bad := DefaultConfiguration()
	bad.Weights.Days = -1
	if err := m.Replace(bad); err == nil {
		t.Fatal("expected error for negative weight")
	}
	if m.Get() != DefaultConfiguration() {
		t.Fatalf("configuration changed after rejected replace: %+v", m.Get())
	}
}

func TestManagerNormalizesWeights(t *testing.T) {
	cfg := DefaultConfiguration()
	cfg.Weights = Weights{Days: 2, Diversity: 1, OperationCount: 1}

	m, err := NewManager(cfg, WithWeightNormalization())
	if err != nil {
		t.Fatal(err)
	}
	w := m.Get().Weights
	if math.Abs(w.Sum()-1) > 1e-9 || math.Abs(w.Days-0.5) > 1e-9 {
		t.Fatalf("weights not normalized: %+v", w)
	}

	cfg.Weights = Weights{}
	if err := m.Replace(cfg); !errors.Is(err, ErrZeroWeights) {
		t.Fatalf("expected ErrZeroWeights, got %v", err)
	}
}

func TestCalculationRequestFlattensConfig(t *testing.T) {
	req := NewCalculationRequest(DefaultConfiguration(), 0)
	if !req.AdvancedAlgorithm || req.MaximumRisk != 50 {
		t.Fatalf("unexpected request: %+v", req)
	}
}
