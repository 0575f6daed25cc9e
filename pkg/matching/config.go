package matching

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ErrZeroWeights is returned when weights cannot be normalized.
var ErrZeroWeights = errors.New("weights sum to zero")

// Weights are the relative importance of each scoring factor. They are
// conventionally expected to sum to 1.0 but any non-negative values are
// accepted.
type Weights struct {
	Days           float64 `json:"dias" mapstructure:"dias" validate:"gte=0"`
	Diversity      float64 `json:"diversidad" mapstructure:"diversidad" validate:"gte=0"`
	OperationCount float64 `json:"operaciones" mapstructure:"operaciones" validate:"gte=0"`
	Pattern        float64 `json:"patron" mapstructure:"patron" validate:"gte=0"`
}

// Sum returns the total of all weights.
func (w Weights) Sum() float64 {
	return w.Days + w.Diversity + w.OperationCount + w.Pattern
}

// Normalized rescales the weights to sum to 1.0.
func (w Weights) Normalized() (Weights, error) {
	sum := w.Sum()
	if sum <= 0 {
		return w, ErrZeroWeights
	}
	return Weights{
		Days:           w.Days / sum,
		Diversity:      w.Diversity / sum,
		OperationCount: w.OperationCount / sum,
		Pattern:        w.Pattern / sum,
	}, nil
}

// ScoringConfiguration holds the thresholds and weights sent to the
// service for a calculation. The same values are reused for local
// filtering of the snapshot they produced.
type ScoringConfiguration struct {
	MinimumDays   int     `json:"dias_minimos" mapstructure:"dias_minimos" validate:"gte=0"`
	MaximumRisk   float64 `json:"riesgo_maximo" mapstructure:"riesgo_maximo" validate:"gte=0,lte=100"`
	MinimumAmount float64 `json:"monto_minimo" mapstructure:"monto_minimo" validate:"gte=0"`
	MaximumAmount float64 `json:"monto_maximo" mapstructure:"monto_maximo" validate:"gte=0"`
	Weights       Weights `json:"ponderaciones" mapstructure:"ponderaciones"`
}

// DefaultConfiguration mirrors the service defaults: one day between
// operations, risk up to 50 and the 0.4/0.3/0.3 risk weighting.
func DefaultConfiguration() ScoringConfiguration {
	return ScoringConfiguration{
		MinimumDays:   1,
		MaximumRisk:   50,
		MinimumAmount: 0,
		MaximumAmount: 1000,
		Weights: Weights{
			Days:           0.4,
			Diversity:      0.3,
			OperationCount: 0.3,
			Pattern:        0,
		},
	}
}

// Validate checks field ranges. A zero MaximumAmount means no upper bound.
func (c ScoringConfiguration) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid scoring configuration: %w", err)
	}
	if c.MaximumAmount > 0 && c.MaximumAmount < c.MinimumAmount {
		return fmt.Errorf("invalid scoring configuration: monto_maximo %.2f is below monto_minimo %.2f", c.MaximumAmount, c.MinimumAmount)
	}
	return nil
}

// CalculationRequest is the body of the calculation endpoint.
type CalculationRequest struct {
	ScoringConfiguration
	AdvancedAlgorithm bool `json:"usar_algoritmo_avanzado"`
	Limit             int  `json:"limite,omitempty"`
}

// NewCalculationRequest wraps cfg for the calculation endpoint.
func NewCalculationRequest(cfg ScoringConfiguration, limit int) CalculationRequest {
	return CalculationRequest{
		ScoringConfiguration: cfg,
		AdvancedAlgorithm:    true,
		Limit:                limit,
	}
}

// Manager owns the current scoring configuration.
type Manager struct {
	mu        sync.RWMutex
	current   ScoringConfiguration
	normalize bool
}

// ManagerOption configures Manager.
type ManagerOption func(*Manager)

// WithWeightNormalization makes Replace rescale weights to sum to 1.0.
func WithWeightNormalization() ManagerOption {
	return func(m *Manager) {
		m.normalize = true
	}
}

// NewManager validates initial and returns a Manager holding it.
func NewManager(initial ScoringConfiguration, opts ...ManagerOption) (*Manager, error) {
	m := &Manager{}
	for _, opt := range opts {
		opt(m)
	}
	if err := m.Replace(initial); err != nil {
		return nil, err
	}
	return m, nil
}

// Get returns the current configuration.
func (m *Manager) Get() ScoringConfiguration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Replace overwrites the whole configuration. Fields are never merged with
// the previous value.
func (m *Manager) Replace(cfg ScoringConfiguration) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if m.normalize {
		w, err := cfg.Weights.Normalized()
		if err != nil {
			return fmt.Errorf("invalid scoring configuration: %w", err)
		}
		cfg.Weights = w
	}

	m.mu.Lock()
	m.current = cfg
	m.mu.Unlock()
	return nil
}
