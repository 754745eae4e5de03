package scoring

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"slices"
	"strconv"

	"gopkg.in/yaml.v3"

	"casework/internal/casefile"
)

//go:embed default_model.yaml
var defaultModelYAML []byte

// Term is one feature's contribution to the logit.
//
// Numeric features contribute Weight*(x-Center)/Scale. Categorical features
// list a contribution per category code in Levels; unlisted codes add zero.
// MissingPenalty is added instead when the feature was imputed.
type Term struct {
	Feature        string             `yaml:"feature"`
	Weight         float64            `yaml:"weight"`
	Center         float64            `yaml:"center"`
	Scale          float64            `yaml:"scale"`
	Levels         map[string]float64 `yaml:"levels,omitempty"`
	MissingPenalty float64            `yaml:"missing_penalty"`
}

// LogisticModel is a local linear classifier loaded from YAML.
type LogisticModel struct {
	Name      string  `yaml:"name"`
	Version   string  `yaml:"version"`
	Intercept float64 `yaml:"intercept"`
	Threshold float64 `yaml:"threshold"`
	Terms     []Term  `yaml:"terms"`
}

// ParseModel decodes and checks a model definition.
func ParseModel(data []byte) (*LogisticModel, error) {
	var m LogisticModel
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse model: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadModel reads a model definition from path.
func LoadModel(path string) (*LogisticModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	return ParseModel(data)
}

// DefaultModel returns the model compiled into the binary.
func DefaultModel() *LogisticModel {
	m, err := ParseModel(defaultModelYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded model is invalid: %v", err))
	}
	return m
}

func (m *LogisticModel) validate() error {
	var errs []error
	if m.Threshold <= 0 || m.Threshold >= 1 {
		errs = append(errs, fmt.Errorf("model threshold %.2f outside (0,1)", m.Threshold))
	}
	if len(m.Terms) == 0 {
		errs = append(errs, errors.New("model has no terms"))
	}
	seen := make(map[string]bool, len(m.Terms))
	for i, t := range m.Terms {
		if t.Feature == "" {
			errs = append(errs, fmt.Errorf("term %d has no feature", i))
		}
		if seen[t.Feature] {
			errs = append(errs, fmt.Errorf("feature %s listed twice", t.Feature))
		}
		seen[t.Feature] = true
		if len(t.Levels) == 0 && t.Scale == 0 {
			errs = append(errs, fmt.Errorf("term %s needs a non-zero scale or levels", t.Feature))
		}
		for code := range t.Levels {
			if _, err := strconv.Atoi(code); err != nil {
				errs = append(errs, fmt.Errorf("term %s level %q is not a category code", t.Feature, code))
			}
		}
	}
	return errors.Join(errs...)
}

// Features returns the feature names the model reads, sorted.
func (m *LogisticModel) Features() []string {
	out := make([]string, 0, len(m.Terms))
	for _, t := range m.Terms {
		out = append(out, t.Feature)
	}
	slices.Sort(out)
	return out
}

// Predict implements Classifier. A feature the model needs but the vector
// lacks is a ScoringError, not a silent zero.
func (m *LogisticModel) Predict(_ context.Context, features casefile.Vector) (Prediction, error) {
	z := m.Intercept
	for _, t := range m.Terms {
		x, ok := features.Get(t.Feature)
		if !ok {
			return Prediction{}, &ScoringError{Model: m.Name, Err: fmt.Errorf("feature %s not in vector", t.Feature)}
		}
		if features.IsMissing(t.Feature) {
			z += t.MissingPenalty
			continue
		}
		if len(t.Levels) > 0 {
			z += t.Levels[strconv.Itoa(int(x))]
			continue
		}
		z += t.Weight * (x - t.Center) / t.Scale
	}
	p := 1 / (1 + math.Exp(-z))
	return Prediction{Probability: &p, Label: p >= m.Threshold}, nil
}
