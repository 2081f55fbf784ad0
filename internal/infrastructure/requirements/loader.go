// Package requirements loads the declarative checklist rules.
package requirements

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/asn-portal/internal/core/domain"
)

//go:embed default_requirements.yaml
var defaultSet []byte

// Defaults fill similarity thresholds a rule leaves out.
type Defaults struct {
	SimilarityPass float64
	SimilarityWarn float64
}

// Source reads a requirement set from a YAML file, or the embedded
// default set when no path is configured.
type Source struct {
	path     string
	defaults Defaults
}

func NewSource(path string, defaults Defaults) *Source {
	if defaults.SimilarityPass <= 0 {
		defaults.SimilarityPass = 80
	}
	if defaults.SimilarityWarn <= 0 {
		defaults.SimilarityWarn = 60
	}
	return &Source{path: strings.TrimSpace(path), defaults: defaults}
}

func (s *Source) Load(_ context.Context) ([]domain.Requirement, error) {
	raw := defaultSet
	if s.path != "" {
		data, err := os.ReadFile(s.path)
		if err != nil {
			return nil, fmt.Errorf("read requirements file: %w", err)
		}
		raw = data
	}
	return Parse(raw, s.defaults)
}

type fileSet struct {
	Requirements []fileRequirement `yaml:"requirements"`
}

type fileRequirement struct {
	ID       string   `yaml:"id"`
	Label    string   `yaml:"label"`
	Detail   string   `yaml:"detail"`
	Category string   `yaml:"category"`
	Optional bool     `yaml:"optional"`
	Rule     fileRule `yaml:"rule"`
}

type fileRule struct {
	Kind          string   `yaml:"kind"`
	Field         string   `yaml:"field"`
	Expected      []string `yaml:"expected"`
	ExpectedField string   `yaml:"expectedField"`
	WarnOn        []string `yaml:"warnOn"`
	CaseSensitive bool     `yaml:"caseSensitive"`
	PassAt        *float64 `yaml:"passAt"`
	WarnAt        *float64 `yaml:"warnAt"`
	Min           *float64 `yaml:"min"`
	Max           *float64 `yaml:"max"`
	MinField      string   `yaml:"minField"`
	MaxField      string   `yaml:"maxField"`
}

// Parse decodes and validates a YAML requirement set.
func Parse(raw []byte, defaults Defaults) ([]domain.Requirement, error) {
	var set fileSet
	if err := yaml.Unmarshal(raw, &set); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse requirements", err)
	}
	if len(set.Requirements) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse requirements", errors.New("requirement set is empty"))
	}

	seen := make(map[string]bool, len(set.Requirements))
	out := make([]domain.Requirement, 0, len(set.Requirements))
	var errs []error
	for i, fr := range set.Requirements {
		id := strings.TrimSpace(fr.ID)
		switch {
		case id == "":
			errs = append(errs, fmt.Errorf("requirement #%d: id is required", i+1))
			continue
		case seen[id]:
			errs = append(errs, fmt.Errorf("requirement %s: duplicate id", id))
			continue
		}
		seen[id] = true

		rule, err := fr.Rule.toDomain(defaults)
		if err != nil {
			errs = append(errs, fmt.Errorf("requirement %s: %w", id, err))
			continue
		}
		label := fr.Label
		if label == "" {
			label = id
		}
		out = append(out, domain.Requirement{
			ID:       id,
			Label:    label,
			Detail:   fr.Detail,
			Category: fr.Category,
			Optional: fr.Optional,
			Rule:     rule,
		})
	}
	if len(errs) > 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse requirements", errors.Join(errs...))
	}
	return out, nil
}

func (r fileRule) toDomain(defaults Defaults) (domain.Rule, error) {
	if strings.TrimSpace(r.Field) == "" {
		return nil, errors.New("rule field is required")
	}
	switch domain.RuleKind(strings.ToLower(strings.TrimSpace(r.Kind))) {
	case domain.RuleExact:
		return domain.ExactRule{
			Field:         r.Field,
			Expected:      r.Expected,
			ExpectedField: r.ExpectedField,
			WarnOn:        r.WarnOn,
			CaseSensitive: r.CaseSensitive,
		}, nil
	case domain.RuleSimilarity:
		rule := domain.SimilarityRule{
			Field:         r.Field,
			Expected:      r.Expected,
			ExpectedField: r.ExpectedField,
			PassAt:        defaults.SimilarityPass,
			WarnAt:        defaults.SimilarityWarn,
		}
		if r.PassAt != nil {
			rule.PassAt = *r.PassAt
		}
		if r.WarnAt != nil {
			rule.WarnAt = *r.WarnAt
		}
		if rule.WarnAt > rule.PassAt || rule.PassAt > 100 || rule.WarnAt < 0 {
			return nil, fmt.Errorf("similarity thresholds must satisfy 0 <= warnAt <= passAt <= 100, got %v/%v", rule.WarnAt, rule.PassAt)
		}
		return rule, nil
	case domain.RuleRange:
		if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
			return nil, fmt.Errorf("range min %v exceeds max %v", *r.Min, *r.Max)
		}
		return domain.RangeRule{
			Field:    r.Field,
			Min:      r.Min,
			Max:      r.Max,
			MinField: r.MinField,
			MaxField: r.MaxField,
		}, nil
	case domain.RulePresence:
		return domain.PresenceRule{Field: r.Field}, nil
	default:
		return nil, fmt.Errorf("unknown rule kind %q", r.Kind)
	}
}
