package domain

import (
	"encoding/json"
	"strings"
)

type RuleKind string

const (
	RuleExact      RuleKind = "exact"
	RuleSimilarity RuleKind = "similarity"
	RuleRange      RuleKind = "range"
	RulePresence   RuleKind = "presence"
)

// Rule is a closed set of comparison rules. Only types in this package
// implement it.
type Rule interface {
	Kind() RuleKind
	isRule()
}

// ExactRule passes when the fact equals one of the expected values and
// warns when it equals one of WarnOn, e.g. a document routed to review.
type ExactRule struct {
	Field         string   `json:"field"`
	Expected      []string `json:"expected,omitempty"`
	ExpectedField string   `json:"expectedField,omitempty"`
	WarnOn        []string `json:"warnOn,omitempty"`
	CaseSensitive bool     `json:"caseSensitive,omitempty"`
}

// SimilarityRule scores the fact against the expected values on a 0-100
// scale. Scores at or above PassAt pass, at or above WarnAt warn.
type SimilarityRule struct {
	Field         string   `json:"field"`
	Expected      []string `json:"expected,omitempty"`
	ExpectedField string   `json:"expectedField,omitempty"`
	PassAt        float64  `json:"passAt"`
	WarnAt        float64  `json:"warnAt"`
}

// RangeRule passes when the numeric fact lies inside [Min, Max]. A bound
// may come from another fact; a missing bound is open.
type RangeRule struct {
	Field    string   `json:"field"`
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
	MinField string   `json:"minField,omitempty"`
	MaxField string   `json:"maxField,omitempty"`
}

// PresenceRule passes when the fact exists and is not "false".
type PresenceRule struct {
	Field string `json:"field"`
}

func (ExactRule) Kind() RuleKind      { return RuleExact }
func (SimilarityRule) Kind() RuleKind { return RuleSimilarity }
func (RangeRule) Kind() RuleKind      { return RuleRange }
func (PresenceRule) Kind() RuleKind   { return RulePresence }

func (ExactRule) isRule()      {}
func (SimilarityRule) isRule() {}
func (RangeRule) isRule()      {}
func (PresenceRule) isRule()   {}

type Requirement struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Detail   string `json:"detail,omitempty"`
	Category string `json:"category"`
	// Optional requirements pass when their criterion is not configured,
	// e.g. a formasi open to every province.
	Optional bool `json:"optional,omitempty"`
	Rule     Rule `json:"rule"`
}

type CheckStatus string

const (
	CheckPassed  CheckStatus = "passed"
	CheckWarning CheckStatus = "warning"
	CheckFailed  CheckStatus = "failed"
)

type RequirementCheck struct {
	ID         string      `json:"id"`
	Label      string      `json:"label"`
	Detail     string      `json:"detail"`
	Category   string      `json:"category"`
	Status     CheckStatus `json:"status"`
	Similarity *float64    `json:"similarity,omitempty"`
}

type Checklist struct {
	Checks      []RequirementCheck `json:"checks"`
	Overall     CheckStatus        `json:"overall"`
	Score       int                `json:"score"`
	TotalChecks int                `json:"totalChecks"`
}

// Facts holds the applicant, formasi and document values rules read.
// Keys are dotted paths such as "applicant.major".
type Facts map[string][]string

func (f Facts) Set(key string, values ...string) {
	kept := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			kept = append(kept, v)
		}
	}
	if len(kept) == 0 {
		delete(f, key)
		return
	}
	f[key] = kept
}

func (f Facts) First(key string) (string, bool) {
	values := f[key]
	if len(values) == 0 {
		return "", false
	}
	return values[0], true
}

func (f Facts) Values(key string) []string {
	return f[key]
}

// MarshalJSON tags the rule with its kind so readers can tell variants apart.
func (r Requirement) MarshalJSON() ([]byte, error) {
	type alias Requirement
	var kind RuleKind
	if r.Rule != nil {
		kind = r.Rule.Kind()
	}
	return json.Marshal(struct {
		alias
		Kind RuleKind `json:"kind"`
	}{alias: alias(r), Kind: kind})
}
