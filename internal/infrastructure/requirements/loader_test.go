package requirements

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kirillkom/asn-portal/internal/core/domain"
)

func TestLoadEmbeddedDefaultSet(t *testing.T) {
	reqs, err := NewSource("", Defaults{}).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(reqs) != 10 {
		t.Fatalf("expected 10 default requirements, got %d", len(reqs))
	}
	byID := map[string]domain.Requirement{}
	for _, r := range reqs {
		byID[r.ID] = r
	}
	major, ok := byID["major"].Rule.(domain.SimilarityRule)
	if !ok || major.PassAt != 80 || major.WarnAt != 60 {
		t.Fatalf("unexpected major rule %#v", byID["major"].Rule)
	}
	if !byID["domicile"].Optional {
		t.Fatalf("domicile must be optional")
	}
	if _, ok := byID["ktp_uploaded"].Rule.(domain.PresenceRule); !ok {
		t.Fatalf("unexpected ktp_uploaded rule %#v", byID["ktp_uploaded"].Rule)
	}
	verified, ok := byID["ktp_verified"].Rule.(domain.ExactRule)
	if !ok || len(verified.WarnOn) != 1 || verified.WarnOn[0] != string(domain.VerdictNeedReview) {
		t.Fatalf("ktp_verified must warn on review verdicts, got %#v", byID["ktp_verified"].Rule)
	}
}

func TestLoadFromFileOverridesThresholds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reqs.yaml")
	body := `
requirements:
  - id: gpa
    label: IPK minimal
    rule:
      kind: range
      field: document.transkrip.ipk
      min: 3.0
  - id: major
    rule:
      kind: similarity
      field: applicant.major
      expected: [Teknik Informatika]
      passAt: 90
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	reqs, err := NewSource(path, Defaults{SimilarityPass: 85, SimilarityWarn: 70}).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	gpa := reqs[0].Rule.(domain.RangeRule)
	if gpa.Min == nil || *gpa.Min != 3.0 || gpa.Max != nil {
		t.Fatalf("unexpected gpa rule %#v", gpa)
	}
	major := reqs[1].Rule.(domain.SimilarityRule)
	if major.PassAt != 90 || major.WarnAt != 70 || reqs[1].Label != "major" {
		t.Fatalf("unexpected major requirement %#v", reqs[1])
	}
}

func TestParseRejectsInvalidSets(t *testing.T) {
	cases := map[string]string{
		"empty":          `requirements: []`,
		"unknown kind":   "requirements:\n  - id: a\n    rule: {kind: regex, field: x}\n",
		"missing field":  "requirements:\n  - id: a\n    rule: {kind: presence}\n",
		"duplicate id":   "requirements:\n  - id: a\n    rule: {kind: presence, field: x}\n  - id: a\n    rule: {kind: presence, field: y}\n",
		"bad thresholds": "requirements:\n  - id: a\n    rule: {kind: similarity, field: x, passAt: 50, warnAt: 70}\n",
		"bad range":      "requirements:\n  - id: a\n    rule: {kind: range, field: x, min: 5, max: 1}\n",
		"not yaml":       "requirements: [",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(body), Defaults{SimilarityPass: 80, SimilarityWarn: 60})
			if !domain.IsKind(err, domain.ErrInvalidInput) {
				t.Fatalf("expected invalid input, got %v", err)
			}
		})
	}
}

func TestParseCollectsEveryError(t *testing.T) {
	body := "requirements:\n  - rule: {kind: presence, field: x}\n  - id: b\n    rule: {kind: nope, field: y}\n"
	_, err := Parse([]byte(body), Defaults{})
	if err == nil || !strings.Contains(err.Error(), "#1") || !strings.Contains(err.Error(), "requirement b") {
		t.Fatalf("expected both errors, got %v", err)
	}
}
