package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/asn-portal/internal/core/domain"
	"github.com/kirillkom/asn-portal/internal/core/ports"
)

type ChecklistUseCase struct {
	requirements []domain.Requirement
	repo         ports.ApplicantRepository
	metrics      ports.VerificationMetrics
	now          func() time.Time
}

func NewChecklistUseCase(
	requirements []domain.Requirement,
	repo ports.ApplicantRepository,
	metrics ports.VerificationMetrics,
) *ChecklistUseCase {
	return &ChecklistUseCase{
		requirements: requirements,
		repo:         repo,
		metrics:      metrics,
		now:          time.Now,
	}
}

func (uc *ChecklistUseCase) Requirements() []domain.Requirement {
	out := make([]domain.Requirement, len(uc.requirements))
	copy(out, uc.requirements)
	return out
}

func (uc *ChecklistUseCase) Evaluate(ctx context.Context, req ports.ChecklistRequest) (*domain.Checklist, error) {
	report, err := uc.EvaluateReport(ctx, req)
	if err != nil {
		return nil, err
	}
	return &report.Checklist, nil
}

// EvaluateReport is Evaluate plus the resolved applicant and formasi, for
// callers that render them next to the checks.
func (uc *ChecklistUseCase) EvaluateReport(ctx context.Context, req ports.ChecklistRequest) (*ports.ChecklistReport, error) {
	applicant, formasi, err := uc.resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	return &ports.ChecklistReport{
		Applicant: applicant,
		Formasi:   formasi,
		Checklist: uc.EvaluateFor(applicant, formasi, req.Documents),
	}, nil
}

// EvaluateFor scores the active requirements against one applicant.
func (uc *ChecklistUseCase) EvaluateFor(applicant *domain.Applicant, formasi *domain.Formasi, documents []domain.DocumentSummary) domain.Checklist {
	facts := BuildFacts(applicant, formasi, documents, uc.now())
	checklist := EvaluateRequirements(uc.requirements, facts)
	if uc.metrics != nil {
		uc.metrics.RecordChecklist(checklist.Overall)
	}
	return checklist
}

func (uc *ChecklistUseCase) resolve(ctx context.Context, req ports.ChecklistRequest) (*domain.Applicant, *domain.Formasi, error) {
	applicant := req.Applicant
	if applicant == nil {
		if strings.TrimSpace(req.ApplicantID) == "" {
			return nil, nil, domain.WrapError(domain.ErrInvalidInput, "resolve applicant", errors.New("applicant or applicantId is required"))
		}
		if uc.repo == nil {
			return nil, nil, domain.WrapError(domain.ErrInvalidInput, "resolve applicant", errors.New("applicant lookup is not configured"))
		}
		loaded, err := uc.repo.GetApplicant(ctx, req.ApplicantID)
		if err != nil {
			return nil, nil, fmt.Errorf("load applicant: %w", err)
		}
		applicant = loaded
	}

	formasi := req.Formasi
	if formasi == nil && strings.TrimSpace(req.FormasiID) != "" {
		if uc.repo == nil {
			return nil, nil, domain.WrapError(domain.ErrInvalidInput, "resolve formasi", errors.New("formasi lookup is not configured"))
		}
		loaded, err := uc.repo.GetFormasi(ctx, req.FormasiID)
		if err != nil {
			return nil, nil, fmt.Errorf("load formasi: %w", err)
		}
		formasi = loaded
	}

	applicantCopy := *applicant
	applicant = &applicantCopy
	if formasi != nil {
		formasiCopy := *formasi
		formasi = &formasiCopy
	}
	if uc.repo != nil {
		uc.resolveProvinceNames(ctx, applicant, formasi)
	}
	return applicant, formasi, nil
}

// resolveProvinceNames replaces province ids with names. Lookup failures
// leave the raw values in place.
func (uc *ChecklistUseCase) resolveProvinceNames(ctx context.Context, applicant *domain.Applicant, formasi *domain.Formasi) {
	provinces, err := uc.repo.ListProvinces(ctx)
	if err != nil || len(provinces) == 0 {
		return
	}
	byID := make(map[string]string, len(provinces))
	for _, p := range provinces {
		byID[p.ID] = p.Name
	}
	if name, ok := byID[applicant.DomicileProvince]; ok {
		applicant.DomicileProvince = name
	}
	if formasi != nil {
		if name, ok := byID[formasi.Province]; ok {
			formasi.Province = name
		}
	}
}

// BuildFacts flattens applicant, formasi and document data into rule facts.
func BuildFacts(applicant *domain.Applicant, formasi *domain.Formasi, documents []domain.DocumentSummary, now time.Time) domain.Facts {
	facts := domain.Facts{}
	if applicant != nil {
		facts.Set("applicant.full_name", applicant.FullName)
		facts.Set("applicant.nik", applicant.NIK)
		facts.Set("applicant.birth_date", applicant.BirthDate)
		facts.Set("applicant.education_level", strings.ToUpper(strings.TrimSpace(applicant.EducationLevel)))
		facts.Set("applicant.major", applicant.Major)
		facts.Set("applicant.domicile", applicant.DomicileProvince)
		if age, ok := ageAt(applicant.BirthDate, now); ok {
			facts.Set("applicant.age", strconv.Itoa(age))
		}
	}
	if formasi != nil {
		facts.Set("formasi.title", formasi.Title)
		levels := make([]string, 0, len(formasi.EducationLevels))
		for _, level := range formasi.EducationLevels {
			levels = append(levels, strings.ToUpper(strings.TrimSpace(level)))
		}
		facts.Set("formasi.education_levels", levels...)
		facts.Set("formasi.majors", formasi.Majors...)
		if formasi.MinAge > 0 {
			facts.Set("formasi.min_age", strconv.Itoa(formasi.MinAge))
		}
		if formasi.MaxAge > 0 {
			facts.Set("formasi.max_age", strconv.Itoa(formasi.MaxAge))
		}
		facts.Set("formasi.province", formasi.Province)
	}
	for _, doc := range documents {
		prefix := "document." + string(doc.Type) + "."
		facts.Set(prefix+"present", "true")
		facts.Set(prefix+"status", string(doc.Status))
		facts.Set(prefix+"completeness", strconv.FormatFloat(doc.Completeness, 'f', 4, 64))
		for key, value := range doc.Fields {
			facts.Set(prefix+key, value)
		}
	}
	return facts
}

func ageAt(birthDate string, now time.Time) (int, bool) {
	birth, err := time.Parse("2006-01-02", strings.TrimSpace(birthDate))
	if err != nil || birth.After(now) {
		return 0, false
	}
	age := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		age--
	}
	return age, true
}

// EvaluateRequirements runs every requirement in order and aggregates:
// any failed check fails the list, otherwise any warning warns it.
func EvaluateRequirements(requirements []domain.Requirement, facts domain.Facts) domain.Checklist {
	checks := make([]domain.RequirementCheck, 0, len(requirements))
	for _, req := range requirements {
		checks = append(checks, evaluateRequirement(req, facts))
	}
	return SummarizeChecks(checks)
}

func SummarizeChecks(checks []domain.RequirementCheck) domain.Checklist {
	checklist := domain.Checklist{
		Checks:      checks,
		Overall:     domain.CheckPassed,
		TotalChecks: len(checks),
	}
	if checklist.Checks == nil {
		checklist.Checks = []domain.RequirementCheck{}
	}
	for _, check := range checks {
		switch check.Status {
		case domain.CheckPassed:
			checklist.Score++
		case domain.CheckFailed:
			checklist.Overall = domain.CheckFailed
		case domain.CheckWarning:
			if checklist.Overall != domain.CheckFailed {
				checklist.Overall = domain.CheckWarning
			}
		}
	}
	return checklist
}

type outcome struct {
	status     domain.CheckStatus
	detail     string
	similarity *float64
	// unset marks a criterion that is not configured for this evaluation.
	unset bool
}

func evaluateRequirement(req domain.Requirement, facts domain.Facts) domain.RequirementCheck {
	var out outcome
	switch rule := req.Rule.(type) {
	case domain.ExactRule:
		out = evaluateExact(rule, facts)
	case domain.SimilarityRule:
		out = evaluateSimilarity(rule, facts)
	case domain.RangeRule:
		out = evaluateRange(rule, facts)
	case domain.PresenceRule:
		out = evaluatePresence(rule, facts)
	default:
		out = outcome{status: domain.CheckFailed, detail: "unsupported rule"}
	}

	if out.unset {
		if req.Optional {
			out = outcome{status: domain.CheckPassed, detail: "no restriction configured"}
		} else {
			out.status = domain.CheckWarning
		}
	}

	detail := out.detail
	if req.Detail != "" {
		detail = req.Detail + ": " + out.detail
	}
	return domain.RequirementCheck{
		ID:         req.ID,
		Label:      req.Label,
		Detail:     detail,
		Category:   req.Category,
		Status:     out.status,
		Similarity: out.similarity,
	}
}

func expectedValues(literal []string, field string, facts domain.Facts) []string {
	if len(literal) > 0 {
		return literal
	}
	if field == "" {
		return nil
	}
	return facts.Values(field)
}

func evaluateExact(rule domain.ExactRule, facts domain.Facts) outcome {
	expected := expectedValues(rule.Expected, rule.ExpectedField, facts)
	if len(expected) == 0 {
		return outcome{detail: "criterion not configured", unset: true}
	}
	actual, ok := facts.First(rule.Field)
	if !ok {
		return outcome{status: domain.CheckFailed, detail: rule.Field + " not provided"}
	}
	for _, want := range expected {
		if equalValues(actual, want, rule.CaseSensitive) {
			return outcome{status: domain.CheckPassed, detail: fmt.Sprintf("%s matches %s", actual, want)}
		}
	}
	for _, near := range rule.WarnOn {
		if equalValues(actual, near, rule.CaseSensitive) {
			return outcome{status: domain.CheckWarning, detail: fmt.Sprintf("%s needs manual confirmation", actual)}
		}
	}
	return outcome{status: domain.CheckFailed, detail: fmt.Sprintf("%s not in [%s]", actual, strings.Join(expected, ", "))}
}

func equalValues(a, b string, caseSensitive bool) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if caseSensitive {
		return a == b
	}
	return strings.EqualFold(a, b)
}

func evaluateSimilarity(rule domain.SimilarityRule, facts domain.Facts) outcome {
	expected := expectedValues(rule.Expected, rule.ExpectedField, facts)
	if len(expected) == 0 {
		return outcome{detail: "criterion not configured", unset: true}
	}
	actual, ok := facts.First(rule.Field)
	if !ok {
		return outcome{status: domain.CheckFailed, detail: rule.Field + " not provided"}
	}

	best, bestValue := 0.0, expected[0]
	for _, want := range expected {
		if score := Similarity(actual, want); score > best {
			best, bestValue = score, want
		}
	}
	score := best
	out := outcome{similarity: &score}
	switch {
	case best >= rule.PassAt:
		out.status = domain.CheckPassed
	case best >= rule.WarnAt:
		out.status = domain.CheckWarning
	default:
		out.status = domain.CheckFailed
	}
	out.detail = fmt.Sprintf("%q vs %q: %.0f%% similar", actual, bestValue, best)
	return out
}

func evaluateRange(rule domain.RangeRule, facts domain.Facts) outcome {
	minBound, hasMin := rangeBound(rule.Min, rule.MinField, facts)
	maxBound, hasMax := rangeBound(rule.Max, rule.MaxField, facts)
	if !hasMin && !hasMax {
		return outcome{detail: "criterion not configured", unset: true}
	}
	raw, ok := facts.First(rule.Field)
	if !ok {
		return outcome{status: domain.CheckFailed, detail: rule.Field + " not provided"}
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return outcome{status: domain.CheckFailed, detail: fmt.Sprintf("%s is not numeric", raw)}
	}

	bounds := describeBounds(minBound, hasMin, maxBound, hasMax)
	if (hasMin && value < minBound) || (hasMax && value > maxBound) {
		return outcome{status: domain.CheckFailed, detail: fmt.Sprintf("%s outside %s", raw, bounds)}
	}
	return outcome{status: domain.CheckPassed, detail: fmt.Sprintf("%s within %s", raw, bounds)}
}

func rangeBound(literal *float64, field string, facts domain.Facts) (float64, bool) {
	if literal != nil {
		return *literal, true
	}
	if field == "" {
		return 0, false
	}
	raw, ok := facts.First(field)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func describeBounds(minBound float64, hasMin bool, maxBound float64, hasMax bool) string {
	format := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	switch {
	case hasMin && hasMax:
		return "[" + format(minBound) + ", " + format(maxBound) + "]"
	case hasMin:
		return ">= " + format(minBound)
	default:
		return "<= " + format(maxBound)
	}
}

func evaluatePresence(rule domain.PresenceRule, facts domain.Facts) outcome {
	value, ok := facts.First(rule.Field)
	if !ok || strings.EqualFold(strings.TrimSpace(value), "false") {
		return outcome{status: domain.CheckFailed, detail: rule.Field + " missing"}
	}
	return outcome{status: domain.CheckPassed, detail: rule.Field + " present"}
}
