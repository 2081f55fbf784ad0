package usecase

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/kirillkom/asn-portal/internal/core/domain"
)

const reasonInsufficientQuality = "insufficient extraction quality"

// VerdictPolicy holds the confidence bands used by ComposeVerdict.
type VerdictPolicy struct {
	Low  float64
	High float64
}

func DefaultVerdictPolicy() VerdictPolicy {
	return VerdictPolicy{Low: 0.6, High: 0.85}
}

func (p VerdictPolicy) normalize() VerdictPolicy {
	def := DefaultVerdictPolicy()
	out := p
	if out.Low <= 0 || out.Low > 1 {
		out.Low = def.Low
	}
	if out.High <= 0 || out.High > 1 {
		out.High = def.High
	}
	if out.High < out.Low {
		out.High = out.Low
	}
	return out
}

// ComposeVerdict turns the pipeline signals into a verdict. Anything that
// is neither clearly good nor clearly fraudulent goes to review, and a
// verdict built on a provider fallback is never approved.
func ComposeVerdict(
	policy VerdictPolicy,
	ocr domain.OcrResult,
	analysis domain.AnalysisResult,
	fraud domain.FraudResult,
	detection domain.ContentDetection,
) domain.Verdict {
	p := policy.normalize()
	completeness := analysis.Analysis.Completeness
	degraded := ocr.Degraded || detection.Degraded
	verdict := domain.Verdict{
		Reasons:  []string{},
		Score:    verdictScore(ocr.Confidence, completeness, fraud.Confidence),
		Degraded: degraded,
	}

	lowOCR := ocr.Confidence < p.Low
	lowCompleteness := completeness < p.Low
	confidentFraud := fraud.IsSuspicious && fraud.Confidence >= p.High
	fraudListed := false

	switch {
	// Nothing readable came out; indicators from so little text are not
	// enough to reject.
	case lowOCR && lowCompleteness:
		verdict.Status = domain.VerdictNeedReview
		verdict.Reasons = append(verdict.Reasons, qualityReasons(p, ocr.Confidence, completeness)...)
	case confidentFraud:
		verdict.Status = domain.VerdictRejected
		verdict.Reasons = append(verdict.Reasons, "fraud indicators: "+strings.Join(indicatorCategories(fraud), ", "))
		fraudListed = true
	case lowOCR || lowCompleteness:
		verdict.Status = domain.VerdictNeedReview
		verdict.Reasons = append(verdict.Reasons, qualityReasons(p, ocr.Confidence, completeness)...)
	case completeness >= p.High && ocr.Confidence >= p.High && !fraud.IsSuspicious && !degraded:
		verdict.Status = domain.VerdictApproved
		verdict.Reasons = append(verdict.Reasons, "extraction quality and completeness above threshold")
	default:
		verdict.Status = domain.VerdictNeedReview
		if fraud.IsSuspicious {
			verdict.Reasons = append(verdict.Reasons, "suspicious indicators below rejection confidence: "+strings.Join(indicatorCategories(fraud), ", "))
			fraudListed = true
		} else {
			verdict.Reasons = append(verdict.Reasons, "signals inconclusive")
		}
	}

	if ocr.Degraded {
		msg := "ocr provider unavailable"
		if ocr.Error != "" {
			msg += ": " + ocr.Error
		}
		verdict.Reasons = append(verdict.Reasons, msg)
	}
	if detection.Degraded {
		verdict.Reasons = append(verdict.Reasons, "content classifier unavailable")
	}
	if !fraudListed && len(fraud.FraudIndicators) > 0 {
		label := "quality notes: "
		if fraud.IsSuspicious {
			label = "fraud indicators: "
		}
		verdict.Reasons = append(verdict.Reasons, label+strings.Join(indicatorCategories(fraud), ", "))
	}
	return verdict
}

func qualityReasons(p VerdictPolicy, ocrConfidence, completeness float64) []string {
	out := []string{reasonInsufficientQuality}
	if ocrConfidence < p.Low {
		out = append(out, fmt.Sprintf("ocr confidence %.2f below %.2f", ocrConfidence, p.Low))
	}
	if completeness < p.Low {
		out = append(out, fmt.Sprintf("completeness %.2f below %.2f", completeness, p.Low))
	}
	return out
}

func verdictScore(ocrConfidence, completeness, fraudConfidence float64) float64 {
	raw := (clamp01(ocrConfidence) + clamp01(completeness) + (1 - clamp01(fraudConfidence))) / 3
	return round(raw, 4)
}

func indicatorCategories(fraud domain.FraudResult) []string {
	out := make([]string, 0, len(fraud.FraudIndicators))
	for category := range fraud.FraudIndicators {
		out = append(out, category)
	}
	sort.Strings(out)
	return out
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func round(v float64, places int) float64 {
	pow := math.Pow(10, float64(places))
	return math.Round(v*pow) / pow
}
