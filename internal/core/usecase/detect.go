package usecase

import (
	"strings"

	"github.com/kirillkom/asn-portal/internal/core/domain"
)

// DetectionPolicy configures content-based type detection.
type DetectionPolicy struct {
	MinConfidence float64
}

func DefaultDetectionPolicy() DetectionPolicy {
	return DetectionPolicy{MinConfidence: 0.3}
}

// DetectContent guesses the document type from signature keywords. The
// confidence is the share of the best profile's keywords found in the text.
func DetectContent(text string, policy DetectionPolicy) domain.ContentDetection {
	detection := domain.ContentDetection{Source: "keywords"}
	upper := strings.ToUpper(text)
	if strings.TrimSpace(upper) == "" {
		return detection
	}

	var (
		best      domain.DocumentType
		bestScore float64
		tie       bool
	)
	for _, profile := range domain.Profiles() {
		if len(profile.Keywords) == 0 {
			continue
		}
		hits := 0
		for _, keyword := range profile.Keywords {
			if strings.Contains(upper, keyword) {
				hits++
			}
		}
		score := float64(hits) / float64(len(profile.Keywords))
		switch {
		case score > bestScore:
			best, bestScore, tie = profile.Type, score, false
		case score == bestScore && score > 0:
			tie = true
		}
	}

	detection.Confidence = round(bestScore, 4)
	if tie || bestScore < policy.MinConfidence {
		return detection
	}
	detected := best
	detection.DetectedType = &detected
	return detection
}

func documentTypes() []domain.DocumentType {
	profiles := domain.Profiles()
	out := make([]domain.DocumentType, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, p.Type)
	}
	return out
}
