package ollama

import (
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/asn-portal/internal/core/domain"
)

const maxPromptSnippet = 3000

func buildClassificationPrompt(text string, candidates []domain.DocumentType) string {
	snippet := truncateUTF8(text, maxPromptSnippet)

	names := make([]string, 0, len(candidates)+1)
	for _, c := range candidates {
		profile, ok := domain.Profile(c)
		if !ok {
			continue
		}
		names = append(names, string(c)+" ("+profile.Title+")")
	}
	names = append(names, "unknown")

	return `You classify Indonesian civil-service application documents from OCR text.
Allowed documentType values: ` + strings.Join(names, ", ") + `.
Return strict JSON object with keys:
documentType (string, one of the allowed values), confidence (number from 0 to 1).
No markdown, no extra keys.

OCR text:
` + snippet
}

// truncateUTF8 cuts s to at most limit bytes without splitting a rune.
func truncateUTF8(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
