package usecase

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var leadingTitlePattern = regexp.MustCompile(`^(?:(?:prof|dr|drs|dra|ir|h|hj|r)\.\s*)+`)

// normalizeForMatch lowercases, strips diacritics, trailing academic
// degrees ("Budi, S.Kom.") and punctuation.
func normalizeForMatch(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(strings.TrimSpace(folded))
	if idx := strings.Index(folded, ","); idx > 0 {
		folded = folded[:idx]
	}
	folded = leadingTitlePattern.ReplaceAllString(folded, "")

	var b strings.Builder
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Similarity scores actual against expected on a 0-100 scale. An actual
// value that contains the whole expected value word for word ("S1 Teknik
// Informatika" for "Teknik Informatika") scores 100; the reverse does not,
// so a fragment never satisfies a longer requirement. Otherwise the
// normalized Levenshtein ratio is used.
func Similarity(actual, expected string) float64 {
	na, ne := normalizeForMatch(actual), normalizeForMatch(expected)
	if na == "" || ne == "" {
		return 0
	}
	if na == ne || containsWords(na, ne) {
		return 100
	}

	ra, re := []rune(na), []rune(ne)
	longest := max(len(ra), len(re))
	ratio := 1 - float64(levenshtein(ra, re))/float64(longest)
	return round(clamp01(ratio)*100, 2)
}

func containsWords(haystack, needle string) bool {
	return strings.Contains(" "+haystack+" ", " "+needle+" ")
}

func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
