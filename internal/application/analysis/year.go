package analysis

import (
	"regexp"
	"strings"

	domain "github.com/bryanwahyu/pyq-analyzer/internal/domain/questions"
)

var (
	rxFourDigitYear = regexp.MustCompile(`^(19|20)\d{2}$`)
	// "2021", "2021-22", "2021/22": only the leading four digits count
	rxTextYear = regexp.MustCompile(`\b(20\d{2})(?:\s*[-/]\s*\d{2,4})?\b`)
)

// ResolveYear picks a year for candidate i: its own year, else the year of
// the first candidate that has one, else the first 20xx in the raw text,
// else UnknownYear.
func ResolveYear(cands []domain.Candidate, i int, raw string) string {
	if i >= 0 && i < len(cands) {
		if y := normalizeYear(cands[i].Year); y != "" {
			return y
		}
	}
	for _, c := range cands {
		if y := normalizeYear(c.Year); y != "" {
			return y
		}
	}
	if y := YearFromText(raw); y != "" {
		return y
	}
	return domain.UnknownYear
}

// YearFromText returns the first 20xx year found in text or "".
func YearFromText(text string) string {
	if m := rxTextYear.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

func normalizeYear(y string) string {
	y = strings.TrimSpace(y)
	if y == "" || strings.EqualFold(y, domain.UnknownYear) {
		return ""
	}
	if rxFourDigitYear.MatchString(y) {
		return y
	}
	// "2021-22" dari model
	return YearFromText(y)
}
