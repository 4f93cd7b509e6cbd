package dialect

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"

	"github.com/estado-transparente/transparencia-cli/internal/fault"
)

// NormalizeKey derives the natural key from a raw name: trim, Unicode case
// fold (diacritics preserved), whitespace runs collapsed to a single
// underscore, everything else that is not a letter, digit, or underscore
// stripped. "  Ministerio de Salud  " becomes "ministerio_de_salud".
func NormalizeKey(raw string) string {
	folded := cases.Fold().String(strings.TrimSpace(raw))

	var b strings.Builder
	b.Grow(len(folded))
	pendingSep := false
	for _, r := range folded {
		switch {
		case unicode.IsSpace(r):
			if b.Len() > 0 {
				pendingSep = true
			}
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			if pendingSep {
				b.WriteRune('_')
				pendingSep = false
			}
			b.WriteRune(r)
		default:
			// punctuation stripped
		}
	}
	return b.String()
}

// minYear and maxYear bound the plausible calendar range for a fiscal year
// extracted from a source identifier.
const (
	minYear = 1900
	maxYear = 2100
)

// YearFromSourceID extracts the first 4-digit token in the plausible
// calendar range from a source identifier, e.g. "dipres_ley_2024" -> 2024.
// Digit runs longer than four are not years.
func YearFromSourceID(sourceID string) (int, error) {
	runStart := -1
	for i := 0; i <= len(sourceID); i++ {
		isDigit := i < len(sourceID) && sourceID[i] >= '0' && sourceID[i] <= '9'
		if isDigit {
			if runStart < 0 {
				runStart = i
			}
			continue
		}
		if runStart >= 0 && i-runStart == 4 {
			year, err := strconv.Atoi(sourceID[runStart:i])
			if err == nil && year >= minYear && year <= maxYear {
				return year, nil
			}
		}
		runStart = -1
	}
	return 0, fault.Errorf(fault.KindAmbiguity,
		"dialect: no year found in source id %q", sourceID)
}

// coerceAmount parses a numeric-looking string using fixed rules for
// Chilean-style formatting: currency signs and spaces are removed; when
// both separators appear, dots are thousands and the comma is the decimal
// mark; a lone comma is a decimal mark; repeated separators are thousands.
func coerceAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return 0, fault.New(fault.KindRowSkipped, "dialect: empty amount")
	}

	commas := strings.Count(s, ",")
	dots := strings.Count(s, ".")
	switch {
	case commas > 0 && dots > 0:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case commas > 1:
		s = strings.ReplaceAll(s, ",", "")
	case commas == 1:
		s = strings.Replace(s, ",", ".", 1)
	case dots > 1:
		s = strings.ReplaceAll(s, ".", "")
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fault.Wrapf(fault.KindRowSkipped, err, "dialect: unparseable amount %q", s)
	}
	return v, nil
}

// stripBOM removes a leading UTF-8 byte-order mark if present.
func stripBOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xef && data[1] == 0xbb && data[2] == 0xbf {
		return data[3:]
	}
	return data
}
