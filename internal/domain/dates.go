package domain

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/araddon/dateparse"
)

var foundingYearRe = regexp.MustCompile(`\b(1[89]\d{2}|20\d{2})\b`)

// ExtractFoundingYear recovers a founding year from free-form text such as
// "2015", "March 2015" or "2015-06-01". Returns false when the text carries
// no recognizable year.
func ExtractFoundingYear(text string) (int, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, false
	}

	if year, err := strconv.Atoi(text); err == nil {
		if year >= 1000 && year <= 9999 {
			return year, true
		}
		return 0, false
	}

	if m := foundingYearRe.FindString(text); m != "" {
		year, err := strconv.Atoi(m)
		if err == nil {
			return year, true
		}
	}

	t, err := dateparse.ParseAny(text)
	if err != nil {
		return 0, false
	}
	return t.Year(), true
}
