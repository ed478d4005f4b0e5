// Package ticketid formats and recognises human-readable ticket identifiers
// of the form PREFIX-YEAR-NNN.
package ticketid

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Format renders the identifier for the given ordinal. The ordinal is padded
// to at least three digits and grows as needed.
func Format(prefix string, year, ordinal int) string {
	return fmt.Sprintf("%s-%04d-%03d", prefix, year, ordinal)
}

// YearPrefix returns the "PREFIX-YEAR-" stem shared by every identifier of a year.
func YearPrefix(prefix string, year int) string {
	return fmt.Sprintf("%s-%04d-", prefix, year)
}

// Pattern returns a regexp matching identifiers with the given prefix.
func Pattern(prefix string) *regexp.Regexp {
	return regexp.MustCompile(`^` + regexp.QuoteMeta(prefix) + `-\d{4}-\d{3,}$`)
}

// Parse splits an identifier into its prefix, year and ordinal.
func Parse(id string) (prefix string, year, ordinal int, err error) {
	parts := strings.Split(id, "-")
	if len(parts) != 3 || parts[0] == "" || len(parts[1]) != 4 || len(parts[2]) < 3 {
		return "", 0, 0, fmt.Errorf("malformed ticket id %q", id)
	}
	year, err = strconv.Atoi(parts[1])
	if err != nil {
		return "", 0, 0, fmt.Errorf("malformed ticket year %q: %w", id, err)
	}
	ordinal, err = strconv.Atoi(parts[2])
	if err != nil || ordinal <= 0 {
		return "", 0, 0, fmt.Errorf("malformed ticket ordinal %q", id)
	}
	return parts[0], year, ordinal, nil
}
