package hsl

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"citybike-sync/models"
)

// dateRegexp captures a D.M.YYYY date anywhere in the text
var dateRegexp = regexp.MustCompile(`\d{1,2}\.\d{1,2}\.\d{4}`)

const dateLayout = "2.1.2006"

// ParseDate extracts the rental's calendar date, e.g. "ti 5.3.2024 klo 17.02" → 2024-03-05.
func ParseDate(text string, loc *time.Location) (time.Time, error) {
	match := dateRegexp.FindString(text)
	if match == "" {
		return time.Time{}, fmt.Errorf("%w: no D.M.YYYY date in %q", models.ErrStructure, text)
	}
	d, err := time.ParseInLocation(dateLayout, match, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", models.ErrStructure, err)
	}
	return d, nil
}

// ParseDurationMinutes parses texts like "12 min".
func ParseDurationMinutes(text string) (int, error) {
	cleaned := strings.TrimSpace(strings.Replace(normaliseSpaces(text), " min", "", 1))
	if cleaned == "" {
		return 0, fmt.Errorf("%w: empty duration", models.ErrStructure)
	}
	n, err := strconv.Atoi(cleaned)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: bad duration %q", models.ErrStructure, text)
	}
	return n, nil
}

// ParseDistanceKilometers parses texts like "2,4 km" using a decimal comma.
func ParseDistanceKilometers(text string) (float64, error) {
	cleaned := strings.Replace(normaliseSpaces(text), ",", ".", 1)
	cleaned = strings.TrimSpace(strings.Replace(cleaned, " km", "", 1))
	if cleaned == "" {
		return 0, fmt.Errorf("%w: empty distance", models.ErrStructure)
	}
	km, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || km < 0 {
		return 0, fmt.Errorf("%w: bad distance %q", models.ErrStructure, text)
	}
	return km, nil
}

// normaliseSpaces turns non-breaking spaces into plain ones and trims.
func normaliseSpaces(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\u00a0", " "))
}
