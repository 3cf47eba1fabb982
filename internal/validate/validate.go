// Package validate provides per-field input validation and normalization
// for the visit report form.
//
// Every validator is a pure function: it takes the raw input for one field
// and returns either the accepted, normalized value or an error whose
// message is safe to show to the end user verbatim. Callers must persist
// the normalized value, not the raw one.
package validate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/telkomfield/visitbot/internal/models"
)

// Length bounds shared by the name-style free text fields.
const (
	MinNameLength = 3
	MaxNameLength = 50
)

// Plausible range for the visit date year.
const (
	MinYear = 2000
	MaxYear = 2100
)

var (
	codePattern       = regexp.MustCompile(`^SA\d{3,6}$`)
	personNamePattern = regexp.MustCompile(`^[a-zA-Z\s.']+$`)
	placeNamePattern  = regexp.MustCompile(`^[a-zA-Z\s.\-]+$`)
	digitsOnly        = regexp.MustCompile(`^\d+$`)
	phoneStrip        = regexp.MustCompile(`[\s\-()]`)
	dateSeparators    = regexp.MustCompile(`[/\-]|\s+`)
)

// Code validates a sales agent code: SA followed by 3 to 6 digits,
// normalized to uppercase.
func Code(raw string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if code == "" {
		return "", fmt.Errorf("code cannot be empty")
	}
	if !codePattern.MatchString(code) {
		return "", fmt.Errorf("invalid code format, use SA followed by 3-6 digits (e.g. SA001, SA1234)")
	}
	return code, nil
}

// PersonName validates a person's name: letters, spaces, dots and
// apostrophes, title-cased, length between MinNameLength and MaxNameLength.
func PersonName(raw string) (string, error) {
	name := titleCase(strings.TrimSpace(raw))
	if name == "" {
		return "", fmt.Errorf("name cannot be empty")
	}
	if len(name) < MinNameLength {
		return "", fmt.Errorf("name too short (minimum %d characters)", MinNameLength)
	}
	if len(name) > MaxNameLength {
		return "", fmt.Errorf("name too long (maximum %d characters)", MaxNameLength)
	}
	if !personNamePattern.MatchString(name) {
		return "", fmt.Errorf("name may only contain letters, spaces, dots and apostrophes")
	}
	return name, nil
}

// PlaceName validates a free-form place name: letters, spaces, dots and
// hyphens, title-cased, same length bounds as person names.
func PlaceName(raw string) (string, error) {
	place := titleCase(strings.TrimSpace(raw))
	if place == "" {
		return "", fmt.Errorf("place name cannot be empty")
	}
	if len(place) < MinNameLength {
		return "", fmt.Errorf("place name too short (minimum %d characters)", MinNameLength)
	}
	if len(place) > MaxNameLength {
		return "", fmt.Errorf("place name too long (maximum %d characters)", MaxNameLength)
	}
	if !placeNamePattern.MatchString(place) {
		return "", fmt.Errorf("place name may only contain letters, spaces, dots and hyphens")
	}
	return place, nil
}

// Phone validates an Indonesian phone number in any of the accepted prefix
// styles (08, 628, +628, or a bare 8 with enough digits) and normalizes it
// to the canonical national form starting with 08. Spaces, dashes and
// parentheses are stripped before matching. Already-canonical numbers pass
// through unchanged.
func Phone(raw string) (string, error) {
	cleaned := phoneStrip.ReplaceAllString(strings.TrimSpace(raw), "")
	if cleaned == "" {
		return "", fmt.Errorf("phone number cannot be empty")
	}
	cleaned = strings.TrimPrefix(cleaned, "+")
	if !digitsOnly.MatchString(cleaned) {
		return "", fmt.Errorf("invalid phone number format, e.g. 081234567890 or +6281234567890")
	}

	var canonical string
	switch {
	case strings.HasPrefix(cleaned, "08"):
		canonical = cleaned
	case strings.HasPrefix(cleaned, "628"):
		canonical = "0" + cleaned[2:]
	case strings.HasPrefix(cleaned, "8"):
		canonical = "0" + cleaned
	default:
		return "", fmt.Errorf("invalid phone number format, e.g. 081234567890 or +6281234567890")
	}

	// 08 plus 8 to 11 subscriber digits.
	if len(canonical) < 10 || len(canonical) > 13 {
		return "", fmt.Errorf("phone number must have 10-13 digits, e.g. 081234567890")
	}
	return canonical, nil
}

// Date validates a visit date written as day, month, year with any of the
// accepted separators (slash, dash, or spaces) and normalizes it to
// DD/MM/YYYY. The day must exist in the real calendar for that month and
// year, so 31/02/2025 is rejected.
func Date(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("date cannot be empty")
	}
	parts := dateSeparators.Split(trimmed, -1)
	if len(parts) != 3 {
		return "", fmt.Errorf("invalid date, accepted formats: DD/MM/YYYY, DD-MM-YYYY, DD MM YYYY")
	}

	day, errD := strconv.Atoi(parts[0])
	month, errM := strconv.Atoi(parts[1])
	year, errY := strconv.Atoi(parts[2])
	if errD != nil || errM != nil || errY != nil {
		return "", fmt.Errorf("invalid date, accepted formats: DD/MM/YYYY, DD-MM-YYYY, DD MM YYYY")
	}

	if day < 1 || day > 31 {
		return "", fmt.Errorf("day must be between 1 and 31")
	}
	if month < 1 || month > 12 {
		return "", fmt.Errorf("month must be between 1 and 12")
	}
	if year < MinYear || year > MaxYear {
		return "", fmt.Errorf("year must be between %d and %d", MinYear, MaxYear)
	}

	// time.Date normalizes overflow (e.g. Feb 31 -> Mar 3), so a round trip
	// detects days that do not exist in that month.
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if d.Day() != day || d.Month() != time.Month(month) || d.Year() != year {
		return "", fmt.Errorf("day %d does not exist in month %d of %d", day, month, year)
	}

	return fmt.Sprintf("%02d/%02d/%04d", day, month, year), nil
}

// Choice validates a selection key against an enumerated option set and
// returns the option's display label. Exact key match is primary; a
// case-insensitive match against display labels is accepted as fallback.
func Choice(raw string, options []models.Choice) (string, error) {
	key := strings.TrimSpace(raw)
	if key == "" {
		return "", fmt.Errorf("selection cannot be empty")
	}
	for _, opt := range options {
		if opt.Key == key {
			return opt.Label, nil
		}
	}
	for _, opt := range options {
		if strings.EqualFold(opt.Label, key) {
			return opt.Label, nil
		}
	}
	labels := make([]string, len(options))
	for i, opt := range options {
		labels[i] = opt.Label
	}
	return "", fmt.Errorf("invalid selection, valid options: %s", strings.Join(labels, ", "))
}

// titleCase capitalizes the first letter of each space-separated word and
// lowercases the rest, preserving single spaces between words.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		lower := strings.ToLower(w)
		words[i] = strings.ToUpper(lower[:1]) + lower[1:]
	}
	return strings.Join(words, " ")
}
