// internal/app/system/normalize/normalize.go
package normalize

import (
	"errors"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/dalemusser/dashhub/internal/domain/models"
	"github.com/microcosm-cc/bluemonday"
)

// strict removes all markup from free-text inputs.
var strict = bluemonday.StrictPolicy()

// plainText strips tags from s and returns the remaining text unescaped.
// Values are stored as plain text and escaped only when rendered.
func plainText(s string) string {
	return html.UnescapeString(strict.Sanitize(s))
}

// Email trims and lowercases an email address.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims a display name, strips any HTML and collapses inner whitespace.
// Case is preserved.
func Name(s string) string {
	s = plainText(s)
	return strings.Join(strings.Fields(s), " ")
}

// Phone trims a phone number and strips any markup.
func Phone(s string) string {
	return strings.TrimSpace(plainText(s))
}

// Role trims and lowercases a role string.
func Role(s string) models.Role {
	return models.Role(strings.ToLower(strings.TrimSpace(s)))
}

// Department matches s case-insensitively against the defined departments.
// Unknown values are returned trimmed but otherwise unchanged, so callers
// can reject them with IsValid.
func Department(s string) models.Department {
	s = strings.TrimSpace(s)
	for _, d := range models.AllDepartments() {
		if strings.EqualFold(string(d), s) {
			return d
		}
	}
	return models.Department(s)
}

// ErrBadDate is returned by JoinDate for literals it cannot interpret.
var ErrBadDate = errors.New("join date must be YYYY-MM-DD or DD-MM-YYYY")

// JoinDate parses a join-date literal into a calendar date at UTC midnight.
//
// Accepted forms:
//   - ""            → today's date (per now)
//   - YYYY-MM-DD    → ISO order (a four-digit first field means year-first)
//   - DD-MM-YYYY    → day-first (a four-digit last field means year-last)
//   - RFC 3339      → the UTC calendar date of the timestamp
//
// A year-first literal is always read as year-month-day, so "2024-03-05"
// is 5 March 2024, never 3 May.
func JoinDate(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return dateOf(now), nil
	}

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return dateOf(t), nil
	}

	parts := strings.Split(s, "-")
	if len(parts) != 3 {
		return time.Time{}, ErrBadDate
	}

	var y, m, d string
	switch {
	case len(parts[0]) == 4:
		y, m, d = parts[0], parts[1], parts[2]
	case len(parts[2]) == 4:
		d, m, y = parts[0], parts[1], parts[2]
	default:
		return time.Time{}, ErrBadDate
	}

	year, err1 := strconv.Atoi(y)
	month, err2 := strconv.Atoi(m)
	day, err3 := strconv.Atoi(d)
	if err1 != nil || err2 != nil || err3 != nil || len(m) > 2 || len(d) > 2 {
		return time.Time{}, ErrBadDate
	}
	if month < 1 || month > 12 || day < 1 {
		return time.Time{}, ErrBadDate
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflow (31 Feb → 3 Mar); reject it instead.
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, ErrBadDate
	}
	return t, nil
}

// Today returns the UTC calendar date of now at midnight.
func Today(now time.Time) time.Time {
	return dateOf(now)
}

func dateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
