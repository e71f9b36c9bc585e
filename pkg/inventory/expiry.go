package inventory

import (
	"strings"
	"time"
)

const secondsPerDay = 24 * 60 * 60

// expiryLayouts are tried in order by ParseExpiryDate
var expiryLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// DaysUntilExpiry returns the signed number of calendar days from now until
// the expiry date. ok is false when the item has no usable expiry date.
// Negative values mean the item has already expired.
// 有効期限までの暦日数を返す（期限なしの場合 ok=false）
func DaysUntilExpiry(expiry *time.Time, now time.Time) (days int, ok bool) {
	if !HasExpiry(expiry) {
		return 0, false
	}
	return int(civilDay(*expiry) - civilDay(now)), true
}

// HasExpiry reports whether expiry is set and is not a zero-date placeholder
func HasExpiry(expiry *time.Time) bool {
	return expiry != nil && !isPlaceholderDate(*expiry)
}

// ParseExpiryDate parses an expiry date as delivered by the upstream data
// source. An empty string means no expiry. Malformed input and zero-date
// placeholders return an error wrapping ErrInvalidDate.
// 有効期限文字列を解析
func ParseExpiryDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	for _, layout := range expiryLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if isPlaceholderDate(t) {
			return nil, invalidDateError(s)
		}
		y, m, d := t.Date()
		date := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		return &date, nil
	}

	return nil, invalidDateError(s)
}

// civilDay maps t to a day number using its own calendar date, so the time
// of day and the zone offset never shift the result
func civilDay(t time.Time) int64 {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / secondsPerDay
}

func isPlaceholderDate(t time.Time) bool {
	return t.IsZero() || t.Year() <= 1
}

func invalidDateError(value string) *ValidationError {
	return &ValidationError{
		Field:   "expiry_date",
		Message: "有効期限を解釈できません",
		Value:   value,
		cause:   ErrInvalidDate,
	}
}
