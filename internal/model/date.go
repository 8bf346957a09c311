package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

var ErrIncorrectDate = errors.New("incorrect date")

// Date is a civil calendar date in its canonical YYYY-MM-DD form.
// Canonical dates compare chronologically as plain strings.
type Date string

var dateLayouts = []string{DateLayout, time.RFC3339, time.RFC3339Nano, http.TimeFormat, time.RFC1123Z}

// ParseDate accepts YYYY-MM-DD, RFC 3339 timestamps and HTTP dates.
// Timestamps keep the calendar day they carry, whatever their zone.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t), nil
		}
	}
	return "", fmt.Errorf("parse %q: %w", s, ErrIncorrectDate)
}

func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	return Date(t.Format(DateLayout))
}

// Today returns the calendar day of now in loc.
func Today(now time.Time, loc *time.Location) Date {
	return DateOf(now.In(loc))
}

func (d Date) String() string { return string(d) }

func (d Date) IsZero() bool { return d == "" }

// In returns midnight of d in loc.
func (d Date) In(loc *time.Location) time.Time {
	t, err := time.ParseInLocation(DateLayout, string(d), loc)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (d Date) AddDays(n int) Date {
	return DateOf(d.In(time.UTC).AddDate(0, 0, n))
}

func (d Date) Before(other Date) bool { return d < other }

func (d Date) After(other Date) bool { return d > other }

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", ErrIncorrectDate)
	}
	if s == "" {
		*d = ""
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
