package reminder

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Aarzish/study-planner/internal/model"
)

const DefaultHour = 9

var ErrInvalidOffset = errors.New("invalid reminder offset")

// Offset is how many days before an event its reminder fires.
type Offset int

// None means no reminder at all.
const None Offset = -1

// ParseOffset accepts "" or "none", "day" for the day itself, or a number of days.
func ParseOffset(s string) (Offset, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "none":
		return None, nil
	case "day":
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return None, fmt.Errorf("%w: %q", ErrInvalidOffset, s)
	}
	return Offset(n), nil
}

func (o Offset) String() string {
	switch {
	case o < 0:
		return "none"
	case o == 0:
		return "day"
	}
	return strconv.Itoa(int(o))
}

// TriggerTime is hour:00 in loc, o days before date.
func (o Offset) TriggerTime(date model.Date, hour int, loc *time.Location) (time.Time, bool) {
	if o < 0 || date.IsZero() {
		return time.Time{}, false
	}
	day := date.AddDays(-int(o)).In(loc)
	if day.IsZero() {
		return time.Time{}, false
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, loc), true
}
