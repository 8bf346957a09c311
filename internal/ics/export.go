package ics

import (
	"fmt"
	"io"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/Aarzish/study-planner/internal/model"
)

const ProductID = "-//study-planner//EN"

func UID(id model.ID) string {
	return id.String() + "@study-planner"
}

// Export writes events as a calendar of all-day entries.
func Export(w io.Writer, events []model.Event, stamp time.Time) error {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(ProductID)

	for _, e := range events {
		start := e.Date.In(time.UTC)
		if start.IsZero() {
			return fmt.Errorf("event %s: %w", e.ID, model.ErrIncorrectDate)
		}
		ve := cal.AddEvent(UID(e.ID))
		ve.SetDtStampTime(stamp.UTC())
		ve.SetSummary(e.Title)
		ve.SetAllDayStartAt(start)
		ve.SetAllDayEndAt(start.AddDate(0, 0, 1))
	}

	if _, err := io.WriteString(w, cal.Serialize()); err != nil {
		return fmt.Errorf("failed to write calendar: %w", err)
	}
	return nil
}
