// Package view derives what the presentation shows from the event list.
// Everything here is a pure function of its arguments.
package view

import (
	"sort"

	"github.com/Aarzish/study-planner/internal/model"
)

// Upcoming returns the events dated today or later, earliest first.
// Events on the same date keep their relative order.
func Upcoming(all []model.Event, today model.Date) []model.Event {
	out := make([]model.Event, 0, len(all))
	for _, e := range all {
		if !e.Date.Before(today) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

type DateSet map[model.Date]struct{}

// HighlightDates is the set of distinct dates that carry at least one event.
func HighlightDates(all []model.Event) DateSet {
	set := make(DateSet, len(all))
	for _, e := range all {
		set[e.Date] = struct{}{}
	}
	return set
}

func Highlighted(set DateSet, date model.Date) bool {
	_, ok := set[date]
	return ok
}

func SortedDates(set DateSet) []model.Date {
	out := make([]model.Date, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
