package plan

import (
	"errors"
	"math"

	"github.com/Aarzish/study-planner/internal/model"
)

var ErrInvalidHours = errors.New("available hours must not be negative")

// Weights balance how soon a deadline is against how hard a topic is.
type Weights struct {
	Urgency    float64
	Difficulty float64
}

var DefaultWeights = Weights{Urgency: 0.6, Difficulty: 0.4}

type Allocation struct {
	Topic model.Topic `json:"topic"`
	Hours float64     `json:"hours"`
}

// Allocate splits hours among topics in proportion to their scores with the
// default weights.
func Allocate(topics []model.Topic, hours float64) ([]Allocation, error) {
	return AllocateWith(DefaultWeights, topics, hours)
}

// AllocateWith scores each topic as w.Urgency/max(1, days) + w.Difficulty*difficulty
// and gives it that share of hours, rounded to two decimals. Topics whose
// deadline has passed count as due in one day.
func AllocateWith(w Weights, topics []model.Topic, hours float64) ([]Allocation, error) {
	if hours < 0 || math.IsNaN(hours) {
		return nil, ErrInvalidHours
	}
	if len(topics) == 0 {
		return nil, nil
	}

	scores := make([]float64, len(topics))
	var total float64
	for i, t := range topics {
		days := t.DaysUntilDeadline
		if days < 1 {
			days = 1
		}
		scores[i] = w.Urgency/float64(days) + w.Difficulty*t.Difficulty
		total += scores[i]
	}

	out := make([]Allocation, len(topics))
	for i, t := range topics {
		out[i] = Allocation{Topic: t}
		// all-zero scores share the time evenly
		share := 1 / float64(len(topics))
		if total > 0 {
			share = scores[i] / total
		}
		out[i].Hours = round2(hours * share)
	}
	return out, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
