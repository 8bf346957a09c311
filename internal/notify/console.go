package notify

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/Aarzish/study-planner/internal/reminder"
)

// Console writes reminders to the log.
type Console struct{}

func (Console) Prepare(context.Context) error { return nil }

func (Console) Notify(_ context.Context, r reminder.Reminder) error {
	log.WithField("event", r.EventID).WithField("date", r.Date).Warn(Text(r))
	return nil
}
