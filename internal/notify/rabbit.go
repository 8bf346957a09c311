package notify

import (
	"context"

	"github.com/Aarzish/study-planner/internal/reminder"
)

type publisher interface {
	Connect() error
	Publish(rem reminder.Reminder) error
}

// Rabbit queues reminders for cmd/sender to deliver.
type Rabbit struct {
	provider publisher
}

func NewRabbit(provider publisher) *Rabbit {
	return &Rabbit{provider: provider}
}

func (r *Rabbit) Prepare(context.Context) error {
	return r.provider.Connect()
}

func (r *Rabbit) Notify(_ context.Context, rem reminder.Reminder) error {
	return r.provider.Publish(rem)
}
