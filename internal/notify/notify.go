package notify

import (
	"fmt"
	"strings"

	"github.com/Aarzish/study-planner/internal/rabbit"
	"github.com/Aarzish/study-planner/internal/reminder"
)

const (
	KindConsole = "console"
	KindRabbit  = "rabbit"
	KindEmail   = "email"
)

type Config struct {
	Kind   string
	Rabbit rabbit.Config
	Email  EmailConfig
}

// New returns the notifier selected by config.Kind. An empty kind means console.
func New(config Config) (reminder.Notifier, error) {
	switch strings.ToLower(config.Kind) {
	case "", KindConsole:
		return Console{}, nil
	case KindRabbit:
		return NewRabbit(rabbit.New(config.Rabbit)), nil
	case KindEmail:
		return NewEmail(config.Email), nil
	}
	return nil, fmt.Errorf("unknown notifier kind %s", config.Kind)
}

func Subject(r reminder.Reminder) string {
	return "Reminder: " + r.Title
}

func Text(r reminder.Reminder) string {
	return fmt.Sprintf("%q is scheduled for %s.", r.Title, r.Date)
}
