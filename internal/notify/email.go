package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/Aarzish/study-planner/internal/reminder"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

var ErrEmailNotConfigured = errors.New("email notifier needs an api key and a recipient")

type EmailConfig struct {
	APIKey   string
	From     string
	FromName string
	To       string
	// Host overrides the SendGrid API host.
	Host string
}

// Email sends reminders through SendGrid.
type Email struct {
	key  string
	host string
	from *sgmail.Email
	to   *sgmail.Email
}

func NewEmail(config EmailConfig) *Email {
	host := config.Host
	if host == "" {
		host = sendgridHost
	}
	e := &Email{key: config.APIKey, host: host}
	if config.From != "" {
		e.from = sgmail.NewEmail(config.FromName, config.From)
	}
	if config.To != "" {
		e.to = sgmail.NewEmail("", config.To)
	}
	return e
}

func (e *Email) Prepare(context.Context) error {
	if e.key == "" || e.to == nil || e.from == nil {
		return ErrEmailNotConfigured
	}
	return nil
}

func (e *Email) Notify(ctx context.Context, r reminder.Reminder) error {
	p := sgmail.NewPersonalization()
	p.Subject = Subject(r)
	p.AddTos(e.to)

	m := sgmail.NewV3Mail()
	m.SetFrom(e.from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", Text(r)))

	req := sendgrid.GetRequest(e.key, sendgridEndpoint, e.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m)

	res, err := rest.SendWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("failed to send email: status %d: %s", res.StatusCode, res.Body)
	}
	return nil
}
