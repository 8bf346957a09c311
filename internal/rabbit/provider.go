package rabbit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/streadway/amqp"

	"github.com/Aarzish/study-planner/internal/reminder"
)

var ErrNotConnected = errors.New("rabbit provider is not connected")

type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Queue    string
}

// Provider publishes reminders to a queue and consumes them from it.
type Provider struct {
	conn       *amqp.Connection
	queue      amqp.Queue
	channel    *amqp.Channel
	connString string
	queueName  string
}

func New(config Config) *Provider {
	return &Provider{
		connString: fmt.Sprintf(
			"amqp://%s:%s@%s:%d/",
			config.User,
			config.Password,
			config.Host,
			config.Port,
		),
		queueName: config.Queue,
	}
}

func (r *Provider) Connect() error {
	var err error
	r.conn, err = amqp.Dial(r.connString)
	if err != nil {
		return fmt.Errorf("failed to dial rabbit: %w", err)
	}

	r.channel, err = r.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	r.queue, err = r.channel.QueueDeclare(
		r.queueName,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue %q: %w", r.queueName, err)
	}
	return nil
}

func (r *Provider) Close() {
	if r.conn != nil {
		r.conn.Close()
	}
}

func (r *Provider) Publish(rem reminder.Reminder) error {
	if r.channel == nil {
		return ErrNotConnected
	}
	body, err := json.Marshal(rem)
	if err != nil {
		return fmt.Errorf("failed to encode reminder: %w", err)
	}
	return r.channel.Publish(
		"",           // exchange
		r.queue.Name, // routing key
		false,        // mandatory
		false,        // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    rem.EventID.String(),
			Body:         body,
		})
}

type Handler = func(rem reminder.Reminder)

// Consume hands every decodable reminder to handle until ctx is done.
// Undecodable messages are logged and dropped.
func (r *Provider) Consume(ctx context.Context, handle Handler) error {
	if r.channel == nil {
		return ErrNotConnected
	}
	msgs, err := r.channel.Consume(
		r.queue.Name, // queue
		"",           // consumer
		true,         // auto-ack
		false,        // exclusive
		false,        // no-local
		false,        // no-wait
		nil,          // args
	)
	if err != nil {
		return fmt.Errorf("failed to consume %q: %w", r.queue.Name, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-msgs:
			if !ok {
				return nil
			}
			rem := reminder.Reminder{}
			if err := json.Unmarshal(m.Body, &rem); err != nil {
				log.WithField("messageId", m.MessageId).Errorf("failed to parse reminder: %v", err)
				continue
			}
			handle(rem)
		}
	}
}
