package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const DefaultQueue = "reservation.events"

// AMQPPublisher publishes events to a durable RabbitMQ queue through the default
// exchange. A connection is opened per event; the publish rate is bounded by user
// mutations.
type AMQPPublisher struct {
	url   string
	queue string
	dial  func(url string) (*amqp.Connection, error)
}

func NewAMQPPublisher(url, queue string) *AMQPPublisher {
	if queue == "" {
		queue = DefaultQueue
	}
	return &AMQPPublisher{url: url, queue: queue, dial: amqp.Dial}
}

func (p *AMQPPublisher) Notify(ctx context.Context, ev Event) error {
	msg, err := publishing(ev)
	if err != nil {
		return err
	}

	conn, err := p.dial(p.url)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq queue declare: %w", err)
	}

	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	return nil
}

func publishing(ev Event) (amqp.Publishing, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, err
	}
	ts := ev.OccurredAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ID.String(),
		Type:         string(ev.Kind),
		Timestamp:    ts,
		Headers:      amqp.Table{"audience": string(ev.Audience)},
		Body:         body,
	}, nil
}
