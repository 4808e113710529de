package rabbitmq

import (
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const (
	ExchangeName = "nearbytix"
	ExchangeKind = "topic"
)

// Routing keys for lifecycle events.
const (
	KeyEventCreated   = "event.created"
	KeyEventUpdated   = "event.updated"
	KeyTicketReserved = "ticket.reserved"
	KeyTicketPaid     = "ticket.paid"
	KeyTicketExpired  = "ticket.expired"
)

type Publisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	log     *logrus.Entry
}

func NewPublisher(url string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}

	if err := ch.ExchangeDeclare(ExchangeName, ExchangeKind, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("rabbitmq exchange declare: %w", err)
	}

	return &Publisher{
		conn:    conn,
		channel: ch,
		log:     logrus.WithField("component", "rabbitmq"),
	}, nil
}

// Publish sends payload as JSON to the topic exchange. Callers treat this as
// fire-and-forget; a nil *Publisher is a no-op so tests and broker-less
// deployments can skip the wiring entirely.
func (p *Publisher) Publish(routingKey string, payload any) error {
	if p == nil {
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	if err := p.channel.Publish(
		ExchangeName,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	); err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	p.log.WithField("routing_key", routingKey).Debug("published")
	return nil
}

func (p *Publisher) Close() {
	if p == nil {
		return
	}
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
