/**
 * @description
 * RabbitMQ publisher for ledger domain events. Events are emitted after the
 * owning database transaction commits, on a durable topic exchange, so that
 * downstream consumers (statements, notifications) observe only settled
 * state. Publishing is best-effort: a failed publish is logged by the
 * caller and never rolls back the ledger write.
 *
 * @dependencies
 * - github.com/rabbitmq/amqp091-go: AMQP 0-9-1 client.
 */
package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// ExchangeLedgerEvents carries all events published by this service.
	ExchangeLedgerEvents = "ledger.events"

	RoutingKeyTransferCompleted = "ledger.transfer.completed"
	RoutingKeyAccountClosed     = "ledger.account.closed"
)

// TransferCompletedEvent is emitted once both legs of a transfer are
// committed and cross-linked.
type TransferCompletedEvent struct {
	SourceAccountID      int64     `json:"source_account_id"`
	DestinationAccountID int64     `json:"destination_account_id"`
	DebitLegID           int64     `json:"debit_leg_id"`
	CreditLegID          int64     `json:"credit_leg_id"`
	Amount               int64     `json:"amount"`
	Fee                  int64     `json:"fee"`
	OccurredAt           time.Time `json:"occurred_at"`
}

// AccountClosedEvent is emitted when an account reaches its terminal state.
type AccountClosedEvent struct {
	AccountID  int64     `json:"account_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher is the event-emission surface the application depends on.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// Producer is the AMQP-backed Publisher.
type Producer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewProducer dials the broker and declares the ledger events exchange.
func NewProducer(url string) (*Producer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		ExchangeLedgerEvents,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &Producer{conn: conn, channel: ch}, nil
}

// Publish marshals the event as JSON and sends it with a persistent
// delivery mode under the given routing key.
func (p *Producer) Publish(ctx context.Context, routingKey string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.channel.PublishWithContext(ctx,
		ExchangeLedgerEvents,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Close releases the channel and connection.
func (p *Producer) Close() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
