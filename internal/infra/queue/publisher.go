package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Publisher fans JSON events out to topic exchanges. A single channel is
// shared and guarded by mu since amqp channels are not goroutine safe.
type Publisher struct {
	conn     *amqp.Connection
	log      *zap.Logger
	mu       sync.Mutex
	ch       *amqp.Channel
	declared map[string]struct{}
}

func NewPublisher(conn *amqp.Connection, log *zap.Logger) (*Publisher, error) {
	if conn == nil {
		return nil, fmt.Errorf("amqp connection is nil")
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	return &Publisher{
		conn:     conn,
		log:      log,
		ch:       ch,
		declared: map[string]struct{}{},
	}, nil
}

func (p *Publisher) PublishJSON(ctx context.Context, exchange, routingKey string, data interface{}) error {
	msg, err := buildPublishing(data, time.Now())
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil || p.ch.IsClosed() {
		ch, err := p.conn.Channel()
		if err != nil {
			return fmt.Errorf("reopen channel: %w", err)
		}
		p.ch = ch
		p.declared = map[string]struct{}{}
	}

	if _, ok := p.declared[exchange]; !ok {
		if err := p.ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %s: %w", exchange, err)
		}
		p.declared[exchange] = struct{}{}
	}

	if err := p.ch.PublishWithContext(ctx, exchange, routingKey, false, false, msg); err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}
	p.log.Debug("event published", zap.String("exchange", exchange), zap.String("routing_key", routingKey), zap.String("message_id", msg.MessageId))
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil {
		return nil
	}
	return p.ch.Close()
}

func buildPublishing(data interface{}, now time.Time) (amqp.Publishing, error) {
	body, err := sonic.Marshal(data)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal event: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    now,
		Body:         body,
	}, nil
}
