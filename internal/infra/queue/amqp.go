package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"tg-topic-digest/internal/domain"
	"tg-topic-digest/internal/infra/metrics"
)

// AuditPublisher публикует записи аудита в очередь RabbitMQ.
type AuditPublisher struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
	mu    sync.Mutex
}

var _ domain.AuditLog = (*AuditPublisher)(nil)

// NewAuditPublisher подключается к брокеру и объявляет устойчивую очередь.
func NewAuditPublisher(url, queue string) (*AuditPublisher, error) {
	if url == "" {
		return nil, errors.New("amqp url is empty")
	}
	if queue == "" {
		return nil, errors.New("queue name is empty")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("amqp declare %s: %w", queue, err)
	}
	return &AuditPublisher{conn: conn, ch: ch, queue: queue}, nil
}

// Record публикует запись как JSON с текстовой строкой аудита.
func (p *AuditPublisher) Record(ctx context.Context, record domain.AuditRecord) error {
	payload, err := json.Marshal(struct {
		domain.AuditRecord
		Line string `json:"line"`
	}{AuditRecord: record, Line: record.Line()})
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	start := time.Now()
	err = p.ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    record.At,
		Body:         payload,
	})
	metrics.ObserveNetworkRequest("rabbitmq", "publish", p.queue, start, err)
	if err != nil {
		return fmt.Errorf("publish audit record: %w", err)
	}
	return nil
}

// Close закрывает канал и соединение.
func (p *AuditPublisher) Close() error {
	return errors.Join(p.ch.Close(), p.conn.Close())
}
