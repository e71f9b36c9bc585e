// Package events publishes inventory status alerts to RabbitMQ
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/nemonet1337/medstock/pkg/inventory"
)

// RoutingKeyPrefix prefixes the status in alert routing keys,
// e.g. "inventory.status.low_stock"
const RoutingKeyPrefix = "inventory.status."

// Channel is the subset of *amqp.Channel the publisher needs
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitMQPublisher implements inventory.EventPublisher over an AMQP topic exchange
// RabbitMQへステータスアラートを発行
type RabbitMQPublisher struct {
	conn     *amqp.Connection
	channel  Channel
	exchange string
	source   string
	logger   *zap.Logger
	mu       sync.Mutex
}

var _ inventory.EventPublisher = (*RabbitMQPublisher)(nil)

// Dial connects to RabbitMQ and declares the exchange
// RabbitMQに接続してエクスチェンジを宣言
func Dial(url, exchange, source string, logger *zap.Logger) (*RabbitMQPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("RabbitMQ接続に失敗しました: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("チャネル作成に失敗しました: %w", err)
	}

	p, err := NewRabbitMQPublisher(ch, exchange, source, logger)
	if err != nil {
		conn.Close()
		return nil, err
	}
	p.conn = conn

	return p, nil
}

// NewRabbitMQPublisher declares a durable topic exchange on ch
func NewRabbitMQPublisher(ch Channel, exchange, source string, logger *zap.Logger) (*RabbitMQPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	); err != nil {
		return nil, fmt.Errorf("エクスチェンジ %s の宣言に失敗しました: %w", exchange, err)
	}

	return &RabbitMQPublisher{
		channel:  ch,
		exchange: exchange,
		source:   source,
		logger:   logger,
	}, nil
}

// envelope wraps an alert with delivery metadata
type envelope struct {
	ID     string                     `json:"id"`
	Type   string                     `json:"type"`
	Source string                     `json:"source"`
	Data   inventory.StatusAlertEvent `json:"data"`
}

// PublishStatusAlert publishes one alert, routed by its status
// ステータスアラートを発行
func (p *RabbitMQPublisher) PublishStatusAlert(ctx context.Context, event inventory.StatusAlertEvent) error {
	routingKey := RoutingKeyPrefix + string(event.Status)

	body, err := json.Marshal(envelope{
		ID:     event.ID,
		Type:   routingKey,
		Source: p.source,
		Data:   event,
	})
	if err != nil {
		return fmt.Errorf("イベントのJSON変換に失敗しました: %w", err)
	}

	// amqp channels are not safe for concurrent publishing
	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.PublishWithContext(ctx,
		p.exchange, // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    event.ID,
			Timestamp:    event.Timestamp,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("イベント発行に失敗しました: %w", err)
	}

	p.logger.Debug("アラートイベント発行完了",
		zap.String("routing_key", routingKey),
		zap.String("event_id", event.ID),
		zap.String("item_code", event.ItemCode),
	)

	return nil
}

// Close closes the channel and, when owned, the connection
func (p *RabbitMQPublisher) Close() error {
	if err := p.channel.Close(); err != nil {
		p.logger.Warn("チャネルのクローズに失敗しました", zap.Error(err))
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			return fmt.Errorf("RabbitMQ接続のクローズに失敗しました: %w", err)
		}
	}
	return nil
}
