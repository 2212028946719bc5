package mq

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	headerID        = "x-message-id"
	headerTimestamp = "x-message-ts"
)

// KafkaConfig defines configuration for the Kafka producer.
type KafkaConfig struct {
	Brokers  []string `yaml:"brokers"`
	ClientID string   `yaml:"clientID"`

	RequiredAcks kafka.RequiredAcks `yaml:"requiredAcks"`
	BatchSize    int                `yaml:"batchSize"`
	BatchTimeout time.Duration      `yaml:"batchTimeout"`
	DialTimeout  time.Duration      `yaml:"dialTimeout"`
	WriteTimeout time.Duration      `yaml:"writeTimeout"`
}

// KafkaProducer implements Producer using Kafka.
type KafkaProducer struct {
	config KafkaConfig
	writer *kafka.Writer
	dialer *kafka.Dialer
}

// NewKafkaProducer creates a Kafka-backed message producer.
func NewKafkaProducer(cfg KafkaConfig) (*KafkaProducer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("brokers are required")
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
	if cfg.BatchTimeout == 0 {
		cfg.BatchTimeout = 50 * time.Millisecond
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.RequiredAcks == 0 {
		cfg.RequiredAcks = kafka.RequireOne
	}

	dialer := &kafka.Dialer{
		ClientID:  cfg.ClientID,
		Timeout:   cfg.DialTimeout,
		DualStack: true,
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: cfg.RequiredAcks,
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		Transport: &kafka.Transport{
			Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
				return dialer.DialContext(ctx, network, address)
			},
			ClientID: cfg.ClientID,
		},
	}

	return &KafkaProducer{
		config: cfg,
		writer: writer,
		dialer: dialer,
	}, nil
}

// Publish publishes a message to a topic.
func (k *KafkaProducer) Publish(ctx context.Context, topic string, message *Message) error {
	if message == nil {
		return errors.New("message is nil")
	}
	if topic == "" {
		return errors.New("topic is required")
	}

	headers := make([]kafka.Header, 0, len(message.Headers)+2)
	if message.ID != "" {
		headers = append(headers, kafka.Header{Key: headerID, Value: []byte(message.ID)})
	}
	if !message.Timestamp.IsZero() {
		headers = append(headers, kafka.Header{
			Key:   headerTimestamp,
			Value: []byte(message.Timestamp.UTC().Format(time.RFC3339Nano)),
		})
	}
	for key, value := range message.Headers {
		headers = append(headers, kafka.Header{Key: key, Value: []byte(value)})
	}

	msg := kafka.Message{
		Topic:   topic,
		Key:     []byte(message.ID),
		Value:   message.Body,
		Headers: headers,
	}
	return k.writer.WriteMessages(ctx, msg)
}

// Ping verifies at least one broker is reachable.
func (k *KafkaProducer) Ping(ctx context.Context) error {
	conn, err := k.dialer.DialContext(ctx, "tcp", k.config.Brokers[0])
	if err != nil {
		return err
	}
	return conn.Close()
}

// Close closes the underlying writer.
func (k *KafkaProducer) Close() error {
	return k.writer.Close()
}
