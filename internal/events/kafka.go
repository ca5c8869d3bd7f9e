package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/better-wallet/multisig/internal/logger"
	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of kafka.Writer the emitter uses
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaEmitter implements Emitter using Kafka
type KafkaEmitter struct {
	writer MessageWriter
	mu     sync.Mutex
}

// NewKafkaEmitter creates a new KafkaEmitter
func NewKafkaEmitter(brokers []string, topic string) *KafkaEmitter {
	return NewKafkaEmitterWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	})
}

// NewKafkaEmitterWithWriter creates an emitter over an existing writer
func NewKafkaEmitterWithWriter(w MessageWriter) *KafkaEmitter {
	return &KafkaEmitter{writer: w}
}

// Emit publishes the event keyed by wallet ID
func (k *KafkaEmitter) Emit(ctx context.Context, event Event) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.writer == nil {
		return fmt.Errorf("kafka emitter is closed")
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Key()),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to write message to Kafka: %w", err)
	}

	logger.Debug(ctx, "emitted event to Kafka", "type", event.Type, "wallet_id", event.WalletID)
	return nil
}

// Close flushes and closes the writer
func (k *KafkaEmitter) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.writer != nil {
		err := k.writer.Close()
		k.writer = nil
		return err
	}
	return nil
}
