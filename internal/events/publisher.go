// Package events publishes import run notifications to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/JonMunkholm/catalogo/internal/core"
	"github.com/segmentio/kafka-go"
)

// DefaultTopic receives one message per recorded import run.
const DefaultTopic = "catalogo.importaciones"

// ImportRunEvent is the message body. It mirrors the ImportRun audit record.
type ImportRunEvent struct {
	Tipo string         `json:"tipo"`
	Run  core.ImportRun `json:"importacion"`
}

const eventTipo = "importacion.registrada"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher implements core.EventPublisher over a kafka.Writer.
type Publisher struct {
	writer messageWriter
}

var _ core.EventPublisher = (*Publisher)(nil)

// NewPublisher creates a Publisher for brokers and topic. Messages are keyed
// by import id so every event for one run lands on one partition.
func NewPublisher(brokers []string, topic string) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 50 * time.Millisecond,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// PublishImportRun writes one event for run.
func (p *Publisher) PublishImportRun(ctx context.Context, run core.ImportRun) error {
	msg, err := buildMessage(run)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish import %s: %w", run.ID, err)
	}
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

func buildMessage(run core.ImportRun) (kafka.Message, error) {
	value, err := json.Marshal(ImportRunEvent{Tipo: eventTipo, Run: run})
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode import event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(run.ID.String()),
		Value: value,
		Headers: []kafka.Header{
			{Key: "estado", Value: []byte(run.Estado)},
		},
		Time: run.CreatedAt,
	}, nil
}
