package kafka

import (
	"context"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"tcrun/internal/domain/execution"
	"tcrun/internal/ports"
)

// Ensure Publisher implements ports.ResultPublisher.
var _ ports.ResultPublisher = (*Publisher)(nil)

// PublisherConfig configures the Kafka-based result publisher.
type PublisherConfig struct {
	Brokers []string
	Topic   string
}

// Publisher publishes test results to Kafka.
type Publisher struct {
	writer messageWriter
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// NewPublisher constructs a Publisher using the supplied configuration.
func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker must be provided")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("topic must be provided")
	}

	writer := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		AllowAutoTopicCreation: true,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		BatchTimeout:           10 * time.Millisecond,
	}

	return newPublisher(writer), nil
}

func newPublisher(writer messageWriter) *Publisher {
	return &Publisher{writer: writer}
}

// PublishResult serializes and writes a single test result, keyed by run and test id.
func (p *Publisher) PublishResult(ctx context.Context, runID string, result execution.Result) error {
	payload, err := encodeResult(runID, result)
	if err != nil {
		return err
	}
	return p.write(ctx, messageKey(runID, result.TestID), payload)
}

// PublishRunFinished writes the summary of a completed run.
func (p *Publisher) PublishRunFinished(ctx context.Context, report execution.RunReport) error {
	payload, err := encodeRunFinished(report)
	if err != nil {
		return err
	}
	return p.write(ctx, messageKey(report.RunID, ""), payload)
}

func (p *Publisher) write(ctx context.Context, key, payload []byte) error {
	if p.writer == nil {
		return fmt.Errorf("publisher is not initialized")
	}

	msg := kafkago.Message{
		Key:   key,
		Value: payload,
		Time:  time.Now(),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// Close releases the underlying Kafka writer.
func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
