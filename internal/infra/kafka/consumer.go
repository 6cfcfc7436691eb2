package kafka

import (
	"context"
	"errors"
	"time"

	kafkago "github.com/segmentio/kafka-go"
)

// DefaultGroupID is the consumer group used by tcrun watch.
const DefaultGroupID = "tcrun-watch"

// Config describes the Kafka topic a Consumer reads results from.
// Zero MinBytes, MaxBytes and MaxWait fall back to 1 byte, 10 MiB and 1s.
type Config struct {
	Brokers  []string
	Topic    string
	GroupID  string
	MinBytes int
	MaxBytes int
	MaxWait  time.Duration
}

func (cfg Config) readerConfig() (kafkago.ReaderConfig, error) {
	if len(cfg.Brokers) == 0 {
		return kafkago.ReaderConfig{}, errors.New("at least one broker must be provided")
	}
	if cfg.Topic == "" {
		return kafkago.ReaderConfig{}, errors.New("topic must be provided")
	}
	rc := kafkago.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: cfg.MinBytes,
		MaxBytes: cfg.MaxBytes,
		MaxWait:  cfg.MaxWait,
	}
	if rc.GroupID == "" {
		rc.GroupID = DefaultGroupID
	}
	if rc.MinBytes == 0 {
		rc.MinBytes = 1
	}
	if rc.MaxBytes == 0 {
		rc.MaxBytes = 10 << 20
	}
	if rc.MaxWait == 0 {
		rc.MaxWait = time.Second
	}
	return rc, nil
}

// Consumer decodes the result and run-finished events written by Publisher.
type Consumer struct {
	reader messageReader
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafkago.Message, error)
	Close() error
}

// NewConsumer joins cfg.GroupID on cfg.Topic.
func NewConsumer(cfg Config) (*Consumer, error) {
	rc, err := cfg.readerConfig()
	if err != nil {
		return nil, err
	}
	return newConsumer(kafkago.NewReader(rc)), nil
}

func newConsumer(reader messageReader) *Consumer {
	return &Consumer{reader: reader}
}

// Next blocks for the next event. Undecodable messages are committed and
// reported as ErrMalformedMessage so callers can skip them.
func (c *Consumer) Next(ctx context.Context) (Event, error) {
	msg, err := c.reader.ReadMessage(ctx)
	if err != nil {
		return Event{}, err
	}
	return decodeMessage(msg)
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
