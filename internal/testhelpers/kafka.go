//go:build integration

package testhelpers

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	kafkatc "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const (
	kafkaImage         = "confluentinc/confluent-local:7.7.0"
	brokerWaitInterval = 500 * time.Millisecond
	brokerWaitTimeout  = 30 * time.Second
)

// StartKafka runs a single broker container, creates the given topics and
// returns the broker address. The test is skipped when Docker is unavailable.
func StartKafka(ctx context.Context, t *testing.T, topics ...string) string {
	t.Helper()

	container, err := kafkatc.Run(ctx, kafkaImage)
	if err != nil {
		t.Skipf("kafka container unavailable (requires Docker): %v", err)
	}
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	brokers, err := container.Brokers(ctx)
	if err != nil {
		t.Fatalf("obtain broker addresses: %v", err)
	}
	if len(brokers) == 0 {
		t.Fatal("kafka container returned no brokers")
	}
	broker := brokers[0]

	if err := WaitForKafkaBroker(ctx, broker); err != nil {
		t.Fatalf("wait for kafka broker: %v", err)
	}
	for _, topic := range topics {
		if err := EnsureKafkaTopic(ctx, broker, topic); err != nil {
			t.Fatalf("create topic %s: %v", topic, err)
		}
	}
	return broker
}

// WaitForKafkaBroker polls broker until it accepts connections, ctx ends or
// brokerWaitTimeout passes.
func WaitForKafkaBroker(ctx context.Context, broker string) error {
	ctx, cancel := context.WithTimeout(ctx, brokerWaitTimeout)
	defer cancel()

	ticker := time.NewTicker(brokerWaitInterval)
	defer ticker.Stop()
	for {
		conn, err := kafkago.DialContext(ctx, "tcp", broker)
		if err == nil {
			return conn.Close()
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return fmt.Errorf("kafka broker %q not ready: %w", broker, ctx.Err())
		}
	}
}

// EnsureKafkaTopic creates a single-partition topic through the cluster
// controller. A single partition keeps the results of one run in order.
func EnsureKafkaTopic(ctx context.Context, broker, topic string) error {
	conn, err := kafkago.DialContext(ctx, "tcp", broker)
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("find controller: %w", err)
	}
	ctrlConn, err := kafkago.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("dial controller: %w", err)
	}
	defer ctrlConn.Close()

	return ctrlConn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
}
