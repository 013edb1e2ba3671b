//go:build integration

package outbox

import (
	"context"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkacontainer "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/TalentedProger/Preloader-Animate/internal/events"
)

func TestKafkaProducerDeliversSubscriberEvents(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 4*time.Minute)
	defer cancel()

	kafkaC, err := kafkacontainer.Run(ctx, "confluentinc/confluent-local:7.5.0",
		testcontainers.WithEnv(map[string]string{"KAFKA_AUTO_CREATE_TOPICS_ENABLE": "true"}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = kafkaC.Terminate(context.Background()) })

	brokers, err := kafkaC.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)

	conn, err := kafka.Dial("tcp", brokers[0])
	require.NoError(t, err)
	require.NoError(t, conn.CreateTopics(kafka.TopicConfig{
		Topic:             events.TopicSubscriberEvents,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
	_ = conn.Close()

	producer := NewKafkaProducer(brokers)
	t.Cleanup(func() { _ = producer.Close() })

	db := &stubDB{pending: [][]any{
		{int64(1), "subscriber", "7", events.TypeSubscriberCreated, events.TopicSubscriberEvents, "7", `{"subscriber_id":7}`},
	}}
	dispatcher := NewDispatcher(db, producer, time.Second, 10)

	n, err := dispatcher.ProcessBatch(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   brokers,
		Topic:     events.TopicSubscriberEvents,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	t.Cleanup(func() { _ = reader.Close() })

	msg, err := reader.ReadMessage(ctx)
	require.NoError(t, err)
	require.Equal(t, "7", string(msg.Key))
	require.JSONEq(t, `{"subscriber_id":7}`, string(msg.Value))
}
