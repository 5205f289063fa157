//go:build integration

package kafka_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "bibflow/pkg/platform/audit"
	auditkafka "bibflow/pkg/platform/audit/kafka"
	"bibflow/pkg/testutil/containers"
)

func TestProducerPublishesAuditEvents(t *testing.T) {
	redpanda := containers.GetManager().GetRedpanda(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	topic := "bibflow.audit.test"
	producer, err := auditkafka.NewProducer(ctx, redpanda.Brokers, topic)
	require.NoError(t, err)
	defer producer.Close()

	event := audit.Event{
		ID:        uuid.New(),
		Action:    audit.ActionIdentifierMinted,
		RecordID:  "1000001",
		Subject:   "texkey:Jones:2001abc",
		Timestamp: time.Now().UTC(),
	}
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	require.NoError(t, producer.Publish(ctx, event.ID.String(), payload))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(redpanda.Brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	require.NoError(t, fetches.Err())

	records := fetches.Records()
	require.Len(t, records, 1)
	assert.Equal(t, event.ID.String(), string(records[0].Key))

	var got audit.Event
	require.NoError(t, json.Unmarshal(records[0].Value, &got))
	assert.Equal(t, audit.ActionIdentifierMinted, got.Action)
	assert.Equal(t, "1000001", got.RecordID)
}

func TestProducerTopicCreationIsIdempotent(t *testing.T) {
	redpanda := containers.GetManager().GetRedpanda(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	topic := "bibflow.audit.idempotent"
	first, err := auditkafka.NewProducer(ctx, redpanda.Brokers, topic)
	require.NoError(t, err)
	first.Close()

	second, err := auditkafka.NewProducer(ctx, redpanda.Brokers, topic)
	require.NoError(t, err)
	second.Close()
}
