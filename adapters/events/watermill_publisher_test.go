package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/custodia/core"
)

func TestTransferConfirmedEvent(t *testing.T) {
	pubsub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubsub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	messages, err := pubsub.Subscribe(ctx, TopicTransferConfirmed)
	require.NoError(t, err)

	publisher := NewWatermillPublisher(pubsub)

	now := time.Now()
	batchID := "abc123"
	rec := &core.TransferRecord{
		ID:          uuid.New(),
		Owner:       "owner",
		FromAddress: "from",
		ToAddress:   "to",
		Amount:      1000,
		Signature:   "sig",
		Status:      core.TransferConfirmed,
		BatchID:     &batchID,
		ConfirmedAt: &now,
	}
	require.NoError(t, publisher.TransferConfirmed(ctx, rec))

	select {
	case msg := <-messages:
		var event TransferEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &event))
		assert.Equal(t, rec.ID.String(), event.RecordID)
		assert.Equal(t, "sig", event.Signature)
		assert.Equal(t, "confirmed", event.Status)
		require.NotNil(t, event.BatchID)
		assert.Equal(t, batchID, *event.BatchID)
		msg.Ack()
	case <-ctx.Done():
		t.Fatal("no event received")
	}
}

func TestBatchFinishedEvent(t *testing.T) {
	pubsub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubsub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	messages, err := pubsub.Subscribe(ctx, TopicBatchFinished)
	require.NoError(t, err)

	publisher := NewWatermillPublisher(pubsub)

	completed := time.Now()
	task := &core.BatchTask{
		ID:          "abc123",
		Owner:       "owner",
		Status:      core.BatchPartiallyCompleted,
		Successful:  2,
		Failed:      1,
		CompletedAt: &completed,
	}
	require.NoError(t, publisher.BatchFinished(ctx, task))

	select {
	case msg := <-messages:
		var event BatchEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &event))
		assert.Equal(t, "abc123", event.BatchID)
		assert.Equal(t, "partially_completed", event.Status)
		assert.Equal(t, 2, event.Successful)
		assert.Equal(t, 1, event.Failed)
		msg.Ack()
	case <-ctx.Done():
		t.Fatal("no event received")
	}
}
