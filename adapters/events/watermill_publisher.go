// Package events publishes transfer lifecycle events through Watermill so
// downstream consumers (notifiers, audit sinks) can react to terminal
// outcomes without polling the database.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/custodia-labs/custodia/core"
	"github.com/custodia-labs/custodia/ports"
)

// Topics events are published on.
const (
	TopicTransferConfirmed = "custodia.transfer.confirmed"
	TopicTransferFailed    = "custodia.transfer.failed"
	TopicBatchFinished     = "custodia.batch.finished"
)

// TransferEvent is the payload published for a terminal transfer outcome.
type TransferEvent struct {
	RecordID    string  `json:"record_id"`
	Owner       string  `json:"owner"`
	FromAddress string  `json:"from_address"`
	ToAddress   string  `json:"to_address"`
	Lamports    uint64  `json:"lamports"`
	Signature   string  `json:"signature,omitempty"`
	Status      string  `json:"status"`
	Error       string  `json:"error,omitempty"`
	BatchID     *string `json:"batch_id,omitempty"`
}

// BatchEvent is the payload published when a batch reaches a terminal status.
type BatchEvent struct {
	BatchID    string    `json:"batch_id"`
	Owner      string    `json:"owner"`
	Status     string    `json:"status"`
	Successful int       `json:"successful"`
	Failed     int       `json:"failed"`
	FinishedAt time.Time `json:"finished_at"`
}

// WatermillPublisher implements the EventPublisher port over any Watermill
// publisher (redis stream in production, gochannel in single-instance runs
// and tests).
type WatermillPublisher struct {
	publisher message.Publisher
}

// NewWatermillPublisher wraps a Watermill publisher.
func NewWatermillPublisher(publisher message.Publisher) *WatermillPublisher {
	return &WatermillPublisher{publisher: publisher}
}

var _ ports.EventPublisher = (*WatermillPublisher)(nil)

func (p *WatermillPublisher) publish(topic, key string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.publisher.Publish(topic, message.NewMessage(key, raw)); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// TransferConfirmed publishes a confirmed-transfer event.
func (p *WatermillPublisher) TransferConfirmed(ctx context.Context, rec *core.TransferRecord) error {
	return p.publish(TopicTransferConfirmed, rec.ID.String(), transferEvent(rec))
}

// TransferFailed publishes a failed-transfer event.
func (p *WatermillPublisher) TransferFailed(ctx context.Context, rec *core.TransferRecord) error {
	return p.publish(TopicTransferFailed, rec.ID.String(), transferEvent(rec))
}

// BatchFinished publishes the terminal status of a batch task.
func (p *WatermillPublisher) BatchFinished(ctx context.Context, task *core.BatchTask) error {
	finished := time.Now()
	if task.CompletedAt != nil {
		finished = *task.CompletedAt
	}
	return p.publish(TopicBatchFinished, task.ID, BatchEvent{
		BatchID:    task.ID,
		Owner:      task.Owner,
		Status:     string(task.Status),
		Successful: task.Successful,
		Failed:     task.Failed,
		FinishedAt: finished,
	})
}

func transferEvent(rec *core.TransferRecord) TransferEvent {
	return TransferEvent{
		RecordID:    rec.ID.String(),
		Owner:       rec.Owner,
		FromAddress: rec.FromAddress,
		ToAddress:   rec.ToAddress,
		Lamports:    rec.Amount,
		Signature:   rec.Signature,
		Status:      string(rec.Status),
		Error:       rec.ErrorMessage,
		BatchID:     rec.BatchID,
	}
}
