package ports

import (
	"context"

	"github.com/custodia-labs/custodia/core"
)

// EventPublisher notifies other components about terminal transfer outcomes.
// Publishing is best effort: a failed publish is logged, never allowed to
// fail the state transition that triggered it.
type EventPublisher interface {
	TransferConfirmed(ctx context.Context, rec *core.TransferRecord) error
	TransferFailed(ctx context.Context, rec *core.TransferRecord) error
	BatchFinished(ctx context.Context, task *core.BatchTask) error
}
