package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/custodia/core"
)

// UserStore persists the subjects seen at login.
type UserStore interface {
	// Upsert creates the user row if it does not exist yet.
	Upsert(ctx context.Context, address string) error
}

// WalletStore persists custodial keypairs. Every read is scoped to an owner;
// there is no cross-owner path.
type WalletStore interface {
	Create(ctx context.Context, w *core.Wallet) error
	ByOwner(ctx context.Context, owner string) ([]core.Wallet, error)
	ByOwnerAndAddress(ctx context.Context, owner, address string) (*core.Wallet, error)
	ByOwnerAndIDs(ctx context.Context, owner string, ids []uuid.UUID) ([]core.Wallet, error)
	UpdateBalance(ctx context.Context, id uuid.UUID, lamports uint64, at time.Time) error
	Rename(ctx context.Context, owner string, id uuid.UUID, name string) (*core.Wallet, error)
	Delete(ctx context.Context, owner string, ids []uuid.UUID) (int64, error)
}

// TransferStore persists transfer records and batch tasks.
type TransferStore interface {
	CreateRecord(ctx context.Context, rec *core.TransferRecord) error
	Record(ctx context.Context, owner string, id uuid.UUID) (*core.TransferRecord, error)
	RecordBySignature(ctx context.Context, owner, signature string) (*core.TransferRecord, error)
	RecordsByOwner(ctx context.Context, owner string, limit int) ([]core.TransferRecord, error)
	UpdateRecord(ctx context.Context, rec *core.TransferRecord) error

	CreateBatch(ctx context.Context, task *core.BatchTask) error
	Batch(ctx context.Context, owner, id string) (*core.BatchTask, error)
	BatchRecords(ctx context.Context, batchID string) ([]core.TransferRecord, error)
	UpdateBatch(ctx context.Context, task *core.BatchTask) error
}

// JobStore persists wallet-generation jobs.
type JobStore interface {
	Create(ctx context.Context, job *core.Job) error
	ByOwner(ctx context.Context, owner string) ([]core.Job, error)
	Get(ctx context.Context, owner, id string) (*core.Job, error)
	UpdateArchive(ctx context.Context, id string, status core.JobArchiveStatus, path string) error
}
