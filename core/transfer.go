package core

import (
	"time"

	"github.com/google/uuid"
)

// TransferStatus is the lifecycle state of a transfer record. pending is the
// only non-terminal state; confirmed and failed are terminal and no
// transition ever leaves them.
type TransferStatus string

const (
	TransferPending   TransferStatus = "pending"
	TransferConfirmed TransferStatus = "confirmed"
	TransferFailed    TransferStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s TransferStatus) Terminal() bool {
	return s == TransferConfirmed || s == TransferFailed
}

// TransferKind distinguishes standalone transfers from batch children.
type TransferKind string

const (
	KindSingle TransferKind = "single"
	KindBatch  TransferKind = "batch"
)

// TransferRecord is the authoritative record of one transfer attempt. It is
// created in pending state only after a successful prepare step, with the
// amount and fee already computed. Signing happens off-system; the record
// stores whatever the client reports back.
type TransferRecord struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Owner       string    `gorm:"size:64;index"`
	FromAddress string    `gorm:"size:64;index"`
	ToAddress   string    `gorm:"size:64"`
	Amount      uint64    // lamports
	Fee         uint64    // lamports
	Memo        string    `gorm:"size:256"`
	Signature   string    `gorm:"size:128;index"`

	Status       TransferStatus `gorm:"size:16;index"`
	ErrorMessage string         `gorm:"size:512"`
	BlockHeight  *uint64

	Kind    TransferKind `gorm:"size:8"`
	BatchID *string      `gorm:"size:16;index"` // parent batch task, batch kind only

	CreatedAt   time.Time
	ConfirmedAt *time.Time
}

// BatchStatus is the aggregate state of a batch task, recomputed from its
// children's terminal outcomes.
type BatchStatus string

const (
	BatchPending            BatchStatus = "pending"
	BatchProcessing         BatchStatus = "processing"
	BatchCompleted          BatchStatus = "completed"
	BatchFailed             BatchStatus = "failed"
	BatchPartiallyCompleted BatchStatus = "partially_completed"
)

// BatchTask is the parent over many per-wallet transfer records sharing one
// destination and per-wallet amount. Invariants: Successful+Failed never
// exceeds TotalWallets; status becomes completed only when every child is
// terminal and none failed, partially_completed when every child is terminal
// and at least one failed.
type BatchTask struct {
	ID              string `gorm:"primaryKey;size:16"`
	Owner           string `gorm:"size:64;index"`
	ToAddress       string `gorm:"size:64"`
	AmountPerWallet uint64 // lamports
	TotalWallets    int
	Successful      int
	Failed          int
	TotalAmount     uint64 // lamports, across the sufficient subset at plan time
	TotalFees       uint64 // lamports

	Status       BatchStatus `gorm:"size:24;index"`
	Memo         string      `gorm:"size:256"`
	ErrorMessage string      `gorm:"size:512"`

	CreatedAt   time.Time
	CompletedAt *time.Time
}
