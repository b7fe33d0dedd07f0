package core

import (
	"time"

	"github.com/google/uuid"
)

// WalletSource records how a custodial keypair entered the system.
type WalletSource string

const (
	SourceGenerated WalletSource = "generated"
	SourceImported  WalletSource = "imported"
)

// Wallet is a custodial keypair owned by exactly one authenticated address.
// No read path may cross owners. The cached balance is advisory only and is
// refreshed on explicit request.
type Wallet struct {
	ID        uuid.UUID    `gorm:"type:uuid;primaryKey"`
	Owner     string       `gorm:"size:64;index"`
	PublicKey string       `gorm:"size:64;index"`
	SecretKey string       `gorm:"size:128"` // base58-encoded 64-byte ed25519 private key
	Name      string       `gorm:"size:128"`
	Source    WalletSource `gorm:"size:16"`

	// Balance caches the last observed balance in lamports. nil means the
	// balance has never been looked up; distinct from a known zero.
	Balance   *uint64
	CheckedAt *time.Time

	CreatedAt time.Time
}

// JobArchiveStatus tracks the asynchronous archive step of a generation job.
// The original export was fire and forget; modelling it as an observable
// state lets callers poll instead of guessing.
type JobArchiveStatus string

const (
	ArchivePending JobArchiveStatus = "pending"
	ArchiveDone    JobArchiveStatus = "done"
	ArchiveFailed  JobArchiveStatus = "failed"
)

// Job records one wallet-generation run and the state of its downloadable
// archive.
type Job struct {
	ID            string `gorm:"primaryKey;size:16"`
	Owner         string `gorm:"size:64;index"`
	Count         int
	Params        string           `gorm:"type:text"` // JSON-encoded generation parameters
	ArchivePath   string           `gorm:"size:255"`
	ArchiveStatus JobArchiveStatus `gorm:"size:16"`
	CreatedAt     time.Time
}
