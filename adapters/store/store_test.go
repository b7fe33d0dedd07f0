package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/custodia-labs/custodia/core"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open("", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))
	return db
}

func TestUsersUpsertIdempotent(t *testing.T) {
	users := NewUsers(testDB(t))
	ctx := context.Background()

	require.NoError(t, users.Upsert(ctx, "addr"))
	require.NoError(t, users.Upsert(ctx, "addr"))
}

func TestWalletsOwnerScoping(t *testing.T) {
	db := testDB(t)
	wallets := NewWallets(db)
	ctx := context.Background()

	mine := core.Wallet{ID: uuid.New(), Owner: "me", PublicKey: "pk-mine", Name: "w1"}
	theirs := core.Wallet{ID: uuid.New(), Owner: "them", PublicKey: "pk-theirs", Name: "w2"}
	require.NoError(t, wallets.Create(ctx, &mine))
	require.NoError(t, wallets.Create(ctx, &theirs))

	listed, err := wallets.ByOwner(ctx, "me")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "pk-mine", listed[0].PublicKey)

	_, err = wallets.ByOwnerAndAddress(ctx, "me", "pk-theirs")
	assert.ErrorIs(t, err, core.ErrWalletNotFound)

	subset, err := wallets.ByOwnerAndIDs(ctx, "me", []uuid.UUID{mine.ID, theirs.ID})
	require.NoError(t, err)
	assert.Len(t, subset, 1, "foreign ids must not resolve")

	deleted, err := wallets.Delete(ctx, "me", []uuid.UUID{theirs.ID})
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestTransfersNotFoundSentinels(t *testing.T) {
	transfers := NewTransfers(testDB(t))
	ctx := context.Background()

	_, err := transfers.Record(ctx, "me", uuid.New())
	assert.ErrorIs(t, err, core.ErrRecordNotFound)

	_, err = transfers.RecordBySignature(ctx, "me", "sig")
	assert.ErrorIs(t, err, core.ErrRecordNotFound)

	_, err = transfers.Batch(ctx, "me", "nope")
	assert.ErrorIs(t, err, core.ErrBatchNotFound)
}

func TestTransferRecordRoundTrip(t *testing.T) {
	transfers := NewTransfers(testDB(t))
	ctx := context.Background()

	rec := &core.TransferRecord{
		ID:          uuid.New(),
		Owner:       "me",
		FromAddress: "from",
		ToAddress:   "to",
		Amount:      1000,
		Fee:         5000,
		Status:      core.TransferPending,
		Kind:        core.KindSingle,
	}
	require.NoError(t, transfers.CreateRecord(ctx, rec))

	rec.Signature = "sig"
	require.NoError(t, transfers.UpdateRecord(ctx, rec))

	got, err := transfers.RecordBySignature(ctx, "me", "sig")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)

	_, err = transfers.RecordBySignature(ctx, "them", "sig")
	assert.ErrorIs(t, err, core.ErrRecordNotFound, "signatures resolve only within the owner scope")
}

func TestJobsArchiveUpdate(t *testing.T) {
	jobs := NewJobs(testDB(t))
	ctx := context.Background()

	job := &core.Job{ID: "job1", Owner: "me", Count: 3, ArchiveStatus: core.ArchivePending}
	require.NoError(t, jobs.Create(ctx, job))

	require.NoError(t, jobs.UpdateArchive(ctx, "job1", core.ArchiveDone, "/tmp/job1.zip"))

	got, err := jobs.Get(ctx, "me", "job1")
	require.NoError(t, err)
	assert.Equal(t, core.ArchiveDone, got.ArchiveStatus)
	assert.Equal(t, "/tmp/job1.zip", got.ArchivePath)

	_, err = jobs.Get(ctx, "them", "job1")
	assert.ErrorIs(t, err, core.ErrJobNotFound)
}
