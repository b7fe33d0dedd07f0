package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/custodia/adapters/store"
	"github.com/custodia-labs/custodia/core"
	"github.com/custodia-labs/custodia/internal/sol"
	"github.com/custodia-labs/custodia/ports"
)

type transferFixture struct {
	service *TransferService
	wallets *store.Wallets
	store   *store.Transfers
	gateway *stubGateway
	events  *countingEvents
}

func newTransferFixture(t *testing.T) *transferFixture {
	t.Helper()
	db := newTestDB(t)
	wallets := store.NewWallets(db)
	transfers := store.NewTransfers(db)
	gateway := newStubGateway()
	events := &countingEvents{}
	planner := NewPlanner(wallets, gateway, testLogger())
	return &transferFixture{
		service: NewTransferService(planner, transfers, gateway, events, testLogger()),
		wallets: wallets,
		store:   transfers,
		gateway: gateway,
		events:  events,
	}
}

func (f *transferFixture) fundedWallet(t *testing.T, lamports uint64) core.Wallet {
	t.Helper()
	w := seedWallet(t, f.wallets, testOwner, "w")
	f.gateway.setBalance(w.PublicKey, lamports)
	return w
}

func blockHeight(h uint64) *uint64 { return &h }

func TestExecuteSingleCreatesPendingRecord(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()
	w := f.fundedWallet(t, sol.LamportsPerSOL)

	result, err := f.service.ExecuteSingle(ctx, testOwner, w.PublicKey, sol.SystemProgramID, 1000, "rent")
	require.NoError(t, err)

	rec := result.Record
	assert.Equal(t, core.TransferPending, rec.Status)
	assert.Equal(t, core.KindSingle, rec.Kind)
	assert.Equal(t, uint64(1000), rec.Amount)
	assert.Equal(t, uint64(5000), rec.Fee)
	assert.Empty(t, rec.Signature)

	assert.Equal(t, "transfer", result.Instruction.Type)
	assert.Equal(t, w.PublicKey, result.Instruction.FromPubkey)
	assert.Equal(t, sol.SystemProgramID, result.Instruction.ProgramID)
	assert.True(t, result.BlockhashOK)
	assert.NotEmpty(t, result.Blockhash)

	stored, err := f.store.Record(ctx, testOwner, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, core.TransferPending, stored.Status)
}

func TestExecuteSingleRejectionCreatesNothing(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()
	w := f.fundedWallet(t, 1000)

	_, err := f.service.ExecuteSingle(ctx, testOwner, w.PublicKey, sol.SystemProgramID, 10_000, "")
	requireRejection(t, err, RejectInsufficientFunds)

	records, err := f.service.Records(ctx, testOwner, 0)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestConfirmStoresSignatureStaysPending(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()
	w := f.fundedWallet(t, sol.LamportsPerSOL)

	result, err := f.service.ExecuteSingle(ctx, testOwner, w.PublicKey, sol.SystemProgramID, 1000, "")
	require.NoError(t, err)

	rec, err := f.service.Confirm(ctx, testOwner, result.Record.ID, "sig-1")
	require.NoError(t, err)
	assert.Equal(t, "sig-1", rec.Signature)
	assert.Equal(t, core.TransferPending, rec.Status, "only reconciliation reaches a terminal state")
}

func TestConfirmUnknownRecord(t *testing.T) {
	f := newTransferFixture(t)
	_, err := f.service.Confirm(context.Background(), testOwner, uuid.New(), "sig")
	assert.ErrorIs(t, err, core.ErrRecordNotFound)
}

func TestReconcileConfirmsIdempotently(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()
	w := f.fundedWallet(t, sol.LamportsPerSOL)

	result, err := f.service.ExecuteSingle(ctx, testOwner, w.PublicKey, sol.SystemProgramID, 1000, "")
	require.NoError(t, err)
	_, err = f.service.Confirm(ctx, testOwner, result.Record.ID, "sig-1")
	require.NoError(t, err)

	// Not yet finalized: stays pending.
	rec, _, err := f.service.Reconcile(ctx, testOwner, "sig-1")
	require.NoError(t, err)
	assert.Equal(t, core.TransferPending, rec.Status)

	f.gateway.setStatus("sig-1", ports.TxStatus{Confirmed: true, BlockHeight: blockHeight(42)})

	rec, status, err := f.service.Reconcile(ctx, testOwner, "sig-1")
	require.NoError(t, err)
	assert.True(t, status.Confirmed)
	assert.Equal(t, core.TransferConfirmed, rec.Status)
	require.NotNil(t, rec.ConfirmedAt)
	require.NotNil(t, rec.BlockHeight)
	assert.Equal(t, uint64(42), *rec.BlockHeight)

	// Applying the same terminal outcome again changes nothing and fires no
	// second event.
	again, _, err := f.service.Reconcile(ctx, testOwner, "sig-1")
	require.NoError(t, err)
	assert.Equal(t, core.TransferConfirmed, again.Status)
	assert.Equal(t, rec.ConfirmedAt.Unix(), again.ConfirmedAt.Unix())

	confirmed, failed, _ := f.events.counts()
	assert.Equal(t, 1, confirmed)
	assert.Zero(t, failed)
}

func TestReconcileFailure(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()
	w := f.fundedWallet(t, sol.LamportsPerSOL)

	result, err := f.service.ExecuteSingle(ctx, testOwner, w.PublicKey, sol.SystemProgramID, 1000, "")
	require.NoError(t, err)
	_, err = f.service.Confirm(ctx, testOwner, result.Record.ID, "sig-1")
	require.NoError(t, err)

	f.gateway.setStatus("sig-1", ports.TxStatus{Confirmed: true, Err: `{"InstructionError":[0,"Custom"]}`})

	rec, _, err := f.service.Reconcile(ctx, testOwner, "sig-1")
	require.NoError(t, err)
	assert.Equal(t, core.TransferFailed, rec.Status)
	assert.NotEmpty(t, rec.ErrorMessage)
	assert.Nil(t, rec.ConfirmedAt)

	_, failed, _ := f.events.counts()
	assert.Equal(t, 1, failed)
}

func executeTestBatch(t *testing.T, f *transferFixture, walletCount int) *ExecutedBatch {
	t.Helper()
	ids := make([]uuid.UUID, 0, walletCount)
	for i := 0; i < walletCount; i++ {
		w := f.fundedWallet(t, sol.LamportsPerSOL)
		ids = append(ids, w.ID)
	}
	result, err := f.service.ExecuteBatch(context.Background(), testOwner, ids, sol.SystemProgramID, 1000, "payout")
	require.NoError(t, err)
	return result
}

func TestExecuteBatchCreatesRecordsForAffordableWallets(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()

	rich := f.fundedWallet(t, sol.LamportsPerSOL)
	poor := seedWallet(t, f.wallets, testOwner, "poor")
	f.gateway.setBalance(poor.PublicKey, 10)

	result, err := f.service.ExecuteBatch(ctx, testOwner, []uuid.UUID{rich.ID, poor.ID}, sol.SystemProgramID, 1000, "")
	require.NoError(t, err)

	assert.Equal(t, core.BatchPending, result.Task.Status)
	assert.Equal(t, 1, result.Task.TotalWallets, "only affordable wallets get records")
	require.Len(t, result.Items, 1)
	assert.Equal(t, rich.PublicKey, result.Items[0].FromAddress)

	// The unaffordable wallet still shows up in the plan breakdown.
	assert.Equal(t, 1, result.Plan.Insufficient)

	records, err := f.store.BatchRecords(ctx, result.Task.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, core.KindBatch, records[0].Kind)
}

func TestExecuteBatchAllInsufficientRejects(t *testing.T) {
	f := newTransferFixture(t)
	w := seedWallet(t, f.wallets, testOwner, "poor")
	f.gateway.setBalance(w.PublicKey, 10)

	_, err := f.service.ExecuteBatch(context.Background(), testOwner, []uuid.UUID{w.ID}, sol.SystemProgramID, 1000, "")
	requireRejection(t, err, RejectInsufficientFunds)
}

func TestBatchPartiallyCompleted(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()
	result := executeTestBatch(t, f, 3)

	outcomes := make([]BatchOutcome, 0, 3)
	for i, item := range result.Items {
		outcomes = append(outcomes, BatchOutcome{
			RecordID:  item.RecordID,
			Signature: "sig-" + string(rune('a'+i)),
		})
	}
	_, err := f.service.ConfirmBatch(ctx, testOwner, result.Task.ID, outcomes)
	require.NoError(t, err)

	f.gateway.setStatus("sig-a", ports.TxStatus{Confirmed: true, BlockHeight: blockHeight(1)})
	f.gateway.setStatus("sig-b", ports.TxStatus{Confirmed: true, BlockHeight: blockHeight(2)})
	f.gateway.setStatus("sig-c", ports.TxStatus{Confirmed: true, Err: `"AccountNotFound"`})

	// While only some children are terminal the batch stays non-terminal.
	_, _, err = f.service.Reconcile(ctx, testOwner, "sig-a")
	require.NoError(t, err)
	task, err := f.store.Batch(ctx, testOwner, result.Task.ID)
	require.NoError(t, err)
	assert.Equal(t, core.BatchProcessing, task.Status)
	assert.Nil(t, task.CompletedAt)

	_, _, err = f.service.Reconcile(ctx, testOwner, "sig-b")
	require.NoError(t, err)
	_, _, err = f.service.Reconcile(ctx, testOwner, "sig-c")
	require.NoError(t, err)

	task, err = f.store.Batch(ctx, testOwner, result.Task.ID)
	require.NoError(t, err)
	assert.Equal(t, core.BatchPartiallyCompleted, task.Status)
	assert.Equal(t, 2, task.Successful)
	assert.Equal(t, 1, task.Failed)
	require.NotNil(t, task.CompletedAt)

	// Re-reconciling a terminal child must not double-count or re-finish.
	_, _, err = f.service.Reconcile(ctx, testOwner, "sig-a")
	require.NoError(t, err)
	task, err = f.store.Batch(ctx, testOwner, result.Task.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, task.Successful)
	assert.Equal(t, 1, task.Failed)

	_, _, batches := f.events.counts()
	assert.Equal(t, 1, batches, "batch finish event fires exactly once")
}

func TestBatchAllFailed(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()
	result := executeTestBatch(t, f, 2)

	for i, item := range result.Items {
		sig := "sig-" + string(rune('a'+i))
		_, err := f.service.Confirm(ctx, testOwner, item.RecordID, sig)
		require.NoError(t, err)
		f.gateway.setStatus(sig, ports.TxStatus{Confirmed: true, Err: `"AccountNotFound"`})
		_, _, err = f.service.Reconcile(ctx, testOwner, sig)
		require.NoError(t, err)
	}

	// No child succeeded: the batch as a whole is failed, not partially
	// completed.
	task, err := f.store.Batch(ctx, testOwner, result.Task.ID)
	require.NoError(t, err)
	assert.Equal(t, core.BatchFailed, task.Status)
	assert.Zero(t, task.Successful)
	assert.Equal(t, 2, task.Failed)
	require.NotNil(t, task.CompletedAt)

	_, _, batches := f.events.counts()
	assert.Equal(t, 1, batches)
}

func TestBatchCompleted(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()
	result := executeTestBatch(t, f, 3)

	for i, item := range result.Items {
		sig := "sig-" + string(rune('a'+i))
		_, err := f.service.Confirm(ctx, testOwner, item.RecordID, sig)
		require.NoError(t, err)
		f.gateway.setStatus(sig, ports.TxStatus{Confirmed: true, BlockHeight: blockHeight(uint64(i + 1))})
		_, _, err = f.service.Reconcile(ctx, testOwner, sig)
		require.NoError(t, err)
	}

	task, err := f.store.Batch(ctx, testOwner, result.Task.ID)
	require.NoError(t, err)
	assert.Equal(t, core.BatchCompleted, task.Status)
	assert.Equal(t, 3, task.Successful)
	assert.Zero(t, task.Failed)
}

func TestConfirmBatchClientError(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()
	result := executeTestBatch(t, f, 2)

	task, err := f.service.ConfirmBatch(ctx, testOwner, result.Task.ID, []BatchOutcome{
		{RecordID: result.Items[0].RecordID, Signature: "sig-ok"},
		{RecordID: result.Items[1].RecordID, Error: "signing failed on device"},
	})
	require.NoError(t, err)

	// The client-side failure is terminal immediately; the signed one still
	// awaits reconciliation.
	assert.Equal(t, 1, task.Failed)
	assert.Zero(t, task.Successful)
	assert.Equal(t, core.BatchProcessing, task.Status)

	records, err := f.store.BatchRecords(ctx, result.Task.ID)
	require.NoError(t, err)
	statuses := map[core.TransferStatus]int{}
	for _, r := range records {
		statuses[r.Status]++
	}
	assert.Equal(t, 1, statuses[core.TransferFailed])
	assert.Equal(t, 1, statuses[core.TransferPending])
}

func TestBatchViewAndRecordsOrder(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()
	result := executeTestBatch(t, f, 2)

	view, err := f.service.Batch(ctx, testOwner, result.Task.ID)
	require.NoError(t, err)
	assert.Equal(t, result.Task.ID, view.Task.ID)
	assert.Len(t, view.Records, 2)

	_, err = f.service.Batch(ctx, "someone-else", result.Task.ID)
	assert.ErrorIs(t, err, core.ErrBatchNotFound)

	records, err := f.service.Records(ctx, testOwner, 1)
	require.NoError(t, err)
	assert.Len(t, records, 1, "limit is honored")
}
