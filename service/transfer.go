package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/custodia-labs/custodia/core"
	"github.com/custodia-labs/custodia/internal/sol"
	"github.com/custodia-labs/custodia/ports"
)

// Record listing bounds.
const (
	DefaultRecordsLimit = 50
	MaxRecordsLimit     = 100
)

// keyedLocks serializes mutations per record or batch id. Records are
// independent once created, so there is no cross-record lock; only competing
// updates to the same id queue up.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{locks: make(map[string]*sync.Mutex)}
}

func (k *keyedLocks) lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// ExecutedTransfer is the result of creating a single transfer record: the
// pending record plus the unsigned instruction the client must sign and
// broadcast.
type ExecutedTransfer struct {
	Record      *core.TransferRecord
	Instruction sol.TransferInstruction
	Blockhash   string
	BlockhashOK bool
}

// BatchItem pairs a child record with its unsigned instruction.
type BatchItem struct {
	RecordID    uuid.UUID
	WalletID    uuid.UUID
	FromAddress string
	Instruction sol.TransferInstruction
}

// ExecutedBatch is the result of creating a batch: the task, one pending
// record per affordable wallet, and the shared blockhash.
type ExecutedBatch struct {
	Task        *core.BatchTask
	Plan        *BatchPlan
	Items       []BatchItem
	Blockhash   string
	BlockhashOK bool
}

// BatchOutcome is one client-reported signing result inside a batch
// confirmation: either a signature or an error per record.
type BatchOutcome struct {
	RecordID  uuid.UUID
	Signature string
	Error     string
}

// BatchView is the aggregate plus child-record view of one batch.
type BatchView struct {
	Task    *core.BatchTask
	Records []core.TransferRecord
}

// TransferService is the authoritative keeper of transfer records and batch
// tasks. It owns every state transition: creation after a successful prepare,
// signature confirmation, and reconciliation against the external ledger.
// pending is the only non-terminal state; confirmed and failed are never left.
type TransferService struct {
	planner *Planner
	store   ports.TransferStore
	gateway ports.LedgerGateway
	events  ports.EventPublisher
	locks   *keyedLocks
	now     func() time.Time
	log     zerolog.Logger
}

// NewTransferService creates the transfer service.
func NewTransferService(planner *Planner, store ports.TransferStore, gateway ports.LedgerGateway, events ports.EventPublisher, log zerolog.Logger) *TransferService {
	return &TransferService{
		planner: planner,
		store:   store,
		gateway: gateway,
		events:  events,
		locks:   newKeyedLocks(),
		now:     time.Now,
		log:     log,
	}
}

// Planner exposes the underlying planner for prepare-only calls.
func (s *TransferService) Planner() *Planner {
	return s.planner
}

// ExecuteSingle prepares a transfer and, on success, persists the pending
// record and returns the unsigned instruction. Prepare and create are
// adjacent but distinct: a failed prepare creates nothing.
func (s *TransferService) ExecuteSingle(ctx context.Context, owner, from, to string, amount uint64, memo string) (*ExecutedTransfer, error) {
	plan, err := s.planner.PrepareSingle(ctx, owner, from, to, amount, memo)
	if err != nil {
		return nil, err
	}

	rec := &core.TransferRecord{
		ID:          uuid.New(),
		Owner:       owner,
		FromAddress: plan.FromAddress,
		ToAddress:   plan.ToAddress,
		Amount:      plan.Amount,
		Fee:         plan.Fee,
		Memo:        plan.Memo,
		Status:      core.TransferPending,
		Kind:        core.KindSingle,
		CreatedAt:   s.now(),
	}
	if err := s.store.CreateRecord(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to create transfer record: %w", err)
	}

	blockhash, ok := s.gateway.RecentBlockhash(ctx)
	return &ExecutedTransfer{
		Record:      rec,
		Instruction: sol.NewTransferInstruction(rec.FromAddress, rec.ToAddress, rec.Amount),
		Blockhash:   blockhash,
		BlockhashOK: ok,
	}, nil
}

// Confirm records the client-reported signature. The record stays pending:
// submitted-but-unconfirmed is modeled as the same pending state, and only
// reconciliation against the chain moves it to a terminal one. Confirming a
// record that already reached a terminal state is a no-op.
func (s *TransferService) Confirm(ctx context.Context, owner string, recordID uuid.UUID, signature string) (*core.TransferRecord, error) {
	unlock := s.locks.lock(recordID.String())
	defer unlock()

	rec, err := s.store.Record(ctx, owner, recordID)
	if err != nil {
		return nil, err
	}
	if rec.Status.Terminal() {
		return rec, nil
	}

	rec.Signature = signature
	if err := s.store.UpdateRecord(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to store signature: %w", err)
	}
	return rec, nil
}

// Reconcile looks up the on-chain status of a signature and applies it to the
// owning record. Confirmed with no error moves the record to confirmed;
// confirmed with an error moves it to failed; not-yet-confirmed leaves it
// pending for a later poll. Applying a terminal outcome twice is a no-op.
func (s *TransferService) Reconcile(ctx context.Context, owner, signature string) (*core.TransferRecord, ports.TxStatus, error) {
	rec, err := s.store.RecordBySignature(ctx, owner, signature)
	if err != nil {
		return nil, ports.TxStatus{}, err
	}

	status := s.gateway.TransactionStatus(ctx, signature)
	if !status.Confirmed {
		return rec, status, nil
	}

	updated, err := s.applyOutcome(ctx, owner, rec.ID, func(r *core.TransferRecord) {
		if status.Err == "" {
			now := s.now()
			r.Status = core.TransferConfirmed
			r.ConfirmedAt = &now
			r.BlockHeight = status.BlockHeight
		} else {
			r.Status = core.TransferFailed
			r.ErrorMessage = status.Err
		}
	})
	if err != nil {
		return nil, ports.TxStatus{}, err
	}
	return updated, status, nil
}

// applyOutcome serializes a terminal transition for one record. The outcome
// function mutates the record into its terminal state; it runs only when the
// record is still pending, which makes repeated application idempotent. A
// genuine transition updates the parent batch and publishes the matching
// event.
func (s *TransferService) applyOutcome(ctx context.Context, owner string, recordID uuid.UUID, outcome func(*core.TransferRecord)) (*core.TransferRecord, error) {
	unlock := s.locks.lock(recordID.String())
	rec, err := s.store.Record(ctx, owner, recordID)
	if err != nil {
		unlock()
		return nil, err
	}
	if rec.Status.Terminal() {
		unlock()
		return rec, nil
	}

	outcome(rec)
	if err := s.store.UpdateRecord(ctx, rec); err != nil {
		unlock()
		return nil, fmt.Errorf("failed to update record: %w", err)
	}
	unlock()

	switch rec.Status {
	case core.TransferConfirmed:
		if err := s.events.TransferConfirmed(ctx, rec); err != nil {
			s.log.Warn().Err(err).Str("record", rec.ID.String()).Msg("confirmed event publish failed")
		}
	case core.TransferFailed:
		if err := s.events.TransferFailed(ctx, rec); err != nil {
			s.log.Warn().Err(err).Str("record", rec.ID.String()).Msg("failed event publish failed")
		}
	}

	if rec.BatchID != nil {
		if err := s.recomputeBatch(ctx, owner, *rec.BatchID); err != nil {
			s.log.Error().Err(err).Str("batch", *rec.BatchID).Msg("batch recompute failed")
		}
	}
	return rec, nil
}

// recomputeBatch rebuilds the batch counters and status from its children's
// states. Deriving the counters instead of incrementing them makes the
// aggregation idempotent: re-applying an already-terminal child outcome
// cannot double-count.
func (s *TransferService) recomputeBatch(ctx context.Context, owner, batchID string) error {
	unlock := s.locks.lock("batch:" + batchID)
	defer unlock()

	task, err := s.store.Batch(ctx, owner, batchID)
	if err != nil {
		return err
	}

	children, err := s.store.BatchRecords(ctx, batchID)
	if err != nil {
		return err
	}

	var confirmed, failed int
	for _, child := range children {
		switch child.Status {
		case core.TransferConfirmed:
			confirmed++
		case core.TransferFailed:
			failed++
		}
	}

	wasTerminal := task.Status == core.BatchCompleted || task.Status == core.BatchPartiallyCompleted || task.Status == core.BatchFailed
	task.Successful = confirmed
	task.Failed = failed

	switch {
	case len(children) > 0 && confirmed+failed == len(children):
		if failed == 0 {
			task.Status = core.BatchCompleted
		} else if confirmed == 0 {
			task.Status = core.BatchFailed
		} else {
			task.Status = core.BatchPartiallyCompleted
		}
		if task.CompletedAt == nil {
			now := s.now()
			task.CompletedAt = &now
		}
	case confirmed+failed > 0:
		task.Status = core.BatchProcessing
	}

	if err := s.store.UpdateBatch(ctx, task); err != nil {
		return fmt.Errorf("failed to update batch: %w", err)
	}

	isTerminal := task.Status == core.BatchCompleted || task.Status == core.BatchPartiallyCompleted || task.Status == core.BatchFailed
	if isTerminal && !wasTerminal {
		if err := s.events.BatchFinished(ctx, task); err != nil {
			s.log.Warn().Err(err).Str("batch", task.ID).Msg("batch event publish failed")
		}
	}
	return nil
}

// newBatchID generates the short hex identifier batch tasks use.
func newBatchID() (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate batch id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// ExecuteBatch plans a batch and persists the task plus one pending record
// per affordable wallet. Unaffordable wallets stay in the returned plan but
// get no record. A batch where no wallet can pay is rejected outright.
func (s *TransferService) ExecuteBatch(ctx context.Context, owner string, walletIDs []uuid.UUID, to string, amountPerWallet uint64, memo string) (*ExecutedBatch, error) {
	plan, err := s.planner.PrepareBatch(ctx, owner, walletIDs, to, amountPerWallet, memo)
	if err != nil {
		return nil, err
	}
	if plan.Sufficient == 0 {
		return nil, &Rejection{Reason: RejectInsufficientFunds}
	}

	id, err := newBatchID()
	if err != nil {
		return nil, err
	}

	task := &core.BatchTask{
		ID:              id,
		Owner:           owner,
		ToAddress:       plan.ToAddress,
		AmountPerWallet: plan.AmountPerWallet,
		TotalWallets:    plan.Sufficient,
		TotalAmount:     plan.TotalAmount,
		TotalFees:       plan.TotalFees,
		Status:          core.BatchPending,
		Memo:            plan.Memo,
		CreatedAt:       s.now(),
	}
	if err := s.store.CreateBatch(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create batch task: %w", err)
	}

	items := make([]BatchItem, 0, plan.Sufficient)
	for _, entry := range plan.Wallets {
		if !entry.Sufficient {
			continue
		}
		rec := &core.TransferRecord{
			ID:          uuid.New(),
			Owner:       owner,
			FromAddress: entry.Address,
			ToAddress:   plan.ToAddress,
			Amount:      plan.AmountPerWallet,
			Fee:         plan.Fee,
			Memo:        plan.Memo,
			Status:      core.TransferPending,
			Kind:        core.KindBatch,
			BatchID:     &task.ID,
			CreatedAt:   s.now(),
		}
		if err := s.store.CreateRecord(ctx, rec); err != nil {
			return nil, fmt.Errorf("failed to create batch record: %w", err)
		}
		items = append(items, BatchItem{
			RecordID:    rec.ID,
			WalletID:    entry.WalletID,
			FromAddress: entry.Address,
			Instruction: sol.NewTransferInstruction(entry.Address, plan.ToAddress, plan.AmountPerWallet),
		})
	}

	blockhash, ok := s.gateway.RecentBlockhash(ctx)
	s.log.Info().
		Str("batch", task.ID).
		Int("records", len(items)).
		Msg("batch created")
	return &ExecutedBatch{
		Task:        task,
		Plan:        plan,
		Items:       items,
		Blockhash:   blockhash,
		BlockhashOK: ok,
	}, nil
}

// ConfirmBatch applies a list of client-reported signing outcomes. A
// signature is recorded like a single confirm (the record stays pending until
// reconciliation); a client-side signing error is a terminal failure for that
// record. Outcomes for unknown records are skipped rather than failing the
// rest of the list.
func (s *TransferService) ConfirmBatch(ctx context.Context, owner, batchID string, outcomes []BatchOutcome) (*core.BatchTask, error) {
	if _, err := s.store.Batch(ctx, owner, batchID); err != nil {
		return nil, err
	}

	for _, outcome := range outcomes {
		if outcome.Error != "" {
			msg := outcome.Error
			_, err := s.applyOutcome(ctx, owner, outcome.RecordID, func(r *core.TransferRecord) {
				r.Status = core.TransferFailed
				r.ErrorMessage = msg
			})
			if err != nil {
				s.log.Warn().Err(err).Str("record", outcome.RecordID.String()).Msg("batch outcome skipped")
			}
			continue
		}
		if _, err := s.Confirm(ctx, owner, outcome.RecordID, outcome.Signature); err != nil {
			s.log.Warn().Err(err).Str("record", outcome.RecordID.String()).Msg("batch confirm skipped")
		}
	}

	return s.store.Batch(ctx, owner, batchID)
}

// Records lists the owner's transfer records, newest first. The limit is
// clamped to MaxRecordsLimit; zero or negative requests get the default.
func (s *TransferService) Records(ctx context.Context, owner string, limit int) ([]core.TransferRecord, error) {
	if limit <= 0 {
		limit = DefaultRecordsLimit
	}
	if limit > MaxRecordsLimit {
		limit = MaxRecordsLimit
	}
	return s.store.RecordsByOwner(ctx, owner, limit)
}

// Batch returns the aggregate and child-record view of one batch.
func (s *TransferService) Batch(ctx context.Context, owner, batchID string) (*BatchView, error) {
	task, err := s.store.Batch(ctx, owner, batchID)
	if err != nil {
		return nil, err
	}
	records, err := s.store.BatchRecords(ctx, batchID)
	if err != nil {
		return nil, err
	}
	return &BatchView{Task: task, Records: records}, nil
}
