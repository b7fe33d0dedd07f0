package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/custodia-labs/custodia/adapters/store"
	"github.com/custodia-labs/custodia/core"
	"github.com/custodia-labs/custodia/internal/sol"
	"github.com/custodia-labs/custodia/ports"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// A file-backed database: with ":memory:" every pooled connection would
	// see its own empty schema.
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, store.AutoMigrate(db))
	return db
}

// stubGateway answers from fixed maps. An address absent from balances is an
// unknown balance; a zero fee falls back to 5000.
type stubGateway struct {
	mu        sync.Mutex
	balances  map[string]uint64
	fee       uint64
	blockhash string
	statuses  map[string]ports.TxStatus
}

func newStubGateway() *stubGateway {
	return &stubGateway{
		balances:  make(map[string]uint64),
		fee:       5000,
		blockhash: "9sHcv6xwn9YkB8nxTUGKDwPwNnmqfp5hibnNy9XXbGmc",
		statuses:  make(map[string]ports.TxStatus),
	}
}

func (g *stubGateway) Balance(ctx context.Context, address string) (uint64, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	b, ok := g.balances[address]
	return b, ok
}

func (g *stubGateway) EstimateFee(ctx context.Context) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fee == 0 {
		return 5000
	}
	return g.fee
}

func (g *stubGateway) RecentBlockhash(ctx context.Context) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.blockhash, g.blockhash != ""
}

func (g *stubGateway) TransactionStatus(ctx context.Context, signature string) ports.TxStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.statuses[signature]
}

func (g *stubGateway) setBalance(address string, lamports uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.balances[address] = lamports
}

func (g *stubGateway) setStatus(signature string, status ports.TxStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statuses[signature] = status
}

var _ ports.LedgerGateway = (*stubGateway)(nil)

// countingEvents records how often each event fired.
type countingEvents struct {
	mu        sync.Mutex
	confirmed int
	failed    int
	batches   int
}

func (e *countingEvents) TransferConfirmed(ctx context.Context, rec *core.TransferRecord) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.confirmed++
	return nil
}

func (e *countingEvents) TransferFailed(ctx context.Context, rec *core.TransferRecord) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failed++
	return nil
}

func (e *countingEvents) BatchFinished(ctx context.Context, task *core.BatchTask) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.batches++
	return nil
}

func (e *countingEvents) counts() (int, int, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.confirmed, e.failed, e.batches
}

var _ ports.EventPublisher = (*countingEvents)(nil)

// seedWallet persists a wallet with a fresh keypair and returns it.
func seedWallet(t *testing.T, wallets ports.WalletStore, owner, name string) core.Wallet {
	t.Helper()
	kp, err := sol.GenerateKeypair()
	require.NoError(t, err)
	w := core.Wallet{
		ID:        uuid.New(),
		Owner:     owner,
		PublicKey: kp.Address,
		SecretKey: kp.SecretBase58(),
		Name:      name,
		Source:    core.SourceGenerated,
	}
	require.NoError(t, wallets.Create(context.Background(), &w))
	return w
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
