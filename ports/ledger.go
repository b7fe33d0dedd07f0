package ports

import "context"

// TxStatus is the result of a transaction status lookup. Confirmed=false with
// every optional field empty is the degraded default on any transport
// failure; callers re-poll rather than treating it as a definitive failure.
type TxStatus struct {
	Confirmed   bool
	BlockHeight *uint64
	Err         string // non-empty when the chain recorded the transaction as failed
}

// LedgerGateway is the sole interface to the external chain. Every method is
// network-bound with a hard per-call deadline, and every failure mode
// (transport error, timeout, garbled response) degrades to the documented
// unknown/default result instead of surfacing an error: unknown balances are
// a distinct outcome, never zero.
type LedgerGateway interface {
	// Balance returns the address balance in lamports. ok=false means the
	// balance is unknown, which callers must treat differently from 0.
	Balance(ctx context.Context, address string) (lamports uint64, ok bool)

	// EstimateFee returns the per-signature fee in lamports. It always
	// produces an answer, degrading to a conservative fixed default when the
	// live query fails.
	EstimateFee(ctx context.Context) uint64

	// RecentBlockhash returns the latest blockhash, or ok=false when it could
	// not be fetched.
	RecentBlockhash(ctx context.Context) (string, bool)

	// TransactionStatus looks up the confirmation state of a signature.
	TransactionStatus(ctx context.Context, signature string) TxStatus
}
