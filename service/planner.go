package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/custodia-labs/custodia/core"
	"github.com/custodia-labs/custodia/internal/sol"
	"github.com/custodia-labs/custodia/ports"
)

// DefaultBalanceWorkers bounds the concurrent balance queries issued while
// planning a batch; the external node may rate limit.
const DefaultBalanceWorkers = 4

// RejectReason classifies why a transfer plan was refused. The checks run in
// a fixed order and the first failure wins.
type RejectReason string

const (
	RejectInvalidSource      RejectReason = "invalid_source_address"
	RejectInvalidDestination RejectReason = "invalid_destination_address"
	RejectNotOwner           RejectReason = "wallet_not_owned"
	RejectBalanceUnavailable RejectReason = "balance_unavailable"
	RejectInsufficientFunds  RejectReason = "insufficient_funds"
)

// Rejection is the typed refusal returned by the prepare operations. It is an
// error so handlers can pick it out with errors.As, but it represents an
// expected outcome, not a fault.
type Rejection struct {
	Reason RejectReason
	// Shortfall carries the missing lamports for insufficient-funds
	// rejections; that number is not sensitive and is meant for display.
	Shortfall uint64
}

func (r *Rejection) Error() string {
	if r.Reason == RejectInsufficientFunds {
		return fmt.Sprintf("%s: short %d lamports", r.Reason, r.Shortfall)
	}
	return string(r.Reason)
}

// Plan describes an affordable transfer before any record exists. Preparing
// is side-effect free and can be repeated.
type Plan struct {
	FromAddress      string
	ToAddress        string
	Amount           uint64 // lamports
	Fee              uint64 // lamports
	TotalRequired    uint64 // Amount + Fee
	CurrentBalance   uint64 // lamports
	RemainingBalance uint64 // lamports left after the transfer
	Memo             string
}

// BatchWalletPlan is the per-wallet verdict inside a batch plan. Every
// requested wallet appears exactly once; an unaffordable wallet is reported,
// never dropped.
type BatchWalletPlan struct {
	WalletID   uuid.UUID
	Address    string
	Name       string
	Balance    *uint64 // nil when the balance could not be fetched
	Sufficient bool
	Shortfall  uint64 // lamports missing, zero when sufficient
}

// BatchPlan is the complete affordability breakdown for a batch request. The
// aggregate totals cover only the sufficient subset.
type BatchPlan struct {
	ToAddress       string
	AmountPerWallet uint64 // lamports
	Fee             uint64 // lamports, shared across all wallets in this plan
	Wallets         []BatchWalletPlan
	Sufficient      int
	Insufficient    int
	TotalAmount     uint64 // lamports, sufficient subset
	TotalFees       uint64 // lamports, sufficient subset
	Memo            string
}

// addLamports returns amount+fee and whether the sum fits in uint64. The
// affordability checks must never see a wrapped total.
func addLamports(amount, fee uint64) (uint64, bool) {
	if amount > math.MaxUint64-fee {
		return 0, false
	}
	return amount + fee, true
}

// Planner computes whether requested transfers are affordable against live
// balances and fees, and assembles unsigned plans. It never persists
// anything.
type Planner struct {
	wallets ports.WalletStore
	gateway ports.LedgerGateway
	workers int
	log     zerolog.Logger
}

// NewPlanner creates the transfer planner.
func NewPlanner(wallets ports.WalletStore, gateway ports.LedgerGateway, log zerolog.Logger) *Planner {
	return &Planner{
		wallets: wallets,
		gateway: gateway,
		workers: DefaultBalanceWorkers,
		log:     log,
	}
}

// ValidAddress reports whether s is structurally a valid address.
func (p *Planner) ValidAddress(s string) bool {
	return sol.ValidAddress(s)
}

// Fee returns the current per-signature fee estimate in lamports.
func (p *Planner) Fee(ctx context.Context) uint64 {
	return p.gateway.EstimateFee(ctx)
}

// PrepareSingle checks one transfer in order: source structurally valid,
// destination structurally valid, source owned by owner, balance known,
// balance covering amount plus fee. The first failing check returns a
// *Rejection; an exact cover (balance == amount + fee) is accepted.
func (p *Planner) PrepareSingle(ctx context.Context, owner, from, to string, amount uint64, memo string) (*Plan, error) {
	if !sol.ValidAddress(from) {
		return nil, &Rejection{Reason: RejectInvalidSource}
	}
	if !sol.ValidAddress(to) {
		return nil, &Rejection{Reason: RejectInvalidDestination}
	}

	if _, err := p.wallets.ByOwnerAndAddress(ctx, owner, from); err != nil {
		if errors.Is(err, core.ErrWalletNotFound) {
			return nil, &Rejection{Reason: RejectNotOwner}
		}
		return nil, fmt.Errorf("wallet lookup failed: %w", err)
	}

	fee := p.gateway.EstimateFee(ctx)

	balance, ok := p.gateway.Balance(ctx, from)
	if !ok {
		// Unknown is not zero: planning over an unknown balance is refused.
		return nil, &Rejection{Reason: RejectBalanceUnavailable}
	}

	required, ok := addLamports(amount, fee)
	if !ok {
		// amount + fee wraps uint64; no balance can cover it. The reported
		// shortfall saturates at the representable maximum.
		return nil, &Rejection{Reason: RejectInsufficientFunds, Shortfall: math.MaxUint64 - balance}
	}
	if balance < required {
		return nil, &Rejection{Reason: RejectInsufficientFunds, Shortfall: required - balance}
	}

	return &Plan{
		FromAddress:      from,
		ToAddress:        to,
		Amount:           amount,
		Fee:              fee,
		TotalRequired:    required,
		CurrentBalance:   balance,
		RemainingBalance: balance - required,
		Memo:             memo,
	}, nil
}

// PrepareBatch resolves the requested wallets, validates the destination
// once, fetches one shared fee estimate, then classifies every wallet
// independently with bounded concurrent balance queries. No wallet failure
// aborts the plan; the result always carries the full per-wallet breakdown.
//
// The shared fee is a documented simplification: fee estimation is treated as
// address- and time-invariant within one planning call.
func (p *Planner) PrepareBatch(ctx context.Context, owner string, walletIDs []uuid.UUID, to string, amountPerWallet uint64, memo string) (*BatchPlan, error) {
	wallets, err := p.wallets.ByOwnerAndIDs(ctx, owner, walletIDs)
	if err != nil {
		return nil, fmt.Errorf("wallet lookup failed: %w", err)
	}
	if len(wallets) < len(walletIDs) {
		// A batch quietly shrunk by foreign or unknown ids must not proceed.
		return nil, &Rejection{Reason: RejectNotOwner}
	}

	if !sol.ValidAddress(to) {
		return nil, &Rejection{Reason: RejectInvalidDestination}
	}

	fee := p.gateway.EstimateFee(ctx)
	required, payable := addLamports(amountPerWallet, fee)
	if !payable {
		// amount + fee wraps uint64: every wallet is insufficient, with the
		// per-wallet shortfall saturated at the representable maximum.
		required = math.MaxUint64
	}

	plans := make([]BatchWalletPlan, len(wallets))

	var wg sync.WaitGroup
	sem := make(chan struct{}, p.workers)
	for i := range wallets {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			w := wallets[i]
			entry := BatchWalletPlan{WalletID: w.ID, Address: w.PublicKey, Name: w.Name}

			balance, ok := p.gateway.Balance(ctx, w.PublicKey)
			if !ok {
				entry.Shortfall = required
				plans[i] = entry
				return
			}
			entry.Balance = &balance
			if payable && balance >= required {
				entry.Sufficient = true
			} else {
				entry.Shortfall = required - balance
			}
			plans[i] = entry
		}(i)
	}
	wg.Wait()

	plan := &BatchPlan{
		ToAddress:       to,
		AmountPerWallet: amountPerWallet,
		Fee:             fee,
		Wallets:         plans,
		Memo:            memo,
	}
	for _, entry := range plans {
		if entry.Sufficient {
			plan.Sufficient++
			plan.TotalAmount += amountPerWallet
			plan.TotalFees += fee
		} else {
			plan.Insufficient++
		}
	}

	p.log.Debug().
		Int("wallets", len(plans)).
		Int("sufficient", plan.Sufficient).
		Uint64("fee", fee).
		Msg("batch plan computed")
	return plan, nil
}
