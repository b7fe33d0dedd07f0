package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/custodia-labs/custodia/core"
	"github.com/custodia-labs/custodia/ports"
)

// Wallets persists custodial keypairs. Every query is scoped to an owner.
type Wallets struct {
	db *gorm.DB
}

// NewWallets creates the wallet store.
func NewWallets(db *gorm.DB) *Wallets {
	return &Wallets{db: db}
}

var _ ports.WalletStore = (*Wallets)(nil)

// Create inserts a wallet row.
func (s *Wallets) Create(ctx context.Context, w *core.Wallet) error {
	return s.db.WithContext(ctx).Create(w).Error
}

// ByOwner returns every wallet of the owner, newest first.
func (s *Wallets) ByOwner(ctx context.Context, owner string) ([]core.Wallet, error) {
	var wallets []core.Wallet
	err := s.db.WithContext(ctx).
		Where("owner = ?", owner).
		Order("created_at DESC").
		Find(&wallets).Error
	if err != nil {
		return nil, err
	}
	return wallets, nil
}

// ByOwnerAndAddress resolves one wallet by its public address, scoped to the
// owner.
func (s *Wallets) ByOwnerAndAddress(ctx context.Context, owner, address string) (*core.Wallet, error) {
	var w core.Wallet
	err := s.db.WithContext(ctx).
		Where("owner = ? AND public_key = ?", owner, address).
		First(&w).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, core.ErrWalletNotFound
		}
		return nil, err
	}
	return &w, nil
}

// ByOwnerAndIDs resolves the subset of ids owned by owner. Callers compare
// the result length against the request to detect foreign ids.
func (s *Wallets) ByOwnerAndIDs(ctx context.Context, owner string, ids []uuid.UUID) ([]core.Wallet, error) {
	var wallets []core.Wallet
	err := s.db.WithContext(ctx).
		Where("owner = ? AND id IN ?", owner, ids).
		Find(&wallets).Error
	if err != nil {
		return nil, err
	}
	return wallets, nil
}

// UpdateBalance refreshes the advisory balance cache of one wallet.
func (s *Wallets) UpdateBalance(ctx context.Context, id uuid.UUID, lamports uint64, at time.Time) error {
	return s.db.WithContext(ctx).
		Model(&core.Wallet{}).
		Where("id = ?", id).
		Updates(map[string]any{"balance": lamports, "checked_at": at}).Error
}

// Rename updates a wallet's display name, scoped to the owner.
func (s *Wallets) Rename(ctx context.Context, owner string, id uuid.UUID, name string) (*core.Wallet, error) {
	var w core.Wallet
	err := s.db.WithContext(ctx).
		Where("owner = ? AND id = ?", owner, id).
		First(&w).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, core.ErrWalletNotFound
		}
		return nil, err
	}
	w.Name = name
	if err := s.db.WithContext(ctx).Save(&w).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

// Delete removes the owner's wallets with the given ids and reports how many
// rows went away.
func (s *Wallets) Delete(ctx context.Context, owner string, ids []uuid.UUID) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("owner = ? AND id IN ?", owner, ids).
		Delete(&core.Wallet{})
	return res.RowsAffected, res.Error
}
