package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/custodia-labs/custodia/core"
	"github.com/custodia-labs/custodia/ports"
)

// Users persists login subjects.
type Users struct {
	db *gorm.DB
}

// NewUsers creates the user store.
func NewUsers(db *gorm.DB) *Users {
	return &Users{db: db}
}

var _ ports.UserStore = (*Users)(nil)

// Upsert creates the user row if it does not exist yet.
func (s *Users) Upsert(ctx context.Context, address string) error {
	user := core.User{Address: address}
	err := s.db.WithContext(ctx).FirstOrCreate(&user, core.User{Address: address}).Error
	if err != nil {
		return fmt.Errorf("user upsert failed: %w", err)
	}
	return nil
}
