// Package inventory keeps stock counts correct under concurrent checkouts.
// All mutation goes through conditional updates inside the caller's tx.
package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/markit/markit-server/pkg/errors"
)

// InsufficientStockError is returned when a reservation would drive qty below zero.
type InsufficientStockError struct {
	ItemID    uuid.UUID
	Requested int
	Remaining int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for item %s: requested %d, remaining %d", e.ItemID, e.Requested, e.Remaining)
}

// Ledger reserves and releases stock on the items table.
type Ledger struct{}

func NewLedger() *Ledger {
	return &Ledger{}
}

type qtyRow struct {
	Qty int
}

// Reserve atomically takes n units of item and returns what is left.
func (l *Ledger) Reserve(ctx context.Context, tx *gorm.DB, itemID uuid.UUID, n int) (int, error) {
	if tx == nil {
		return 0, errors.New("transaction required")
	}
	if n <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	var rows []qtyRow
	err := tx.WithContext(ctx).
		Raw("UPDATE items SET qty = qty - ? WHERE id = ? AND qty >= ? RETURNING qty", n, itemID, n).
		Scan(&rows).Error
	if err != nil {
		return 0, fmt.Errorf("reserve item %s: %w", itemID, err)
	}
	if len(rows) == 1 {
		return rows[0].Qty, nil
	}

	remaining, err := l.available(ctx, tx, itemID)
	if err != nil {
		return 0, err
	}
	return 0, &InsufficientStockError{ItemID: itemID, Requested: n, Remaining: remaining}
}

// Release returns n units to item. It never fails on quantity, only on a missing row.
func (l *Ledger) Release(ctx context.Context, tx *gorm.DB, itemID uuid.UUID, n int) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if n <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	res := tx.WithContext(ctx).Exec("UPDATE items SET qty = qty + ? WHERE id = ?", n, itemID)
	if res.Error != nil {
		return fmt.Errorf("release item %s: %w", itemID, res.Error)
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "stock item not found").
			WithDetails(map[string]any{"itemId": itemID.String()})
	}
	return nil
}

// available reports the current qty, or 0 when the item does not exist.
func (l *Ledger) available(ctx context.Context, tx *gorm.DB, itemID uuid.UUID) (int, error) {
	var rows []qtyRow
	if err := tx.WithContext(ctx).Raw("SELECT qty FROM items WHERE id = ?", itemID).Scan(&rows).Error; err != nil {
		return 0, fmt.Errorf("read stock for item %s: %w", itemID, err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Qty, nil
}
