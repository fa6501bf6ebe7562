package trynbuy

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/markit/markit-server/pkg/db/models"
	"gorm.io/gorm"
)

// Repository covers the tables the order builder writes.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindStockItem(ctx context.Context, variantID uuid.UUID, size string) (*models.Item, error)
	FindVariant(ctx context.Context, variantID uuid.UUID) (*models.Variant, error)
	CreateOrder(ctx context.Context, order *models.Trynbuy) error
	CreateCartItem(ctx context.Context, line *models.TrynbuyCartItem) error
	FindOrderWithItems(ctx context.Context, id uuid.UUID) (*models.Trynbuy, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a trynbuy repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// FindStockItem returns nil when the variant has no item in that size.
func (r *repository) FindStockItem(ctx context.Context, variantID uuid.UUID, size string) (*models.Item, error) {
	var item models.Item
	err := r.db.WithContext(ctx).
		Where("variant_id = ? AND size = ?", variantID, size).
		Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) FindVariant(ctx context.Context, variantID uuid.UUID) (*models.Variant, error) {
	var variant models.Variant
	err := r.db.WithContext(ctx).
		Preload("Product").
		Where("id = ?", variantID).
		Take(&variant).Error
	if err != nil {
		return nil, err
	}
	return &variant, nil
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Trynbuy) error {
	return r.db.WithContext(ctx).Omit("CartItems", "ReturnedItems", "Company", "Client", "Location", "Bill").Create(order).Error
}

func (r *repository) CreateCartItem(ctx context.Context, line *models.TrynbuyCartItem) error {
	return r.db.WithContext(ctx).Omit("Variant", "Item").Create(line).Error
}

func (r *repository) FindOrderWithItems(ctx context.Context, id uuid.UUID) (*models.Trynbuy, error) {
	var order models.Trynbuy
	err := r.db.WithContext(ctx).
		Preload("CartItems", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC").Order("id ASC")
		}).
		Where("id = ?", id).
		Take(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}
