package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/markit/markit-server/pkg/db/models"
	"github.com/markit/markit-server/pkg/enums"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

// NewRepository returns an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindOrder(ctx context.Context, id uuid.UUID) (*models.Trynbuy, error) {
	var order models.Trynbuy
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) UpdatePackingStatus(ctx context.Context, id uuid.UUID, status enums.PackingStatus) error {
	res := r.db.WithContext(ctx).
		Model(&models.Trynbuy{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"packing_status": status,
			"updated_at":     time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// AdvanceOrderStatus is a conditional update. False means the order had
// already moved past every status in from.
func (r *repository) AdvanceOrderStatus(ctx context.Context, id uuid.UUID, from []enums.TrynbuyStatus, next enums.TrynbuyStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Trynbuy{}).
		Where("id = ? AND order_status IN ?", id, from).
		Updates(map[string]any{
			"order_status": next,
			"updated_at":   time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) FindClientOrderDetail(ctx context.Context, id, clientID uuid.UUID) (*models.Trynbuy, error) {
	var order models.Trynbuy
	err := PreloadDetail(r.db.WithContext(ctx)).
		Where("id = ? AND client_id = ?", id, clientID).
		Take(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListClientOrders(ctx context.Context, clientID uuid.UUID) ([]models.Trynbuy, error) {
	var orders []models.Trynbuy
	err := r.db.WithContext(ctx).
		Preload("CartItems", orderedLines).
		Preload("CartItems.Variant").
		Preload("CartItems.Variant.Product").
		Preload("CartItems.Item").
		Preload("Company").
		Preload("Bill").
		Where("client_id = ?", clientID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// PreloadDetail loads everything an order detail screen shows.
func PreloadDetail(db *gorm.DB) *gorm.DB {
	return db.
		Preload("CartItems", orderedLines).
		Preload("CartItems.Variant").
		Preload("CartItems.Variant.Product").
		Preload("CartItems.Item").
		Preload("ReturnedItems").
		Preload("Company").
		Preload("Client").
		Preload("Location").
		Preload("Bill")
}

func orderedLines(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC").Order("id ASC")
}
