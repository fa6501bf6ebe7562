package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/markit/markit-server/pkg/db/models"
	"github.com/markit/markit-server/pkg/enums"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository handles settlement persistence. Every method is meant to run on
// the settlement tx.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindOrderForSettlement(ctx context.Context, id uuid.UUID) (*models.Trynbuy, error)
	MarkCartItem(ctx context.Context, id uuid.UUID, status enums.CartItemStatus) error
	CreateReturnedItem(ctx context.Context, item *models.TrynbuyReturnedItem) error
	TransitionStatus(ctx context.Context, id uuid.UUID, next enums.TrynbuyStatus) (bool, error)
	LockCompany(ctx context.Context, id uuid.UUID) (*models.Company, error)
	CreateBill(ctx context.Context, bill *models.Bill) error
	IncrementInvoiceCounter(ctx context.Context, companyID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a billing repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindOrderForSettlement(ctx context.Context, id uuid.UUID) (*models.Trynbuy, error) {
	var order models.Trynbuy
	err := r.db.WithContext(ctx).
		Preload("CartItems", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC").Order("id ASC")
		}).
		Preload("CartItems.Variant").
		Where("id = ?", id).
		Take(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) MarkCartItem(ctx context.Context, id uuid.UUID, status enums.CartItemStatus) error {
	res := r.db.WithContext(ctx).
		Model(&models.TrynbuyCartItem{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) CreateReturnedItem(ctx context.Context, item *models.TrynbuyReturnedItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

// TransitionStatus only moves orders that are not yet terminal. A false
// result means another settlement got there first.
func (r *repository) TransitionStatus(ctx context.Context, id uuid.UUID, next enums.TrynbuyStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Trynbuy{}).
		Where("id = ? AND order_status IN ?", id, enums.NonTerminalTrynbuyStatuses()).
		Updates(map[string]any{
			"order_status": next,
			"updated_at":   time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// LockCompany takes the row lock that serialises invoice numbering.
func (r *repository) LockCompany(ctx context.Context, id uuid.UUID) (*models.Company, error) {
	var company models.Company
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Take(&company).Error
	if err != nil {
		return nil, err
	}
	return &company, nil
}

func (r *repository) CreateBill(ctx context.Context, bill *models.Bill) error {
	return r.db.WithContext(ctx).Create(bill).Error
}

func (r *repository) IncrementInvoiceCounter(ctx context.Context, companyID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&models.Company{}).
		Where("id = ?", companyID).
		Update("invoice_counter", gorm.Expr("invoice_counter + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
