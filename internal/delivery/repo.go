package delivery

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/markit/markit-server/internal/orders"
	"github.com/markit/markit-server/pkg/db/models"
	"github.com/markit/markit-server/pkg/enums"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// EarningsTotals aggregates a partner's orders over a period. Orders without
// an earning row still count towards Orders.
type EarningsTotals struct {
	DeliverFees      decimal.Decimal
	WaitingFees      decimal.Decimal
	Tips             decimal.Decimal
	Surge            decimal.Decimal
	TotalDistance    float64
	TotalWaitingTime int64
	Orders           int64
}

// EarningLine is one assigned order with whatever the partner earned on it.
type EarningLine struct {
	TrynbuyID   uuid.UUID
	OrderStatus enums.TrynbuyStatus
	DeliverFees decimal.Decimal
	WaitingFees decimal.Decimal
	Tips        decimal.Decimal
	Surge       decimal.Decimal
	Distance    float64
	WaitingTime int
	CreatedAt   time.Time
}

// Repository reads orders and earnings scoped to one delivery partner.
type Repository interface {
	ListAssigned(ctx context.Context, partnerID uuid.UUID) ([]models.Trynbuy, error)
	ListDelivered(ctx context.Context, partnerID uuid.UUID, from, to time.Time) ([]models.Trynbuy, error)
	LastAssigned(ctx context.Context, partnerID uuid.UUID) (*models.Trynbuy, error)
	FindAssigned(ctx context.Context, partnerID, orderID uuid.UUID) (*models.Trynbuy, error)
	SumEarnings(ctx context.Context, partnerID uuid.UUID, since time.Time) (EarningsTotals, error)
	ListEarnings(ctx context.Context, partnerID uuid.UUID, since time.Time) ([]EarningLine, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) assigned(ctx context.Context, partnerID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("CartItems", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC").Order("id ASC")
		}).
		Preload("CartItems.Variant").
		Preload("CartItems.Variant.Product").
		Preload("CartItems.Item").
		Preload("Company").
		Preload("Location").
		Where("delivery_partner_id = ?", partnerID)
}

// byDeliveryTime sorts scheduled orders newest first and unscheduled ones last.
func byDeliveryTime(q *gorm.DB) *gorm.DB {
	return q.Order("delivery_time IS NULL").
		Order("delivery_time DESC").
		Order("created_at DESC").
		Order("id DESC")
}

// ListAssigned returns every order of the partner, newest first.
func (r *repository) ListAssigned(ctx context.Context, partnerID uuid.UUID) ([]models.Trynbuy, error) {
	var out []models.Trynbuy
	if err := r.assigned(ctx, partnerID).Order("created_at DESC").Order("id DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListDelivered returns the orders due for delivery in [from, to).
func (r *repository) ListDelivered(ctx context.Context, partnerID uuid.UUID, from, to time.Time) ([]models.Trynbuy, error) {
	q := r.assigned(ctx, partnerID).Where("delivery_time >= ? AND delivery_time < ?", from, to)
	var out []models.Trynbuy
	if err := byDeliveryTime(q).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repository) LastAssigned(ctx context.Context, partnerID uuid.UUID) (*models.Trynbuy, error) {
	var order models.Trynbuy
	if err := byDeliveryTime(r.assigned(ctx, partnerID)).Take(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}
func (r *repository) FindAssigned(ctx context.Context, partnerID, orderID uuid.UUID) (*models.Trynbuy, error) {
	var order models.Trynbuy
	err := orders.PreloadDetail(r.db.WithContext(ctx)).
		Where("id = ? AND delivery_partner_id = ?", orderID, partnerID).
		Take(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// periodOrders joins the partner's orders created since the period start to
// their earning rows.
func (r *repository) periodOrders(ctx context.Context, partnerID uuid.UUID, since time.Time) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("trynbuys AS t").
		Joins("LEFT JOIN delivery_partner_earnings AS dpe ON dpe.trynbuy_id = t.id").
		Where("t.delivery_partner_id = ? AND t.created_at >= ?", partnerID, since)
}

func (r *repository) SumEarnings(ctx context.Context, partnerID uuid.UUID, since time.Time) (EarningsTotals, error) {
	var totals EarningsTotals
	err := r.periodOrders(ctx, partnerID, since).
		Select(`COALESCE(SUM(dpe.deliver_fees), 0) AS deliver_fees,
			COALESCE(SUM(dpe.waiting_fees), 0) AS waiting_fees,
			COALESCE(SUM(dpe.tips), 0) AS tips,
			COALESCE(SUM(dpe.surge), 0) AS surge,
			COALESCE(SUM(dpe.distance), 0) AS total_distance,
			COALESCE(SUM(dpe.waiting_time), 0) AS total_waiting_time,
			COUNT(t.id) AS orders`).
		Scan(&totals).Error
	return totals, err
}

func (r *repository) ListEarnings(ctx context.Context, partnerID uuid.UUID, since time.Time) ([]EarningLine, error) {
	var rows []EarningLine
	err := r.periodOrders(ctx, partnerID, since).
		Select(`t.id AS trynbuy_id,
			t.order_status AS order_status,
			COALESCE(dpe.deliver_fees, 0) AS deliver_fees,
			COALESCE(dpe.waiting_fees, 0) AS waiting_fees,
			COALESCE(dpe.tips, 0) AS tips,
			COALESCE(dpe.surge, 0) AS surge,
			COALESCE(dpe.distance, 0) AS distance,
			COALESCE(dpe.waiting_time, 0) AS waiting_time,
			t.created_at AS created_at`).
		Order("t.created_at DESC").
		Order("t.id DESC").
		Scan(&rows).Error
	return rows, err
}
