package trynbuy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/markit/markit-server/internal/inventory"
	"github.com/markit/markit-server/pkg/config"
	dbpkg "github.com/markit/markit-server/pkg/db"
	"github.com/markit/markit-server/pkg/db/models"
	"github.com/markit/markit-server/pkg/enums"
	pkgerrors "github.com/markit/markit-server/pkg/errors"
	"github.com/markit/markit-server/pkg/logger"
	"github.com/markit/markit-server/pkg/outbox"
	"github.com/markit/markit-server/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stockLedger interface {
	Reserve(ctx context.Context, tx *gorm.DB, itemID uuid.UUID, n int) (int, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type orderMetrics interface {
	IncCreated(deliveryType string, n int)
	IncShortage()
}

// Service builds Trynbuy orders from a checkout.
type Service interface {
	Create(ctx context.Context, input CheckoutInput) (*CheckoutResult, error)
}

// CheckoutResult lists one order per company plus any lines left out.
type CheckoutResult struct {
	Orders       []OrderDTO    `json:"orders"`
	SkippedItems []SkippedItem `json:"skippedItems"`
}

// SkippedItem is a cart line with no stock item for its size.
type SkippedItem struct {
	CompanyID uuid.UUID `json:"companyId"`
	VariantID uuid.UUID `json:"variantId"`
	Size      string    `json:"size"`
	Quantity  int       `json:"quantity"`
	Reason    string    `json:"reason"`
}

const skipReasonNoStockItem = "no stock item for selected size"

type ServiceParams struct {
	Tx        txRunner
	Repo      Repository
	Ledger    stockLedger
	Outbox    outboxPublisher
	Metrics   orderMetrics
	Logger    *logger.Logger
	Unmatched config.UnmatchedItemPolicy
}

type service struct {
	tx        txRunner
	repo      Repository
	ledger    stockLedger
	outbox    outboxPublisher
	metrics   orderMetrics
	logg      *logger.Logger
	unmatched config.UnmatchedItemPolicy
}

// NewService builds the order builder.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("trynbuy repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	ledger := params.Ledger
	if ledger == nil {
		ledger = inventory.NewLedger()
	}
	policy := params.Unmatched
	if policy == "" {
		policy = config.UnmatchedItemSkip
	}
	if !policy.IsValid() {
		return nil, fmt.Errorf("invalid unmatched item policy %q", policy)
	}
	return &service{
		tx:        params.Tx,
		repo:      params.Repo,
		ledger:    ledger,
		outbox:    params.Outbox,
		metrics:   params.Metrics,
		logg:      params.Logger,
		unmatched: policy,
	}, nil
}

// lineShortage carries the line a reservation failed on out of the tx.
type lineShortage struct {
	cause    *inventory.InsufficientStockError
	itemName string
	size     string
}

func (e *lineShortage) Error() string { return e.cause.Error() }

func (e *lineShortage) Unwrap() error { return e.cause }

func (s *service) Create(ctx context.Context, input CheckoutInput) (*CheckoutResult, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	ctx = s.logg.WithClientID(ctx, input.ClientID.String())

	result := &CheckoutResult{SkippedItems: []SkippedItem{}}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		result.Orders = result.Orders[:0]
		result.SkippedItems = result.SkippedItems[:0]

		for _, company := range input.Companies {
			order, skipped, err := s.buildCompanyOrder(ctx, tx, repo, input, company)
			if err != nil {
				return err
			}
			result.Orders = append(result.Orders, NewOrderDTO(*order))
			result.SkippedItems = append(result.SkippedItems, skipped...)
		}
		return nil
	})
	if err != nil {
		return nil, s.translate(ctx, err)
	}

	if s.metrics != nil {
		s.metrics.IncCreated(string(input.DeliveryType), len(result.Orders))
	}
	s.logg.Info(s.logg.WithField(ctx, "order_count", len(result.Orders)), "trynbuy checkout committed")
	return result, nil
}

func (s *service) buildCompanyOrder(ctx context.Context, tx *gorm.DB, repo Repository, input CheckoutInput, company CompanyInput) (*models.Trynbuy, []SkippedItem, error) {
	order := &models.Trynbuy{
		CheckoutMethod:  input.CheckoutMethod,
		Subtotal:        input.Subtotal,
		ProductDiscount: input.ProductDiscount,
		TotalDiscount:   input.TotalDiscount,
		Shipping:        input.Shipping,
		DeliveryType:    input.DeliveryType,
		DeliveryTime:    input.DeliveryTime,
		WaitingTime:     input.WaitingTime,
		WaitingFee:      input.WaitingFee,
		OrderStatus:     enums.InitialTrynbuyStatus(input.DeliveryType),
		PackingStatus:   enums.PackingStatusPending,
		LocationID:      input.LocationID,
		ClientID:        input.ClientID,
		CompanyID:       company.CompanyID,
	}
	if err := repo.CreateOrder(ctx, order); err != nil {
		return nil, nil, err
	}
	lineCtx := s.logg.WithFields(ctx, map[string]any{
		"company_id": company.CompanyID.String(),
		"trynbuy_id": order.ID.String(),
	})

	var skipped []SkippedItem
	// Lines run strictly in request order so each reservation sees the previous one.
	for _, line := range company.Lines {
		item, err := repo.FindStockItem(ctx, line.VariantID, line.Size)
		if err != nil {
			return nil, nil, err
		}
		if item == nil {
			if s.unmatched == config.UnmatchedItemReject {
				return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "No stock item matches the selected size").
					WithDetails(map[string]any{"variantId": line.VariantID.String(), "size": line.Size})
			}
			s.logg.Warn(s.logg.WithFields(lineCtx, map[string]any{
				"variant_id": line.VariantID.String(),
				"size":       line.Size,
			}), "no matching stock item, skipping cart line")
			skipped = append(skipped, SkippedItem{
				CompanyID: company.CompanyID,
				VariantID: line.VariantID,
				Size:      line.Size,
				Quantity:  line.Quantity,
				Reason:    skipReasonNoStockItem,
			})
			continue
		}

		cartItem := &models.TrynbuyCartItem{
			TrynbuyID: order.ID,
			VariantID: line.VariantID,
			ItemID:    item.ID,
			Quantity:  line.Quantity,
			Status:    enums.CartItemStatusPending,
		}
		if err := repo.CreateCartItem(ctx, cartItem); err != nil {
			return nil, nil, err
		}

		if _, err := s.ledger.Reserve(ctx, tx, item.ID, line.Quantity); err != nil {
			var shortage *inventory.InsufficientStockError
			if errors.As(err, &shortage) {
				name, nameErr := s.itemName(ctx, repo, line)
				if nameErr != nil {
					return nil, nil, nameErr
				}
				return nil, nil, &lineShortage{cause: shortage, itemName: name, size: line.Size}
			}
			return nil, nil, err
		}
	}

	stored, err := repo.FindOrderWithItems(ctx, order.ID)
	if err != nil {
		return nil, nil, err
	}

	var orderNumber int64
	if stored.OrderNumber != nil {
		orderNumber = *stored.OrderNumber
	}
	err = s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventTrynbuyCreated,
		AggregateType: enums.AggregateTrynbuy,
		AggregateID:   stored.ID,
		Actor:         &outbox.ActorRef{ID: input.ClientID, Role: enums.RoleClient},
		Data: payloads.TrynbuyCreatedEvent{
			TrynbuyID:    stored.ID,
			OrderNumber:  orderNumber,
			CompanyID:    stored.CompanyID,
			ClientID:     stored.ClientID,
			DeliveryType: stored.DeliveryType,
			OrderStatus:  stored.OrderStatus,
			ItemCount:    len(stored.CartItems),
			CreatedAt:    stored.CreatedAt,
		},
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, nil, err
	}
	return stored, skipped, nil
}

// itemName prefers the names the app sent and falls back to the catalog.
func (s *service) itemName(ctx context.Context, repo Repository, line LineInput) (string, error) {
	if name := line.DisplayName(); name != "" {
		return name, nil
	}
	variant, err := repo.FindVariant(ctx, line.VariantID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return line.VariantID.String(), nil
	}
	if err != nil {
		return "", err
	}
	if variant.Product != nil && variant.Product.Name != "" {
		return variant.Product.Name + "-" + variant.Name, nil
	}
	return variant.Name, nil
}

func (s *service) translate(ctx context.Context, err error) error {
	var shortage *lineShortage
	if errors.As(err, &shortage) {
		if s.metrics != nil {
			s.metrics.IncShortage()
		}
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"item_id":   shortage.cause.ItemID.String(),
			"remaining": shortage.cause.Remaining,
			"requested": shortage.cause.Requested,
		}), "trynbuy checkout rolled back on stock shortage")
		return pkgerrors.NewInsufficientStock(pkgerrors.StockShortage{
			ItemName:     shortage.itemName,
			Size:         shortage.size,
			RemainingQty: shortage.cause.Remaining,
		})
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	s.logg.Error(ctx, "trynbuy checkout failed", err)
	return dbpkg.MapError(err, "Failed to create trynbuy")
}
