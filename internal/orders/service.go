package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/markit/markit-server/pkg/db"
	"github.com/markit/markit-server/pkg/enums"
	pkgerrors "github.com/markit/markit-server/pkg/errors"
	"github.com/markit/markit-server/pkg/logger"
	"github.com/markit/markit-server/pkg/outbox"
	"github.com/markit/markit-server/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service defines order operations after checkout and before settlement.
type Service interface {
	UpdatePackingStatus(ctx context.Context, input PackingStatusInput) (*PackingStatusResult, error)
	ClientOrderDetail(ctx context.Context, clientID, orderID uuid.UUID) (*OrderDetail, error)
	ClientHistory(ctx context.Context, clientID uuid.UUID) ([]OrderDetail, error)
}

// PackingStatusInput is a shop floor update from a company user.
type PackingStatusInput struct {
	OrderID   uuid.UUID
	CompanyID uuid.UUID
	ActorID   uuid.UUID
	Status    enums.PackingStatus
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	logg   *logger.Logger
}

// NewService wires the order operations.
func NewService(repo Repository, tx txRunner, outbox outboxPublisher, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, tx: tx, outbox: outbox, logg: logg}, nil
}

var packableStatuses = []enums.TrynbuyStatus{
	enums.TrynbuyStatusReceived,
	enums.TrynbuyStatusScheduled,
}

func (s *service) UpdatePackingStatus(ctx context.Context, input PackingStatusInput) (*PackingStatusResult, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "status must be one of pending, packing, packed")
	}
	ctx = s.logg.WithTrynbuyID(ctx, input.OrderID.String())

	var result PackingStatusResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindOrder(ctx, input.OrderID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errOrderNotFound()
		}
		if err != nil {
			return err
		}
		if input.CompanyID != uuid.Nil && order.CompanyID != input.CompanyID {
			return errOrderNotFound()
		}
		if order.OrderStatus.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "Order has already been settled").
				WithDetails(map[string]any{"orderStatus": order.OrderStatus})
		}

		if err := repo.UpdatePackingStatus(ctx, order.ID, input.Status); err != nil {
			return err
		}
		order.PackingStatus = input.Status

		if input.Status == enums.PackingStatusPacked {
			advanced, err := repo.AdvanceOrderStatus(ctx, order.ID, packableStatuses, enums.TrynbuyStatusPacked)
			if err != nil {
				return err
			}
			if advanced {
				order.OrderStatus = enums.TrynbuyStatusPacked
			}
		}

		var actor *outbox.ActorRef
		if input.ActorID != uuid.Nil {
			actor = &outbox.ActorRef{ID: input.ActorID, Role: enums.RoleCompany}
		}
		now := time.Now().UTC()
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventTrynbuyUpdated,
			AggregateType: enums.AggregateTrynbuy,
			AggregateID:   order.ID,
			Actor:         actor,
			Data: payloads.TrynbuyUpdatedEvent{
				TrynbuyID:     order.ID,
				CompanyID:     order.CompanyID,
				ClientID:      order.ClientID,
				OrderStatus:   order.OrderStatus,
				PackingStatus: order.PackingStatus,
				UpdatedAt:     now,
			},
			OccurredAt: now,
		}); err != nil {
			return err
		}

		result = PackingStatusResult{
			ID:            order.ID,
			OrderStatus:   order.OrderStatus,
			PackingStatus: order.PackingStatus,
		}
		return nil
	})
	if err != nil {
		return nil, dbpkg.MapError(err, "Failed to update packing status")
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"packing_status": result.PackingStatus,
		"order_status":   result.OrderStatus,
	}), "packing status updated")
	return &result, nil
}

func (s *service) ClientOrderDetail(ctx context.Context, clientID, orderID uuid.UUID) (*OrderDetail, error) {
	order, err := s.repo.FindClientOrderDetail(ctx, orderID, clientID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errOrderNotFound()
	}
	if err != nil {
		return nil, dbpkg.MapError(err, "Failed to load order")
	}
	detail := NewOrderDetail(*order)
	return &detail, nil
}

// ClientHistory lists the client's orders newest first.
func (s *service) ClientHistory(ctx context.Context, clientID uuid.UUID) ([]OrderDetail, error) {
	orders, err := s.repo.ListClientOrders(ctx, clientID)
	if err != nil {
		return nil, dbpkg.MapError(err, "Failed to load order history")
	}
	out := make([]OrderDetail, 0, len(orders))
	for _, order := range orders {
		out = append(out, NewOrderDetail(order))
	}
	return out, nil
}

func errOrderNotFound() error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "Order not found")
}
