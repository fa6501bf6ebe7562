package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/markit/markit-server/internal/orders"
	dbpkg "github.com/markit/markit-server/pkg/db"
	"github.com/markit/markit-server/pkg/enums"
	pkgerrors "github.com/markit/markit-server/pkg/errors"
)

const (
	dayLayout     = "2006-01-02"
	instantLayout = "2006-01-02 15:04:05"
)

// Service answers the delivery app's order and earnings screens.
type Service interface {
	Orders(ctx context.Context, partnerID uuid.UUID) ([]orders.OrderDetail, error)
	OrdersOn(ctx context.Context, partnerID uuid.UUID, day string) ([]orders.OrderDetail, error)
	LastOrder(ctx context.Context, partnerID uuid.UUID) (*orders.OrderDetail, error)
	Order(ctx context.Context, partnerID, orderID uuid.UUID) (*orders.OrderDetail, error)
	Earnings(ctx context.Context, partnerID uuid.UUID, period string) (*EarningsSummary, error)
	EarningDetails(ctx context.Context, partnerID uuid.UUID, period string) ([]EarningRow, error)
}

type ServiceParams struct {
	Repo     Repository
	Location *time.Location
	Now      func() time.Time
}

type service struct {
	repo Repository
	loc  *time.Location
	now  func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("delivery repository required")
	}
	loc := params.Location
	if loc == nil {
		loc = time.UTC
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{repo: params.Repo, loc: loc, now: now}, nil
}

func (s *service) Orders(ctx context.Context, partnerID uuid.UUID) ([]orders.OrderDetail, error) {
	rows, err := s.repo.ListAssigned(ctx, partnerID)
	if err != nil {
		return nil, dbpkg.MapError(err, "Failed to load orders")
	}
	return details(rows), nil
}

// OrdersOn lists orders due for delivery on the given calendar day in the
// service zone. A value with a clock time ("2006-01-02 15:04:05") matches that
// delivery second only.
func (s *service) OrdersOn(ctx context.Context, partnerID uuid.UUID, day string) ([]orders.OrderDetail, error) {
	from, to, err := s.deliveryWindow(strings.TrimSpace(day))
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.ListDelivered(ctx, partnerID, from.UTC(), to.UTC())
	if err != nil {
		return nil, dbpkg.MapError(err, "Failed to load orders")
	}
	return details(rows), nil
}

func (s *service) deliveryWindow(raw string) (time.Time, time.Time, error) {
	if strings.Contains(raw, ":") {
		for _, layout := range []string{instantLayout, time.RFC3339} {
			if instant, err := time.ParseInLocation(layout, raw, s.loc); err == nil {
				return instant, instant.Add(time.Second), nil
			}
		}
		return time.Time{}, time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "day must be formatted YYYY-MM-DD or YYYY-MM-DD HH:MM:SS")
	}
	start, err := time.ParseInLocation(dayLayout, raw, s.loc)
	if err != nil {
		return time.Time{}, time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "day must be formatted YYYY-MM-DD")
	}
	return start, start.AddDate(0, 0, 1), nil
}

func (s *service) LastOrder(ctx context.Context, partnerID uuid.UUID) (*orders.OrderDetail, error) {
	order, err := s.repo.LastAssigned(ctx, partnerID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "No orders found")
	}
	if err != nil {
		return nil, dbpkg.MapError(err, "Failed to load order")
	}
	detail := orders.NewOrderDetail(*order)
	return &detail, nil
}

func (s *service) Order(ctx context.Context, partnerID, orderID uuid.UUID) (*orders.OrderDetail, error) {
	order, err := s.repo.FindAssigned(ctx, partnerID, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Order not found")
	}
	if err != nil {
		return nil, dbpkg.MapError(err, "Failed to load order")
	}
	detail := orders.NewOrderDetail(*order)
	return &detail, nil
}

func (s *service) Earnings(ctx context.Context, partnerID uuid.UUID, period string) (*EarningsSummary, error) {
	p, since, err := s.periodStart(period)
	if err != nil {
		return nil, err
	}
	totals, err := s.repo.SumEarnings(ctx, partnerID, since.UTC())
	if err != nil {
		return nil, dbpkg.MapError(err, "Failed to load earnings")
	}
	summary := newEarningsSummary(p, since, totals)
	return &summary, nil
}

func (s *service) EarningDetails(ctx context.Context, partnerID uuid.UUID, period string) ([]EarningRow, error) {
	_, since, err := s.periodStart(period)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.ListEarnings(ctx, partnerID, since.UTC())
	if err != nil {
		return nil, dbpkg.MapError(err, "Failed to load earnings")
	}
	out := make([]EarningRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, newEarningRow(row))
	}
	return out, nil
}

func (s *service) periodStart(raw string) (enums.EarningsPeriod, time.Time, error) {
	p, err := enums.ParseEarningsPeriod(strings.ToLower(strings.TrimSpace(raw)))
	if err != nil {
		return "", time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "Invalid period. Use day, week, month, or year")
	}
	return p, p.Start(s.now().In(s.loc)), nil
}
