package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/markit/markit-server/internal/inventory"
	dbpkg "github.com/markit/markit-server/pkg/db"
	"github.com/markit/markit-server/pkg/db/models"
	"github.com/markit/markit-server/pkg/enums"
	pkgerrors "github.com/markit/markit-server/pkg/errors"
	"github.com/markit/markit-server/pkg/logger"
	"github.com/markit/markit-server/pkg/metrics"
	"github.com/markit/markit-server/pkg/outbox"
	"github.com/markit/markit-server/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stockReleaser interface {
	Release(ctx context.Context, tx *gorm.DB, itemID uuid.UUID, n int) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type settlementMetrics interface {
	ObserveSettlement(outcome string, duration time.Duration)
}

// LineInput names one cart line in a settlement partition. Quantity is
// optional and must equal the reserved quantity when present.
type LineInput struct {
	VariantID uuid.UUID
	ItemID    uuid.UUID
	Quantity  *int
}

// SettleInput is the delivery-time outcome of an order.
type SettleInput struct {
	TrynbuyID     uuid.UUID
	CompanyID     uuid.UUID
	ActorID       uuid.UUID
	PaymentMethod string
	TransactionID *string
	Subtotal      decimal.Decimal
	GrandTotal    decimal.Decimal
	Discount      decimal.Decimal
	DeliveryFees  decimal.Decimal
	WaitingFee    decimal.Decimal
	Kept          []LineInput
	Returned      []LineInput
}

// SettleResult is what the settlement endpoint returns.
type SettleResult struct {
	Success       bool       `json:"success"`
	BillCreated   bool       `json:"billCreated"`
	BillID        *uuid.UUID `json:"billId,omitempty"`
	InvoiceNumber *int64     `json:"invoiceNumber,omitempty"`
}

// Service settles delivered orders.
type Service interface {
	Settle(ctx context.Context, input SettleInput) (*SettleResult, error)
}

type ServiceParams struct {
	Tx      txRunner
	Repo    Repository
	Ledger  stockReleaser
	Outbox  outboxPublisher
	Metrics settlementMetrics
	Logger  *logger.Logger
}

type service struct {
	tx      txRunner
	repo    Repository
	ledger  stockReleaser
	outbox  outboxPublisher
	metrics settlementMetrics
	logg    *logger.Logger
	now     func() time.Time
}

// NewService builds the billing engine.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, errors.New("tx runner is required")
	}
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.Outbox == nil {
		return nil, errors.New("outbox publisher is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	ledger := params.Ledger
	if ledger == nil {
		ledger = inventory.NewLedger()
	}
	return &service{
		tx:      params.Tx,
		repo:    params.Repo,
		ledger:  ledger,
		outbox:  params.Outbox,
		metrics: params.Metrics,
		logg:    params.Logger,
		now:     time.Now,
	}, nil
}

func (in SettleInput) validate() error {
	if in.TrynbuyID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "trynbuyId is required")
	}
	if in.CompanyID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "companyId is required")
	}
	if strings.TrimSpace(in.PaymentMethod) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "paymentMethod is required")
	}
	if len(in.Kept)+len(in.Returned) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "keptItems or returnedItems must list the order's items")
	}
	for _, fee := range []decimal.Decimal{in.DeliveryFees, in.WaitingFee} {
		if fee.IsNegative() {
			return pkgerrors.New(pkgerrors.CodeValidation, "fees cannot be negative")
		}
	}
	for _, line := range append(append([]LineInput{}, in.Kept...), in.Returned...) {
		if line.ItemID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "every settled item needs an itemId")
		}
		if line.Quantity != nil && *line.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be greater than zero")
		}
	}
	return nil
}

// Settle applies kept and returned partitions in one tx: returned stock goes
// back, and when anything was kept a bill is cut under the company counter lock.
func (s *service) Settle(ctx context.Context, input SettleInput) (*SettleResult, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	ctx = s.logg.WithTrynbuyID(ctx, input.TrynbuyID.String())
	ctx = s.logg.WithCompanyID(ctx, input.CompanyID.String())

	started := s.now()
	var result *SettleResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		res, err := s.settle(ctx, tx, input)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	elapsed := s.now().Sub(started)
	if err != nil {
		s.observe(metrics.OutcomeFailed, elapsed)
		if pkgerrors.As(err) == nil {
			s.logg.Error(ctx, "trynbuy settlement failed", err)
		}
		return nil, dbpkg.MapError(err, "Failed to settle trynbuy")
	}

	if result.BillCreated {
		s.observe(metrics.OutcomeBilled, elapsed)
		s.logg.Info(s.logg.WithField(ctx, "invoice_number", *result.InvoiceNumber), "trynbuy settled with bill")
	} else {
		s.observe(metrics.OutcomeCompleted, elapsed)
		s.logg.Info(ctx, "trynbuy settled with every item returned")
	}
	return result, nil
}

func (s *service) settle(ctx context.Context, tx *gorm.DB, input SettleInput) (*SettleResult, error) {
	repo := s.repo.WithTx(tx)

	order, err := repo.FindOrderForSettlement(ctx, input.TrynbuyID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Order not found")
	}
	if err != nil {
		return nil, err
	}
	if order.CompanyID != input.CompanyID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Order not found")
	}
	if order.OrderStatus.IsTerminal() {
		return nil, errAlreadySettled(order.OrderStatus)
	}

	lines, err := matchPartition(order.CartItems, input.Kept, input.Returned)
	if err != nil {
		return nil, err
	}

	entries := make([]models.BillEntry, 0, len(lines))
	var keptEntries, returnedEntries []models.BillEntry
	for _, sl := range lines {
		line := sl.line
		if line.Variant == nil {
			return nil, fmt.Errorf("variant %s missing for cart item %s", line.VariantID, line.ID)
		}
		if sl.kept {
			if err := repo.MarkCartItem(ctx, line.ID, enums.CartItemStatusKept); err != nil {
				return nil, err
			}
			keptEntries = append(keptEntries, keptEntry(*line.Variant, line.ItemID, line.Quantity))
			continue
		}

		returned := &models.TrynbuyReturnedItem{
			TrynbuyID: order.ID,
			VariantID: line.VariantID,
			ItemID:    line.ItemID,
			Quantity:  line.Quantity,
		}
		if err := repo.CreateReturnedItem(ctx, returned); err != nil {
			return nil, err
		}
		if err := s.ledger.Release(ctx, tx, line.ItemID, line.Quantity); err != nil {
			return nil, err
		}
		if err := repo.MarkCartItem(ctx, line.ID, enums.CartItemStatusReturned); err != nil {
			return nil, err
		}
		returnedEntries = append(returnedEntries, returnedEntry(*line.Variant, line.ItemID, line.Quantity))
	}
	entries = append(append(entries, keptEntries...), returnedEntries...)

	event := payloads.TrynbuySettledEvent{
		TrynbuyID:     order.ID,
		CompanyID:     order.CompanyID,
		ClientID:      order.ClientID,
		PaymentMethod: input.PaymentMethod,
		KeptCount:     len(keptEntries),
		ReturnedCount: len(returnedEntries),
	}

	if len(keptEntries) == 0 {
		if err := s.transition(ctx, repo, order, enums.TrynbuyStatusCompleted); err != nil {
			return nil, err
		}
		event.OrderStatus = enums.TrynbuyStatusCompleted
		event.Subtotal, event.Discount, event.GrandTotal = decimal.Zero, decimal.Zero, decimal.Zero
		if err := s.emitSettled(ctx, tx, input.ActorID, event); err != nil {
			return nil, err
		}
		return &SettleResult{Success: true, BillCreated: false}, nil
	}

	company, err := repo.LockCompany(ctx, order.CompanyID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Company not found")
	}
	if err != nil {
		return nil, err
	}

	totals := computeTotals(entries, input.DeliveryFees, input.WaitingFee)
	s.checkAdvisoryTotals(ctx, input, totals)

	bill := &models.Bill{
		CompanyID:     company.ID,
		TrynbuyID:     order.ID,
		InvoiceNumber: company.InvoiceCounter,
		Subtotal:      totals.Subtotal,
		GrandTotal:    totals.GrandTotal,
		Discount:      totals.Discount,
		DeliveryFee:   input.DeliveryFees,
		WaitingFee:    input.WaitingFee,
		PaymentMethod: input.PaymentMethod,
		PaymentStatus: enums.PaymentStatusPaid,
		TransactionID: input.TransactionID,
		Entries:       entries,
	}
	if err := repo.CreateBill(ctx, bill); err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "bill already exists for this order")
		}
		return nil, err
	}
	if err := s.transition(ctx, repo, order, enums.TrynbuyStatusPaid); err != nil {
		return nil, err
	}
	if err := repo.IncrementInvoiceCounter(ctx, company.ID); err != nil {
		return nil, err
	}

	billID := bill.ID
	invoice := bill.InvoiceNumber
	event.OrderStatus = enums.TrynbuyStatusPaid
	event.BillCreated = true
	event.BillID = &billID
	event.InvoiceNumber = &invoice
	event.Subtotal = totals.Subtotal
	event.Discount = totals.Discount
	event.GrandTotal = totals.GrandTotal
	if err := s.emitSettled(ctx, tx, input.ActorID, event); err != nil {
		return nil, err
	}
	return &SettleResult{Success: true, BillCreated: true, BillID: &billID, InvoiceNumber: &invoice}, nil
}

func (s *service) transition(ctx context.Context, repo Repository, order *models.Trynbuy, next enums.TrynbuyStatus) error {
	ok, err := repo.TransitionStatus(ctx, order.ID, next)
	if err != nil {
		return err
	}
	if !ok {
		return errAlreadySettled(order.OrderStatus)
	}
	order.OrderStatus = next
	return nil
}

func (s *service) emitSettled(ctx context.Context, tx *gorm.DB, actorID uuid.UUID, event payloads.TrynbuySettledEvent) error {
	event.SettledAt = s.now().UTC()
	var actor *outbox.ActorRef
	if actorID != uuid.Nil {
		actor = &outbox.ActorRef{ID: actorID, Role: enums.RoleCompany}
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventTrynbuySettled,
		AggregateType: enums.AggregateTrynbuy,
		AggregateID:   event.TrynbuyID,
		Actor:         actor,
		Data:          event,
		OccurredAt:    event.SettledAt,
	})
}

// checkAdvisoryTotals only logs. Stored prices are authoritative.
func (s *service) checkAdvisoryTotals(ctx context.Context, input SettleInput, totals Totals) {
	mismatch := map[string]any{}
	if differs(input.Subtotal, totals.Subtotal) {
		mismatch["subtotal"] = map[string]string{"claimed": input.Subtotal.String(), "computed": totals.Subtotal.String()}
	}
	if differs(input.Discount, totals.Discount) {
		mismatch["discount"] = map[string]string{"claimed": input.Discount.String(), "computed": totals.Discount.String()}
	}
	if differs(input.GrandTotal, totals.GrandTotal) {
		mismatch["grand_total"] = map[string]string{"claimed": input.GrandTotal.String(), "computed": totals.GrandTotal.String()}
	}
	if len(mismatch) == 0 {
		return
	}
	s.logg.Warn(s.logg.WithField(ctx, "mismatch", mismatch), "settlement totals differ from stored prices")
}

func (s *service) observe(outcome string, d time.Duration) {
	if s.metrics != nil {
		s.metrics.ObserveSettlement(outcome, d)
	}
}

func errAlreadySettled(status enums.TrynbuyStatus) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "Order has already been settled").
		WithDetails(map[string]any{"orderStatus": status})
}
