package trynbuy

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/markit/markit-server/pkg/config"
	dbpkg "github.com/markit/markit-server/pkg/db"
	"github.com/markit/markit-server/pkg/db/dbtest"
	"github.com/markit/markit-server/pkg/db/models"
	"github.com/markit/markit-server/pkg/enums"
	pkgerrors "github.com/markit/markit-server/pkg/errors"
	"github.com/markit/markit-server/pkg/logger"
	"github.com/markit/markit-server/pkg/outbox"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type fixture struct {
	db  *gorm.DB
	svc Service
}

type stubMetrics struct {
	created   int
	shortages int
}

func (m *stubMetrics) IncCreated(_ string, n int) { m.created += n }
func (m *stubMetrics) IncShortage()              { m.shortages++ }

func newFixture(t *testing.T, policy config.UnmatchedItemPolicy, metrics orderMetrics) fixture {
	t.Helper()
	conn := dbtest.Open(t)
	svc, err := NewService(ServiceParams{
		Tx:        dbpkg.FromConn(conn),
		Repo:      NewRepository(conn),
		Outbox:    outbox.NewService(outbox.NewRepository(conn), nil),
		Metrics:   metrics,
		Logger:    logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Unmatched: policy,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return fixture{db: conn, svc: svc}
}

type stock struct {
	variant models.Variant
	item    models.Item
}

func seedStock(t *testing.T, db *gorm.DB, productName, variantName, size string, qty int) stock {
	t.Helper()
	product := models.Product{Name: productName}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	variant := models.Variant{
		ProductID: product.ID,
		Name:      variantName,
		SPrice:    decimal.NewFromInt(1000),
		DPrice:    decimal.NewFromInt(800),
		Tax:       decimal.NewFromInt(12),
	}
	if err := db.Create(&variant).Error; err != nil {
		t.Fatalf("seed variant: %v", err)
	}
	item := models.Item{VariantID: variant.ID, Size: size, Qty: qty}
	if err := db.Create(&item).Error; err != nil {
		t.Fatalf("seed item: %v", err)
	}
	return stock{variant: variant, item: item}
}

func qtyOf(t *testing.T, db *gorm.DB, id uuid.UUID) int {
	t.Helper()
	var item models.Item
	if err := db.First(&item, "id = ?", id).Error; err != nil {
		t.Fatalf("load item: %v", err)
	}
	return item.Qty
}

func count(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	if err := db.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func baseInput(companies ...CompanyInput) CheckoutInput {
	return CheckoutInput{
		ClientID:       uuid.New(),
		CheckoutMethod: "trynbuy",
		Subtotal:       decimal.NewFromInt(1600),
		Shipping:       decimal.NewFromInt(40),
		DeliveryType:   enums.DeliveryTypeInstant,
		WaitingFee:     decimal.Zero,
		Companies:      companies,
	}
}

func line(s stock, qty int) LineInput {
	return LineInput{VariantID: s.variant.ID, Size: s.item.Size, Quantity: qty, ProductName: "Shirt", Name: s.variant.Name}
}

func TestCreateOneOrderPerCompany(t *testing.T) {
	metrics := &stubMetrics{}
	f := newFixture(t, config.UnmatchedItemSkip, metrics)
	shirt := seedStock(t, f.db, "Shirt", "Blue", "M", 5)
	jeans := seedStock(t, f.db, "Jeans", "Black", "32", 2)
	companyA, companyB := uuid.New(), uuid.New()

	result, err := f.svc.Create(context.Background(), baseInput(
		CompanyInput{CompanyID: companyA, Lines: []LineInput{line(shirt, 2)}},
		CompanyInput{CompanyID: companyB, Lines: []LineInput{line(jeans, 1)}},
	))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(result.Orders) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(result.Orders))
	}
	for _, order := range result.Orders {
		if order.OrderStatus != enums.TrynbuyStatusReceived || order.PackingStatus != enums.PackingStatusPending {
			t.Fatalf("unexpected initial state %s/%s", order.OrderStatus, order.PackingStatus)
		}
		if len(order.CartItems) != 1 || order.CartItems[0].Status != enums.CartItemStatusPending {
			t.Fatalf("expected one pending cart item, got %+v", order.CartItems)
		}
	}
	if result.Orders[0].CompanyID != companyA || result.Orders[1].CompanyID != companyB {
		t.Fatalf("orders should follow request order")
	}
	if got := qtyOf(t, f.db, shirt.item.ID); got != 3 {
		t.Fatalf("expected shirt qty 3, got %d", got)
	}
	if got := qtyOf(t, f.db, jeans.item.ID); got != 1 {
		t.Fatalf("expected jeans qty 1, got %d", got)
	}

	var events []models.OutboxEvent
	f.db.Find(&events)
	if len(events) != 2 {
		t.Fatalf("expected one outbox event per order, got %d", len(events))
	}
	for _, e := range events {
		if e.EventType != enums.EventTrynbuyCreated || e.AggregateType != enums.AggregateTrynbuy {
			t.Fatalf("unexpected event %s/%s", e.EventType, e.AggregateType)
		}
	}
	if metrics.created != 2 || metrics.shortages != 0 {
		t.Fatalf("unexpected metrics %+v", metrics)
	}
}

func TestCreateScheduledDelivery(t *testing.T) {
	f := newFixture(t, config.UnmatchedItemSkip, nil)
	shirt := seedStock(t, f.db, "Shirt", "Blue", "M", 1)
	input := baseInput(CompanyInput{CompanyID: uuid.New(), Lines: []LineInput{line(shirt, 1)}})
	input.DeliveryType = enums.DeliveryTypeScheduled

	result, err := f.svc.Create(context.Background(), input)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if result.Orders[0].OrderStatus != enums.TrynbuyStatusScheduled {
		t.Fatalf("expected ORDER_SCHEDULED, got %s", result.Orders[0].OrderStatus)
	}
}

func TestShortageRollsBackEverything(t *testing.T) {
	metrics := &stubMetrics{}
	f := newFixture(t, config.UnmatchedItemSkip, metrics)
	shirt := seedStock(t, f.db, "Shirt", "Blue", "M", 5)
	sold := seedStock(t, f.db, "Shirt", "Red", "L", 0)

	_, err := f.svc.Create(context.Background(), baseInput(
		CompanyInput{CompanyID: uuid.New(), Lines: []LineInput{line(shirt, 2)}},
		CompanyInput{CompanyID: uuid.New(), Lines: []LineInput{line(sold, 1)}},
	))
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("expected insufficient stock error, got %v", err)
	}
	if typed.Message() != "No stock is available for Shirt-Red of size L. Please remove it." {
		t.Fatalf("unexpected message %q", typed.Message())
	}
	details, ok := typed.Details().(pkgerrors.StockShortage)
	if !ok || details.RemainingQty != 0 || details.Size != "L" {
		t.Fatalf("unexpected details %#v", typed.Details())
	}

	if got := qtyOf(t, f.db, shirt.item.ID); got != 5 {
		t.Fatalf("earlier reservation must roll back, qty=%d", got)
	}
	if n := count(t, f.db, &models.Trynbuy{}); n != 0 {
		t.Fatalf("expected no orders, got %d", n)
	}
	if n := count(t, f.db, &models.TrynbuyCartItem{}); n != 0 {
		t.Fatalf("expected no cart items, got %d", n)
	}
	if n := count(t, f.db, &models.OutboxEvent{}); n != 0 {
		t.Fatalf("expected no outbox events, got %d", n)
	}
	if metrics.shortages != 1 || metrics.created != 0 {
		t.Fatalf("unexpected metrics %+v", metrics)
	}
}

func TestShortageMessageWithRemainingStock(t *testing.T) {
	f := newFixture(t, config.UnmatchedItemSkip, nil)
	shirt := seedStock(t, f.db, "Shirt", "Blue", "M", 1)

	_, err := f.svc.Create(context.Background(), baseInput(
		CompanyInput{CompanyID: uuid.New(), Lines: []LineInput{line(shirt, 3)}},
	))
	typed := pkgerrors.As(err)
	if typed == nil || typed.Message() != "Only 1 stock is available for Shirt-Blue of size M." {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestShortageNameFallsBackToCatalog(t *testing.T) {
	f := newFixture(t, config.UnmatchedItemSkip, nil)
	kurta := seedStock(t, f.db, "Kurta", "Green", "S", 0)
	l := line(kurta, 1)
	l.ProductName, l.Name = "", ""

	_, err := f.svc.Create(context.Background(), baseInput(CompanyInput{CompanyID: uuid.New(), Lines: []LineInput{l}}))
	typed := pkgerrors.As(err)
	if typed == nil || typed.Message() != "No stock is available for Kurta-Green of size S. Please remove it." {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestSkipPolicyRecordsUnmatchedLine(t *testing.T) {
	f := newFixture(t, config.UnmatchedItemSkip, nil)
	shirt := seedStock(t, f.db, "Shirt", "Blue", "M", 2)
	missing := line(shirt, 1)
	missing.Size = "XXL"

	result, err := f.svc.Create(context.Background(), baseInput(
		CompanyInput{CompanyID: uuid.New(), Lines: []LineInput{missing, line(shirt, 1)}},
	))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(result.SkippedItems) != 1 || result.SkippedItems[0].Size != "XXL" {
		t.Fatalf("expected XXL to be skipped, got %+v", result.SkippedItems)
	}
	if len(result.Orders) != 1 || len(result.Orders[0].CartItems) != 1 {
		t.Fatalf("expected one order with the matched line, got %+v", result.Orders)
	}
	if got := qtyOf(t, f.db, shirt.item.ID); got != 1 {
		t.Fatalf("expected qty 1, got %d", got)
	}
}

func TestSkipPolicyAllLinesSkippedStillCreatesOrder(t *testing.T) {
	f := newFixture(t, config.UnmatchedItemSkip, nil)
	l := LineInput{VariantID: uuid.New(), Size: "M", Quantity: 1}

	result, err := f.svc.Create(context.Background(), baseInput(CompanyInput{CompanyID: uuid.New(), Lines: []LineInput{l}}))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(result.Orders) != 1 || len(result.Orders[0].CartItems) != 0 {
		t.Fatalf("expected an empty order, got %+v", result.Orders)
	}
}

func TestRejectPolicyFailsWholeCheckout(t *testing.T) {
	f := newFixture(t, config.UnmatchedItemReject, nil)
	shirt := seedStock(t, f.db, "Shirt", "Blue", "M", 2)
	missing := line(shirt, 1)
	missing.Size = "XXL"

	_, err := f.svc.Create(context.Background(), baseInput(
		CompanyInput{CompanyID: uuid.New(), Lines: []LineInput{line(shirt, 1), missing}},
	))
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if got := qtyOf(t, f.db, shirt.item.ID); got != 2 {
		t.Fatalf("expected qty untouched, got %d", got)
	}
	if n := count(t, f.db, &models.Trynbuy{}); n != 0 {
		t.Fatalf("expected no orders, got %d", n)
	}
}

func TestCreateValidatesBeforeTx(t *testing.T) {
	f := newFixture(t, config.UnmatchedItemSkip, nil)

	_, err := f.svc.Create(context.Background(), baseInput())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation || typed.Message() != "Missing groups in request" {
		t.Fatalf("expected missing groups error, got %v", err)
	}

	bad := baseInput(CompanyInput{CompanyID: uuid.New(), Lines: []LineInput{{VariantID: uuid.New(), Size: "M", Quantity: 0}}})
	_, err = f.svc.Create(context.Background(), bad)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected quantity validation error, got %v", err)
	}
}

func TestNewServiceRejectsUnknownPolicy(t *testing.T) {
	conn := dbtest.Open(t)
	_, err := NewService(ServiceParams{
		Tx:        dbpkg.FromConn(conn),
		Repo:      NewRepository(conn),
		Outbox:    outbox.NewService(outbox.NewRepository(conn), nil),
		Logger:    logger.New(logger.Options{Output: io.Discard}),
		Unmatched: config.UnmatchedItemPolicy("drop"),
	})
	if err == nil {
		t.Fatal("expected invalid policy to fail")
	}
}
