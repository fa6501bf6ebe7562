package billing

import (
	"context"
	"encoding/json"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	dbpkg "github.com/markit/markit-server/pkg/db"
	"github.com/markit/markit-server/pkg/db/dbtest"
	"github.com/markit/markit-server/pkg/db/models"
	"github.com/markit/markit-server/pkg/enums"
	pkgerrors "github.com/markit/markit-server/pkg/errors"
	"github.com/markit/markit-server/pkg/logger"
	"github.com/markit/markit-server/pkg/metrics"
	"github.com/markit/markit-server/pkg/outbox"
	"github.com/markit/markit-server/pkg/outbox/payloads"
	"gorm.io/gorm"
)

type recordingMetrics struct {
	mu       sync.Mutex
	outcomes []string
}

func (m *recordingMetrics) ObserveSettlement(outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
}

type harness struct {
	db      *gorm.DB
	svc     Service
	metrics *recordingMetrics
}

func newHarness(t *testing.T) harness {
	t.Helper()
	return newHarnessOn(t, dbtest.Open(t))
}

func newHarnessOn(t *testing.T, conn *gorm.DB) harness {
	t.Helper()
	rec := &recordingMetrics{}
	svc, err := NewService(ServiceParams{
		Tx:      dbpkg.FromConn(conn),
		Repo:    NewRepository(conn),
		Outbox:  outbox.NewService(outbox.NewRepository(conn), nil),
		Metrics: rec,
		Logger:  logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return harness{db: conn, svc: svc, metrics: rec}
}

type seededLine struct {
	variant models.Variant
	item    models.Item
	line    models.TrynbuyCartItem
}

func (h harness) company(t *testing.T, counter int64) models.Company {
	t.Helper()
	c := models.Company{Name: "Threads", InvoiceCounter: counter}
	if err := h.db.Create(&c).Error; err != nil {
		t.Fatalf("seed company: %v", err)
	}
	return c
}

func (h harness) stock(t *testing.T, sPrice, dPrice, tax string, qty int) (models.Variant, models.Item) {
	t.Helper()
	product := models.Product{Name: "Shirt"}
	if err := h.db.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	variant := models.Variant{ProductID: product.ID, Name: "Blue", SPrice: dec(sPrice), DPrice: dec(dPrice), Tax: dec(tax)}
	if err := h.db.Create(&variant).Error; err != nil {
		t.Fatalf("seed variant: %v", err)
	}
	item := models.Item{VariantID: variant.ID, Size: "M", Qty: qty}
	if err := h.db.Create(&item).Error; err != nil {
		t.Fatalf("seed item: %v", err)
	}
	return variant, item
}

func (h harness) order(t *testing.T, companyID uuid.UUID, status enums.TrynbuyStatus, lines ...seededLine) (models.Trynbuy, []seededLine) {
	t.Helper()
	order := models.Trynbuy{
		CheckoutMethod: "trynbuy",
		DeliveryType:   enums.DeliveryTypeInstant,
		OrderStatus:    status,
		PackingStatus:  enums.PackingStatusPacked,
		ClientID:       uuid.New(),
		CompanyID:      companyID,
	}
	if err := h.db.Omit("CartItems", "ReturnedItems", "Company", "Client", "Location", "Bill").Create(&order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	out := make([]seededLine, 0, len(lines))
	for _, l := range lines {
		l.line = models.TrynbuyCartItem{
			TrynbuyID: order.ID,
			VariantID: l.variant.ID,
			ItemID:    l.item.ID,
			Quantity:  l.line.Quantity,
			Status:    enums.CartItemStatusPending,
		}
		if err := h.db.Omit("Variant", "Item").Create(&l.line).Error; err != nil {
			t.Fatalf("seed cart item: %v", err)
		}
		out = append(out, l)
	}
	return order, out
}

func withQty(variant models.Variant, item models.Item, qty int) seededLine {
	return seededLine{variant: variant, item: item, line: models.TrynbuyCartItem{Quantity: qty}}
}

func ref(l seededLine) LineInput {
	return LineInput{VariantID: l.variant.ID, ItemID: l.item.ID}
}

func settleInput(order models.Trynbuy, kept, returned []LineInput) SettleInput {
	return SettleInput{
		TrynbuyID:     order.ID,
		CompanyID:     order.CompanyID,
		ActorID:       uuid.New(),
		PaymentMethod: "cash",
		DeliveryFees:  dec("40"),
		WaitingFee:    dec("0"),
		Kept:          kept,
		Returned:      returned,
	}
}

func (h harness) reload(t *testing.T, dst any, id uuid.UUID) {
	t.Helper()
	if err := h.db.First(dst, "id = ?", id).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
}

func (h harness) settledEvents(t *testing.T) []payloads.TrynbuySettledEvent {
	t.Helper()
	var rows []models.OutboxEvent
	if err := h.db.Where("event_type = ?", enums.EventTrynbuySettled).Find(&rows).Error; err != nil {
		t.Fatalf("load outbox: %v", err)
	}
	out := make([]payloads.TrynbuySettledEvent, 0, len(rows))
	for _, row := range rows {
		var env outbox.PayloadEnvelope
		if err := json.Unmarshal(row.Payload, &env); err != nil {
			t.Fatalf("decode envelope: %v", err)
		}
		var evt payloads.TrynbuySettledEvent
		if err := json.Unmarshal(env.Data, &evt); err != nil {
			t.Fatalf("decode settled event: %v", err)
		}
		out = append(out, evt)
	}
	return out
}

func TestSettleTwoKeptCutsBill(t *testing.T) {
	h := newHarness(t)
	company := h.company(t, 7)
	v1, i1 := h.stock(t, "1000", "800", "12", 4)
	v2, i2 := h.stock(t, "500", "500", "5", 3)
	order, lines := h.order(t, company.ID, enums.TrynbuyStatusOutForDelivery, withQty(v1, i1, 1), withQty(v2, i2, 2))

	res, err := h.svc.Settle(context.Background(), settleInput(order, []LineInput{ref(lines[0]), ref(lines[1])}, nil))
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if !res.Success || !res.BillCreated || res.BillID == nil || res.InvoiceNumber == nil || *res.InvoiceNumber != 7 {
		t.Fatalf("unexpected result %+v", res)
	}

	var bill models.Bill
	if err := h.db.Preload("Entries").First(&bill, "id = ?", *res.BillID).Error; err != nil {
		t.Fatalf("load bill: %v", err)
	}
	if len(bill.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(bill.Entries))
	}
	if !bill.Subtotal.Equal(dec("1800")) || !bill.Discount.Equal(dec("-200")) || !bill.GrandTotal.Equal(dec("1840")) {
		t.Fatalf("unexpected totals %s/%s/%s", bill.Subtotal, bill.Discount, bill.GrandTotal)
	}
	if bill.PaymentStatus != enums.PaymentStatusPaid || bill.InvoiceNumber != 7 {
		t.Fatalf("unexpected bill %+v", bill)
	}

	var reloadedCompany models.Company
	h.reload(t, &reloadedCompany, company.ID)
	if reloadedCompany.InvoiceCounter != 8 {
		t.Fatalf("expected counter 8, got %d", reloadedCompany.InvoiceCounter)
	}
	var reloadedOrder models.Trynbuy
	h.reload(t, &reloadedOrder, order.ID)
	if reloadedOrder.OrderStatus != enums.TrynbuyStatusPaid {
		t.Fatalf("expected PAID, got %s", reloadedOrder.OrderStatus)
	}
	for _, l := range lines {
		var line models.TrynbuyCartItem
		h.reload(t, &line, l.line.ID)
		if line.Status != enums.CartItemStatusKept {
			t.Fatalf("expected KEPT, got %s", line.Status)
		}
	}
	var item models.Item
	h.reload(t, &item, i1.ID)
	if item.Qty != 4 {
		t.Fatalf("kept stock must not move, qty=%d", item.Qty)
	}

	events := h.settledEvents(t)
	if len(events) != 1 || !events[0].BillCreated || events[0].InvoiceNumber == nil || *events[0].InvoiceNumber != 7 || events[0].KeptCount != 2 {
		t.Fatalf("unexpected settled events %+v", events)
	}
	if len(h.metrics.outcomes) != 1 || h.metrics.outcomes[0] != metrics.OutcomeBilled {
		t.Fatalf("unexpected metrics %v", h.metrics.outcomes)
	}
}

func TestSettleFullReturnCompletesWithoutBill(t *testing.T) {
	h := newHarness(t)
	company := h.company(t, 3)
	v, i := h.stock(t, "1000", "800", "12", 4)
	order, lines := h.order(t, company.ID, enums.TrynbuyStatusOutForDelivery, withQty(v, i, 1))

	res, err := h.svc.Settle(context.Background(), settleInput(order, nil, []LineInput{ref(lines[0])}))
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if !res.Success || res.BillCreated || res.BillID != nil {
		t.Fatalf("unexpected result %+v", res)
	}

	var item models.Item
	h.reload(t, &item, i.ID)
	if item.Qty != 5 {
		t.Fatalf("expected stock restored to 5, got %d", item.Qty)
	}
	var reloadedOrder models.Trynbuy
	h.reload(t, &reloadedOrder, order.ID)
	if reloadedOrder.OrderStatus != enums.TrynbuyStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", reloadedOrder.OrderStatus)
	}
	var bills, returned int64
	h.db.Model(&models.Bill{}).Count(&bills)
	h.db.Model(&models.TrynbuyReturnedItem{}).Where("trynbuy_id = ?", order.ID).Count(&returned)
	if bills != 0 || returned != 1 {
		t.Fatalf("expected no bill and one returned row, got %d/%d", bills, returned)
	}
	var reloadedCompany models.Company
	h.reload(t, &reloadedCompany, company.ID)
	if reloadedCompany.InvoiceCounter != 3 {
		t.Fatalf("counter must not move, got %d", reloadedCompany.InvoiceCounter)
	}
	events := h.settledEvents(t)
	if len(events) != 1 || events[0].BillCreated || events[0].ReturnedCount != 1 {
		t.Fatalf("unexpected settled events %+v", events)
	}
}

func TestSettleMixedPartition(t *testing.T) {
	h := newHarness(t)
	company := h.company(t, 0)
	v1, i1 := h.stock(t, "1000", "800", "12", 0)
	v2, i2 := h.stock(t, "600", "600", "0", 1)
	order, lines := h.order(t, company.ID, enums.TrynbuyStatusPacked, withQty(v1, i1, 1), withQty(v2, i2, 2))

	res, err := h.svc.Settle(context.Background(), settleInput(order, []LineInput{ref(lines[0])}, []LineInput{ref(lines[1])}))
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	// a zero counter falls back to the column default of 1
	if *res.InvoiceNumber != 1 {
		t.Fatalf("expected invoice 1, got %d", *res.InvoiceNumber)
	}

	var bill models.Bill
	if err := h.db.Preload("Entries").First(&bill, "id = ?", *res.BillID).Error; err != nil {
		t.Fatalf("load bill: %v", err)
	}
	var returns int
	for _, e := range bill.Entries {
		if e.IsReturn {
			returns++
			if !e.Tax.IsZero() || !e.Discount.IsZero() {
				t.Fatalf("returned entry should carry no tax or discount: %+v", e)
			}
		}
	}
	if len(bill.Entries) != 2 || returns != 1 {
		t.Fatalf("expected one kept and one returned entry, got %+v", bill.Entries)
	}
	if !bill.Subtotal.Equal(dec("800")) {
		t.Fatalf("returns must not count toward subtotal, got %s", bill.Subtotal)
	}
	var item models.Item
	h.reload(t, &item, i2.ID)
	if item.Qty != 3 {
		t.Fatalf("expected returned stock 3, got %d", item.Qty)
	}
}

func TestSettleTerminalOrderIsStateConflict(t *testing.T) {
	h := newHarness(t)
	company := h.company(t, 1)
	v, i := h.stock(t, "100", "100", "0", 1)
	order, lines := h.order(t, company.ID, enums.TrynbuyStatusOutForDelivery, withQty(v, i, 1))
	input := settleInput(order, []LineInput{ref(lines[0])}, nil)

	if _, err := h.svc.Settle(context.Background(), input); err != nil {
		t.Fatalf("first settle: %v", err)
	}
	_, err := h.svc.Settle(context.Background(), input)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if pkgerrors.MetadataFor(typed.Code()).HTTPStatus != 422 {
		t.Fatalf("state conflict should map to 422")
	}
	var bills int64
	h.db.Model(&models.Bill{}).Count(&bills)
	if bills != 1 {
		t.Fatalf("expected exactly one bill, got %d", bills)
	}
}

func TestSettleMissingCompanyRollsBack(t *testing.T) {
	h := newHarness(t)
	v1, i1 := h.stock(t, "100", "100", "0", 0)
	v2, i2 := h.stock(t, "100", "100", "0", 0)
	order, lines := h.order(t, uuid.New(), enums.TrynbuyStatusOutForDelivery, withQty(v1, i1, 1), withQty(v2, i2, 1))

	_, err := h.svc.Settle(context.Background(), settleInput(order, []LineInput{ref(lines[0])}, []LineInput{ref(lines[1])}))
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound || typed.Message() != "Company not found" {
		t.Fatalf("expected company not found, got %v", err)
	}

	var item models.Item
	h.reload(t, &item, i2.ID)
	if item.Qty != 0 {
		t.Fatalf("release must roll back, qty=%d", item.Qty)
	}
	var line models.TrynbuyCartItem
	h.reload(t, &line, lines[0].line.ID)
	if line.Status != enums.CartItemStatusPending {
		t.Fatalf("line status must roll back, got %s", line.Status)
	}
	var returned, events int64
	h.db.Model(&models.TrynbuyReturnedItem{}).Count(&returned)
	h.db.Model(&models.OutboxEvent{}).Count(&events)
	if returned != 0 || events != 0 {
		t.Fatalf("expected nothing persisted, got %d returned rows and %d events", returned, events)
	}
	if h.metrics.outcomes[0] != metrics.OutcomeFailed {
		t.Fatalf("expected failed outcome, got %v", h.metrics.outcomes)
	}
}

func TestSettleNotFound(t *testing.T) {
	h := newHarness(t)
	company := h.company(t, 1)
	v, i := h.stock(t, "100", "100", "0", 0)
	order, lines := h.order(t, company.ID, enums.TrynbuyStatusOutForDelivery, withQty(v, i, 1))

	missing := settleInput(order, []LineInput{ref(lines[0])}, nil)
	missing.TrynbuyID = uuid.New()
	if typed := pkgerrors.As(settleErr(h, missing)); typed == nil || typed.Code() != pkgerrors.CodeNotFound || typed.Message() != "Order not found" {
		t.Fatalf("expected order not found, got %v", typed)
	}

	otherCompany := settleInput(order, []LineInput{ref(lines[0])}, nil)
	otherCompany.CompanyID = uuid.New()
	if typed := pkgerrors.As(settleErr(h, otherCompany)); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("another company's order must look missing, got %v", typed)
	}
}

func TestSettleRejectsIncompletePartition(t *testing.T) {
	h := newHarness(t)
	company := h.company(t, 1)
	v1, i1 := h.stock(t, "100", "100", "0", 0)
	v2, i2 := h.stock(t, "100", "100", "0", 0)
	order, lines := h.order(t, company.ID, enums.TrynbuyStatusOutForDelivery, withQty(v1, i1, 1), withQty(v2, i2, 1))

	err := settleErr(h, settleInput(order, []LineInput{ref(lines[0])}, nil))
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	err = settleErr(h, settleInput(order, nil, nil))
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for empty partitions, got %v", err)
	}
}

// On sqlite the settlements serialize; set MARKIT_TEST_POSTGRES_DSN to race
// them against the company row lock.
func TestConcurrentSettlementsKeepInvoicesContiguous(t *testing.T) {
	h := newHarnessOn(t, dbtest.OpenConcurrent(t))
	company := h.company(t, 1)
	const orders = 6

	inputs := make([]SettleInput, 0, orders)
	for n := 0; n < orders; n++ {
		v, i := h.stock(t, "250", "200", "18", 0)
		order, lines := h.order(t, company.ID, enums.TrynbuyStatusOutForDelivery, withQty(v, i, 1))
		inputs = append(inputs, settleInput(order, []LineInput{ref(lines[0])}, nil))
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		invoices []int64
		errs     []error
	)
	for _, input := range inputs {
		wg.Add(1)
		go func(in SettleInput) {
			defer wg.Done()
			res, err := h.svc.Settle(context.Background(), in)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			invoices = append(invoices, *res.InvoiceNumber)
		}(input)
	}
	wg.Wait()

	if len(errs) > 0 {
		t.Fatalf("unexpected settlement errors: %v", errs)
	}
	sort.Slice(invoices, func(i, j int) bool { return invoices[i] < invoices[j] })
	for idx, invoice := range invoices {
		if invoice != int64(idx+1) {
			t.Fatalf("invoice numbers must be contiguous from 1, got %v", invoices)
		}
	}
	var reloaded models.Company
	h.reload(t, &reloaded, company.ID)
	if reloaded.InvoiceCounter != orders+1 {
		t.Fatalf("expected counter %d, got %d", orders+1, reloaded.InvoiceCounter)
	}
}

func settleErr(h harness, input SettleInput) error {
	_, err := h.svc.Settle(context.Background(), input)
	return err
}
