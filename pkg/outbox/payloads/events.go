package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/markit/markit-server/pkg/enums"
	"github.com/shopspring/decimal"
)

// TrynbuyCreatedEvent is emitted once per company order placed by a checkout.
type TrynbuyCreatedEvent struct {
	TrynbuyID    uuid.UUID           `json:"trynbuyId"`
	OrderNumber  int64               `json:"orderNumber"`
	CompanyID    uuid.UUID           `json:"companyId"`
	ClientID     uuid.UUID           `json:"clientId"`
	DeliveryType enums.DeliveryType  `json:"deliveryType"`
	OrderStatus  enums.TrynbuyStatus `json:"orderStatus"`
	ItemCount    int                 `json:"itemCount"`
	CreatedAt    time.Time           `json:"createdAt"`
}

// TrynbuyUpdatedEvent follows packing progress on an order.
type TrynbuyUpdatedEvent struct {
	TrynbuyID     uuid.UUID           `json:"trynbuyId"`
	CompanyID     uuid.UUID           `json:"companyId"`
	ClientID      uuid.UUID           `json:"clientId"`
	OrderStatus   enums.TrynbuyStatus `json:"orderStatus"`
	PackingStatus enums.PackingStatus `json:"packingStatus"`
	UpdatedAt     time.Time           `json:"updatedAt"`
}

// TrynbuySettledEvent closes out an order. BillID and InvoiceNumber are only
// set when BillCreated is true.
type TrynbuySettledEvent struct {
	TrynbuyID     uuid.UUID           `json:"trynbuyId"`
	CompanyID     uuid.UUID           `json:"companyId"`
	ClientID      uuid.UUID           `json:"clientId"`
	OrderStatus   enums.TrynbuyStatus `json:"orderStatus"`
	BillCreated   bool                `json:"billCreated"`
	BillID        *uuid.UUID          `json:"billId,omitempty"`
	InvoiceNumber *int64              `json:"invoiceNumber,omitempty"`
	PaymentMethod string              `json:"paymentMethod,omitempty"`
	Subtotal      decimal.Decimal     `json:"subtotal"`
	Discount      decimal.Decimal     `json:"discount"`
	GrandTotal    decimal.Decimal     `json:"grandTotal"`
	KeptCount     int                 `json:"keptCount"`
	ReturnedCount int                 `json:"returnedCount"`
	SettledAt     time.Time           `json:"settledAt"`
}
