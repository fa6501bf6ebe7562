package trynbuy

import (
	"time"

	"github.com/google/uuid"
	"github.com/markit/markit-server/pkg/db/models"
	"github.com/markit/markit-server/pkg/enums"
	"github.com/shopspring/decimal"
)

// OrderDTO mirrors the trynbuys row, which is what the apps already parse.
type OrderDTO struct {
	ID                uuid.UUID           `json:"id"`
	OrderNumber       *int64              `json:"order_number"`
	CheckoutMethod    string              `json:"checkout_method"`
	Subtotal          decimal.Decimal     `json:"subtotal"`
	ProductDiscount   decimal.Decimal     `json:"product_discount"`
	TotalDiscount     decimal.Decimal     `json:"total_discount"`
	Shipping          decimal.Decimal     `json:"shipping"`
	DeliveryType      enums.DeliveryType  `json:"delivery_type"`
	DeliveryTime      *time.Time          `json:"delivery_time"`
	WaitingTime       int                 `json:"waiting_time"`
	WaitingFee        decimal.Decimal     `json:"waiting_fee"`
	OrderStatus       enums.TrynbuyStatus `json:"order_status"`
	PackingStatus     enums.PackingStatus `json:"packing_status"`
	LocationID        *uuid.UUID          `json:"location_id"`
	ClientID          uuid.UUID           `json:"client_id"`
	CompanyID         uuid.UUID           `json:"company_id"`
	DeliveryPartnerID *uuid.UUID          `json:"delivery_partner_id"`
	CreatedAt         time.Time           `json:"created_at"`
	CartItems         []CartItemDTO       `json:"cartItems"`
}

type CartItemDTO struct {
	ID        uuid.UUID            `json:"id"`
	VariantID uuid.UUID            `json:"variant_id"`
	ItemID    uuid.UUID            `json:"item_id"`
	Quantity  int                  `json:"quantity"`
	Status    enums.CartItemStatus `json:"status"`
}

// NewOrderDTO maps an order row and its preloaded cart items.
func NewOrderDTO(order models.Trynbuy) OrderDTO {
	items := make([]CartItemDTO, 0, len(order.CartItems))
	for _, item := range order.CartItems {
		items = append(items, CartItemDTO{
			ID:        item.ID,
			VariantID: item.VariantID,
			ItemID:    item.ItemID,
			Quantity:  item.Quantity,
			Status:    item.Status,
		})
	}
	return OrderDTO{
		ID:                order.ID,
		OrderNumber:       order.OrderNumber,
		CheckoutMethod:    order.CheckoutMethod,
		Subtotal:          order.Subtotal,
		ProductDiscount:   order.ProductDiscount,
		TotalDiscount:     order.TotalDiscount,
		Shipping:          order.Shipping,
		DeliveryType:      order.DeliveryType,
		DeliveryTime:      order.DeliveryTime,
		WaitingTime:       order.WaitingTime,
		WaitingFee:        order.WaitingFee,
		OrderStatus:       order.OrderStatus,
		PackingStatus:     order.PackingStatus,
		LocationID:        order.LocationID,
		ClientID:          order.ClientID,
		CompanyID:         order.CompanyID,
		DeliveryPartnerID: order.DeliveryPartnerID,
		CreatedAt:         order.CreatedAt,
		CartItems:         items,
	}
}
