package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/markit/markit-server/pkg/db/models"
	"github.com/markit/markit-server/pkg/enums"
	"github.com/shopspring/decimal"
)

// PackingStatusResult is the body of a packing-status update.
type PackingStatusResult struct {
	ID            uuid.UUID           `json:"id"`
	OrderStatus   enums.TrynbuyStatus `json:"order_status"`
	PackingStatus enums.PackingStatus `json:"packing_status"`
}

// OrderDetail is the full view of one order shared by client and delivery screens.
type OrderDetail struct {
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
	DeliveryPartnerID *uuid.UUID          `json:"delivery_partner_id"`
	CreatedAt         time.Time           `json:"created_at"`
	CartItems         []CartLine          `json:"cartItems"`
	ReturnedItems     []ReturnedLine      `json:"returnedItems"`
	Company           *CompanySummary     `json:"company,omitempty"`
	Client            *ClientSummary      `json:"client,omitempty"`
	Location          *Location           `json:"location,omitempty"`
	Bill              *BillSummary        `json:"bill,omitempty"`
}

type CartLine struct {
	ID          uuid.UUID            `json:"id"`
	VariantID   uuid.UUID            `json:"variant_id"`
	ItemID      uuid.UUID            `json:"item_id"`
	Quantity    int                  `json:"quantity"`
	Status      enums.CartItemStatus `json:"status"`
	ProductName string               `json:"product_name,omitempty"`
	VariantName string               `json:"variant_name,omitempty"`
	Size        string               `json:"size,omitempty"`
	SPrice      *decimal.Decimal     `json:"s_price,omitempty"`
	DPrice      *decimal.Decimal     `json:"d_price,omitempty"`
	Images      []string             `json:"images,omitempty"`
}

type ReturnedLine struct {
	ID        uuid.UUID `json:"id"`
	VariantID uuid.UUID `json:"variant_id"`
	ItemID    uuid.UUID `json:"item_id"`
	Quantity  int       `json:"quantity"`
}

type CompanySummary struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Logo *string   `json:"logo"`
}

type ClientSummary struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Phone string    `json:"phone"`
}

type Location struct {
	ID               uuid.UUID `json:"id"`
	Street           string    `json:"street"`
	Locality         string    `json:"locality"`
	Landmark         string    `json:"landmark"`
	City             string    `json:"city"`
	State            string    `json:"state"`
	Pincode          string    `json:"pincode"`
	HouseDetails     string    `json:"house_details"`
	FormattedAddress string    `json:"formatted_address"`
	Lat              float64   `json:"lat"`
	Lng              float64   `json:"lng"`
}

type BillSummary struct {
	ID            uuid.UUID           `json:"id"`
	InvoiceNumber int64               `json:"invoice_number"`
	Subtotal      decimal.Decimal     `json:"subtotal"`
	Discount      decimal.Decimal     `json:"discount"`
	GrandTotal    decimal.Decimal     `json:"grand_total"`
	PaymentMethod string              `json:"payment_method"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	CreatedAt     time.Time           `json:"created_at"`
}

// NewOrderDetail maps an order loaded with PreloadDetail. Associations that
// were not preloaded are left out.
func NewOrderDetail(order models.Trynbuy) OrderDetail {
	detail := OrderDetail{
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
		DeliveryPartnerID: order.DeliveryPartnerID,
		CreatedAt:         order.CreatedAt,
		CartItems:         make([]CartLine, 0, len(order.CartItems)),
		ReturnedItems:     make([]ReturnedLine, 0, len(order.ReturnedItems)),
	}
	for _, item := range order.CartItems {
		detail.CartItems = append(detail.CartItems, newCartLine(item))
	}
	for _, r := range order.ReturnedItems {
		detail.ReturnedItems = append(detail.ReturnedItems, ReturnedLine{
			ID:        r.ID,
			VariantID: r.VariantID,
			ItemID:    r.ItemID,
			Quantity:  r.Quantity,
		})
	}
	if c := order.Company; c != nil {
		detail.Company = &CompanySummary{ID: c.ID, Name: c.Name, Logo: c.Logo}
	}
	if c := order.Client; c != nil {
		detail.Client = &ClientSummary{ID: c.ID, Name: c.Name, Phone: c.Phone}
	}
	if a := order.Location; a != nil {
		detail.Location = &Location{
			ID:               a.ID,
			Street:           a.Street,
			Locality:         a.Locality,
			Landmark:         a.Landmark,
			City:             a.City,
			State:            a.State,
			Pincode:          a.Pincode,
			HouseDetails:     a.HouseDetails,
			FormattedAddress: a.FormattedAddress,
			Lat:              a.Lat,
			Lng:              a.Lng,
		}
	}
	if b := order.Bill; b != nil && b.ID != uuid.Nil {
		detail.Bill = &BillSummary{
			ID:            b.ID,
			InvoiceNumber: b.InvoiceNumber,
			Subtotal:      b.Subtotal,
			Discount:      b.Discount,
			GrandTotal:    b.GrandTotal,
			PaymentMethod: b.PaymentMethod,
			PaymentStatus: b.PaymentStatus,
			CreatedAt:     b.CreatedAt,
		}
	}
	return detail
}

func newCartLine(item models.TrynbuyCartItem) CartLine {
	line := CartLine{
		ID:        item.ID,
		VariantID: item.VariantID,
		ItemID:    item.ItemID,
		Quantity:  item.Quantity,
		Status:    item.Status,
	}
	if v := item.Variant; v != nil {
		sPrice, dPrice := v.SPrice, v.DPrice
		line.VariantName = v.Name
		line.SPrice = &sPrice
		line.DPrice = &dPrice
		line.Images = v.Images
		if v.Product != nil {
			line.ProductName = v.Product.Name
		}
	}
	if item.Item != nil {
		line.Size = item.Item.Size
	}
	return line
}
