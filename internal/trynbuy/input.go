package trynbuy

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/markit/markit-server/pkg/enums"
	pkgerrors "github.com/markit/markit-server/pkg/errors"
	"github.com/shopspring/decimal"
)

// Checkout payload versions.
const (
	SchemaVersionLegacy  = 1
	SchemaVersionGrouped = 2
)

// CheckoutInput is the canonical order request the builder works from,
// whatever shape the client sent.
type CheckoutInput struct {
	ClientID        uuid.UUID
	CheckoutMethod  string
	Subtotal        decimal.Decimal
	ProductDiscount decimal.Decimal
	TotalDiscount   decimal.Decimal
	Shipping        decimal.Decimal
	DeliveryType    enums.DeliveryType
	DeliveryTime    *time.Time
	WaitingTime     int
	WaitingFee      decimal.Decimal
	LocationID      *uuid.UUID
	Companies       []CompanyInput
}

// CompanyInput becomes exactly one order.
type CompanyInput struct {
	CompanyID uuid.UUID
	Lines     []LineInput
}

type LineInput struct {
	VariantID   uuid.UUID
	Size        string
	Quantity    int
	ProductName string
	Name        string
}

// DisplayName is what shortage messages call the line.
func (l LineInput) DisplayName() string {
	if l.ProductName != "" && l.Name != "" {
		return l.ProductName + "-" + l.Name
	}
	return ""
}

// CheckoutRequest is the wire body of POST /api/order/trynbuy. Version 2
// carries groups of companies; version 1 is the legacy single-company body.
type CheckoutRequest struct {
	SchemaVersion   int                `json:"schemaVersion" validate:"omitempty,oneof=1 2"`
	CheckoutMethod  string             `json:"checkoutMethod" validate:"required"`
	Subtotal        decimal.Decimal    `json:"subtotal"`
	ProductDiscount decimal.Decimal    `json:"productDiscount"`
	TotalDiscount   decimal.Decimal    `json:"totalDiscount"`
	Shipping        decimal.Decimal    `json:"shipping"`
	DeliveryType    enums.DeliveryType `json:"deliveryType" validate:"required,oneof=instant scheduled"`
	DeliveryTime    *time.Time         `json:"deliveryTime"`
	WaitingTime     int                `json:"waitingTime" validate:"gte=0"`
	WaitingFee      decimal.Decimal    `json:"waitingFee"`
	LocationID      *uuid.UUID         `json:"locationId"`
	Groups          []GroupRequest     `json:"groups" validate:"omitempty,dive"`

	CompanyID *uuid.UUID        `json:"companyId"`
	CartItems []CartLineRequest `json:"cartItems" validate:"omitempty,dive"`
}

type GroupRequest struct {
	Companies []CompanyRequest `json:"companies" validate:"omitempty,dive"`
}

type CompanyRequest struct {
	CompanyID uuid.UUID         `json:"companyId" validate:"required"`
	Items     []CartLineRequest `json:"items" validate:"omitempty,dive"`
}

// CartLineRequest is one cart line. Items lists the sizes the app knew about;
// stock is always resolved server side so it is accepted and ignored.
type CartLineRequest struct {
	ID           uuid.UUID     `json:"id" validate:"required"`
	SelectedSize string        `json:"selectedSize" validate:"required"`
	Quantity     int           `json:"quantity" validate:"gt=0"`
	ProductName  string        `json:"productName"`
	Name         string        `json:"name"`
	Items        []StockOption `json:"items,omitempty"`
}

type StockOption struct {
	ID   uuid.UUID `json:"id"`
	Size string    `json:"size"`
	Qty  int       `json:"qty"`
}

// Version resolves the payload version. Bodies without schemaVersion that
// carry companyId and no groups are legacy.
func (r CheckoutRequest) Version() int {
	if r.SchemaVersion != 0 {
		return r.SchemaVersion
	}
	if len(r.Groups) == 0 && r.CompanyID != nil {
		return SchemaVersionLegacy
	}
	return SchemaVersionGrouped
}

// Normalize converts either payload version into CheckoutInput.
func (r CheckoutRequest) Normalize(clientID uuid.UUID) (CheckoutInput, error) {
	input := CheckoutInput{
		ClientID:        clientID,
		CheckoutMethod:  strings.TrimSpace(r.CheckoutMethod),
		Subtotal:        r.Subtotal,
		ProductDiscount: r.ProductDiscount,
		TotalDiscount:   r.TotalDiscount,
		Shipping:        r.Shipping,
		DeliveryType:    r.DeliveryType,
		DeliveryTime:    r.DeliveryTime,
		WaitingTime:     r.WaitingTime,
		WaitingFee:      r.WaitingFee,
		LocationID:      r.LocationID,
	}

	switch r.Version() {
	case SchemaVersionLegacy:
		if r.CompanyID == nil || *r.CompanyID == uuid.Nil {
			return CheckoutInput{}, pkgerrors.New(pkgerrors.CodeValidation, "Missing companyId in request")
		}
		input.Companies = []CompanyInput{{CompanyID: *r.CompanyID, Lines: toLines(r.CartItems)}}
	case SchemaVersionGrouped:
		for _, group := range r.Groups {
			for _, company := range group.Companies {
				input.Companies = append(input.Companies, CompanyInput{
					CompanyID: company.CompanyID,
					Lines:     toLines(company.Items),
				})
			}
		}
		if len(input.Companies) == 0 {
			return CheckoutInput{}, errMissingGroups()
		}
	default:
		return CheckoutInput{}, pkgerrors.New(pkgerrors.CodeValidation, "unsupported schemaVersion")
	}
	return input, nil
}

func toLines(items []CartLineRequest) []LineInput {
	lines := make([]LineInput, 0, len(items))
	for _, item := range items {
		lines = append(lines, LineInput{
			VariantID:   item.ID,
			Size:        strings.TrimSpace(item.SelectedSize),
			Quantity:    item.Quantity,
			ProductName: strings.TrimSpace(item.ProductName),
			Name:        strings.TrimSpace(item.Name),
		})
	}
	return lines
}

func errMissingGroups() error {
	return pkgerrors.New(pkgerrors.CodeValidation, "Missing groups in request")
}

func (in CheckoutInput) validate() error {
	if in.ClientID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "client id required")
	}
	if len(in.Companies) == 0 {
		return errMissingGroups()
	}
	if !in.DeliveryType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "deliveryType must be instant or scheduled")
	}
	for _, company := range in.Companies {
		if company.CompanyID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "companyId is required for every group")
		}
		for _, line := range company.Lines {
			if line.VariantID == uuid.Nil || line.Size == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "every cart item needs a variant id and selectedSize")
			}
			if line.Quantity <= 0 {
				return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be greater than zero")
			}
		}
	}
	return nil
}
