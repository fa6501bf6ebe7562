package billing

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/markit/markit-server/api/middleware"
	"github.com/markit/markit-server/api/responses"
	"github.com/markit/markit-server/api/validators"
	internalbilling "github.com/markit/markit-server/internal/billing"
	pkgerrors "github.com/markit/markit-server/pkg/errors"
	"github.com/markit/markit-server/pkg/logger"
)

// Settle records what the client kept and returned at delivery and cuts the
// bill when anything was kept.
func Settle(svc internalbilling.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		companyID, ok := middleware.CompanyIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "company id required"))
			return
		}

		var payload settleRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if payload.CompanyID != nil && *payload.CompanyID != companyID {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "companyId does not match the caller"))
			return
		}

		actorID := companyID
		if userID, ok := middleware.UserIDFromContext(r.Context()); ok {
			actorID = userID
		}

		result, err := svc.Settle(r.Context(), payload.toInput(companyID, actorID))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

type settleRequest struct {
	TrynbuyID     uuid.UUID       `json:"trynbuyId" validate:"required"`
	CompanyID     *uuid.UUID      `json:"companyId"`
	PaymentMethod string          `json:"paymentMethod" validate:"required"`
	TransactionID *string         `json:"transactionId"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	GrandTotal    decimal.Decimal `json:"grandTotal"`
	Discount      decimal.Decimal `json:"discount"`
	DeliveryFees  decimal.Decimal `json:"deliveryFees"`
	WaitingFee    decimal.Decimal `json:"waitingFee"`
	KeptItems     []settleLine    `json:"keptItems" validate:"omitempty,dive"`
	ReturnedItems []settleLine    `json:"returnedItems" validate:"omitempty,dive"`
}

// settleLine names a cart line by variant and stock item.
type settleLine struct {
	ID       uuid.UUID `json:"id"`
	ItemID   uuid.UUID `json:"itemId" validate:"required"`
	Quantity *int      `json:"quantity" validate:"omitempty,gt=0"`
}

func (p settleRequest) toInput(companyID, actorID uuid.UUID) internalbilling.SettleInput {
	return internalbilling.SettleInput{
		TrynbuyID:     p.TrynbuyID,
		CompanyID:     companyID,
		ActorID:       actorID,
		PaymentMethod: p.PaymentMethod,
		TransactionID: p.TransactionID,
		Subtotal:      p.Subtotal,
		GrandTotal:    p.GrandTotal,
		Discount:      p.Discount,
		DeliveryFees:  p.DeliveryFees,
		WaitingFee:    p.WaitingFee,
		Kept:          toLines(p.KeptItems),
		Returned:      toLines(p.ReturnedItems),
	}
}

func toLines(in []settleLine) []internalbilling.LineInput {
	out := make([]internalbilling.LineInput, 0, len(in))
	for _, l := range in {
		out = append(out, internalbilling.LineInput{VariantID: l.ID, ItemID: l.ItemID, Quantity: l.Quantity})
	}
	return out
}
