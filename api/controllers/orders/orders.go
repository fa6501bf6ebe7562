package orders

import (
	"net/http"

	"github.com/markit/markit-server/api/middleware"
	"github.com/markit/markit-server/api/responses"
	"github.com/markit/markit-server/api/validators"
	internalorders "github.com/markit/markit-server/internal/orders"
	"github.com/markit/markit-server/pkg/enums"
	pkgerrors "github.com/markit/markit-server/pkg/errors"
	"github.com/markit/markit-server/pkg/logger"
)

type packingStatusRequest struct {
	Status enums.PackingStatus `json:"status" validate:"required,oneof=pending packing packed"`
}

// UpdatePackingStatus moves an order through the shop floor states.
func UpdatePackingStatus(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		companyID, ok := middleware.CompanyIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "company id required"))
			return
		}

		orderID, err := validators.PathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload packingStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actorID := companyID
		if userID, ok := middleware.UserIDFromContext(r.Context()); ok {
			actorID = userID
		}

		result, err := svc.UpdatePackingStatus(r.Context(), internalorders.PackingStatusInput{
			OrderID:   orderID,
			CompanyID: companyID,
			ActorID:   actorID,
			Status:    payload.Status,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// Detail returns one of the caller's orders.
func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		clientID, ok := middleware.ClientIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "client id required"))
			return
		}

		orderID, err := validators.PathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		detail, err := svc.ClientOrderDetail(r.Context(), clientID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, detail)
	}
}

// History lists the caller's Trynbuy orders, newest first.
func History(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		clientID, ok := middleware.ClientIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "client id required"))
			return
		}

		list, err := svc.ClientHistory(r.Context(), clientID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, list)
	}
}
