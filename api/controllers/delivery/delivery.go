package delivery

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/markit/markit-server/api/middleware"
	"github.com/markit/markit-server/api/responses"
	"github.com/markit/markit-server/api/validators"
	internaldelivery "github.com/markit/markit-server/internal/delivery"
	pkgerrors "github.com/markit/markit-server/pkg/errors"
	"github.com/markit/markit-server/pkg/logger"
)

// Controller serves the delivery partner screens.
type Controller struct {
	svc  internaldelivery.Service
	logg *logger.Logger
}

func NewController(svc internaldelivery.Service, logg *logger.Logger) *Controller {
	return &Controller{svc: svc, logg: logg}
}

// partner resolves the caller or writes the error and reports false.
func (c *Controller) partner(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	if c.svc == nil {
		responses.WriteError(r.Context(), c.logg, w, pkgerrors.New(pkgerrors.CodeInternal, "delivery service unavailable"))
		return uuid.Nil, false
	}
	partnerID, ok := middleware.DeliveryPartnerIDFromContext(r.Context())
	if !ok {
		responses.WriteError(r.Context(), c.logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "delivery partner id required"))
		return uuid.Nil, false
	}
	return partnerID, true
}

func (c *Controller) Orders(w http.ResponseWriter, r *http.Request) {
	partnerID, ok := c.partner(w, r)
	if !ok {
		return
	}
	list, err := c.svc.Orders(r.Context(), partnerID)
	c.write(w, r, list, err)
}

// OrdersOn handles /orders/filter?day=YYYY-MM-DD[ HH:MM:SS], keyed on delivery time.
func (c *Controller) OrdersOn(w http.ResponseWriter, r *http.Request) {
	partnerID, ok := c.partner(w, r)
	if !ok {
		return
	}
	day, err := validators.RequiredQuery(r, "day")
	if err != nil {
		responses.WriteError(r.Context(), c.logg, w, err)
		return
	}
	list, err := c.svc.OrdersOn(r.Context(), partnerID, day)
	c.write(w, r, list, err)
}

func (c *Controller) LastOrder(w http.ResponseWriter, r *http.Request) {
	partnerID, ok := c.partner(w, r)
	if !ok {
		return
	}
	detail, err := c.svc.LastOrder(r.Context(), partnerID)
	c.write(w, r, detail, err)
}

func (c *Controller) Order(w http.ResponseWriter, r *http.Request) {
	partnerID, ok := c.partner(w, r)
	if !ok {
		return
	}
	orderID, err := validators.PathUUID(r, "orderId")
	if err != nil {
		responses.WriteError(r.Context(), c.logg, w, err)
		return
	}
	detail, err := c.svc.Order(r.Context(), partnerID, orderID)
	c.write(w, r, detail, err)
}

func (c *Controller) Earnings(w http.ResponseWriter, r *http.Request) {
	partnerID, ok := c.partner(w, r)
	if !ok {
		return
	}
	summary, err := c.svc.Earnings(r.Context(), partnerID, chi.URLParam(r, "period"))
	c.write(w, r, summary, err)
}

func (c *Controller) EarningDetails(w http.ResponseWriter, r *http.Request) {
	partnerID, ok := c.partner(w, r)
	if !ok {
		return
	}
	rows, err := c.svc.EarningDetails(r.Context(), partnerID, chi.URLParam(r, "period"))
	c.write(w, r, rows, err)
}

func (c *Controller) write(w http.ResponseWriter, r *http.Request, data any, err error) {
	if err != nil {
		responses.WriteError(r.Context(), c.logg, w, err)
		return
	}
	responses.WriteSuccess(w, data)
}
