package trynbuy

import (
	"net/http"

	"github.com/markit/markit-server/api/middleware"
	"github.com/markit/markit-server/api/responses"
	"github.com/markit/markit-server/api/validators"
	internaltrynbuy "github.com/markit/markit-server/internal/trynbuy"
	pkgerrors "github.com/markit/markit-server/pkg/errors"
	"github.com/markit/markit-server/pkg/logger"
)

// Create places a Trynbuy order for the authenticated client. Both the grouped
// and the legacy single-company body are accepted.
func Create(svc internaltrynbuy.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "trynbuy service unavailable"))
			return
		}

		clientID, ok := middleware.ClientIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "client id required"))
			return
		}

		var payload internaltrynbuy.CheckoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.Normalize(clientID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
