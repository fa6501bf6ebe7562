package validators

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/markit/markit-server/pkg/errors"
)

// PathUUID reads a chi URL parameter as a uuid.
func PathUUID(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, name+" is required").WithDetails(map[string]any{"field": name})
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, name+" must be a uuid").WithDetails(map[string]any{"field": name})
	}
	return id, nil
}

// RequiredQuery returns a trimmed query parameter or a validation error when
// it is absent.
func RequiredQuery(r *http.Request, key string) (string, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, key+" query parameter is required").WithDetails(map[string]any{"field": key})
	}
	return raw, nil
}
