package middleware

import (
	"net/http"
	"strings"

	"github.com/markit/markit-server/api/responses"
	pkgAuth "github.com/markit/markit-server/pkg/auth"
	"github.com/markit/markit-server/pkg/config"
	pkgerrors "github.com/markit/markit-server/pkg/errors"
	"github.com/markit/markit-server/pkg/logger"
)

// Auth validates a bearer token and seeds the request context with the claims.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := WithIdentity(r.Context(), Identity{
				Role:              claims.Role,
				UserID:            claims.UserID,
				ClientID:          claims.ClientID,
				CompanyID:         claims.CompanyID,
				DeliveryPartnerID: claims.DeliveryPartnerID,
			})

			if logg != nil {
				ctx = logg.WithField(ctx, "actor_role", string(claims.Role))
				switch {
				case claims.ClientID != nil:
					ctx = logg.WithClientID(ctx, claims.ClientID.String())
				case claims.CompanyID != nil:
					ctx = logg.WithCompanyID(ctx, claims.CompanyID.String())
				case claims.DeliveryPartnerID != nil:
					ctx = logg.WithDeliveryPartnerID(ctx, claims.DeliveryPartnerID.String())
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
