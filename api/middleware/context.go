package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/markit/markit-server/pkg/enums"
)

type contextKey string

const (
	ctxUserID            contextKey = "user_id"
	ctxRole              contextKey = "actor_role"
	ctxClientID          contextKey = "client_id"
	ctxCompanyID         contextKey = "company_id"
	ctxDeliveryPartnerID contextKey = "delivery_partner_id"
)

// Identity is the caller as read from the bearer token.
type Identity struct {
	Role              enums.Role
	UserID            *uuid.UUID
	ClientID          *uuid.UUID
	CompanyID         *uuid.UUID
	DeliveryPartnerID *uuid.UUID
}

// WithIdentity seeds ctx with the caller's role and ids.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxRole, id.Role)
	ctx = withID(ctx, ctxUserID, id.UserID)
	ctx = withID(ctx, ctxClientID, id.ClientID)
	ctx = withID(ctx, ctxCompanyID, id.CompanyID)
	return withID(ctx, ctxDeliveryPartnerID, id.DeliveryPartnerID)
}

func withID(ctx context.Context, key contextKey, id *uuid.UUID) context.Context {
	if id == nil || *id == uuid.Nil {
		return ctx
	}
	return context.WithValue(ctx, key, *id)
}

func RoleFromContext(ctx context.Context) enums.Role {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(enums.Role); ok {
		return v
	}
	return ""
}

func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	return idFromContext(ctx, ctxUserID)
}

func ClientIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	return idFromContext(ctx, ctxClientID)
}

func CompanyIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	return idFromContext(ctx, ctxCompanyID)
}

func DeliveryPartnerIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	return idFromContext(ctx, ctxDeliveryPartnerID)
}

// SubjectIDFromContext returns the id matching the caller's role.
func SubjectIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	switch RoleFromContext(ctx) {
	case enums.RoleClient:
		return ClientIDFromContext(ctx)
	case enums.RoleCompany:
		return CompanyIDFromContext(ctx)
	case enums.RoleDeliveryPartner:
		return DeliveryPartnerIDFromContext(ctx)
	default:
		return uuid.Nil, false
	}
}

func idFromContext(ctx context.Context, key contextKey) (uuid.UUID, bool) {
	if ctx == nil {
		return uuid.Nil, false
	}
	v, ok := ctx.Value(key).(uuid.UUID)
	return v, ok
}
