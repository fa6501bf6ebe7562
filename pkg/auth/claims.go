package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/markit/markit-server/pkg/enums"
)

// AccessTokenClaims is the bearer token shape issued by the markit auth service.
// Only the id matching Role is expected to be set.
type AccessTokenClaims struct {
	ClientID          *uuid.UUID `json:"clientId,omitempty"`
	DeliveryPartnerID *uuid.UUID `json:"deliveryPartnerId,omitempty"`
	CompanyID         *uuid.UUID `json:"companyId,omitempty"`
	UserID            *uuid.UUID `json:"userId,omitempty"`
	Role              enums.Role `json:"role"`
	jwt.RegisteredClaims
}

// SubjectID returns the id that identifies the caller for its role.
func (c *AccessTokenClaims) SubjectID() *uuid.UUID {
	if c == nil {
		return nil
	}
	switch c.Role {
	case enums.RoleClient:
		return c.ClientID
	case enums.RoleDeliveryPartner:
		return c.DeliveryPartnerID
	case enums.RoleCompany:
		return c.CompanyID
	default:
		return nil
	}
}
