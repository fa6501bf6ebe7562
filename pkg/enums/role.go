package enums

import "fmt"

// Role is the caller type carried in the bearer token.
type Role string

const (
	RoleClient          Role = "client"
	RoleCompany         Role = "company"
	RoleDeliveryPartner Role = "delivery_partner"
)

var validRoles = []Role{RoleClient, RoleCompany, RoleDeliveryPartner}

func (r Role) IsValid() bool {
	for _, candidate := range validRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRole converts raw input into Role.
func ParseRole(value string) (Role, error) {
	for _, candidate := range validRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid role %q", value)
}
