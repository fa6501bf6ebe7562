package enums

import "fmt"

// CartItemStatus tracks a reserved line through trial and settlement.
type CartItemStatus string

const (
	CartItemStatusPending  CartItemStatus = "PENDING"
	CartItemStatusReceived CartItemStatus = "RECEIVED"
	CartItemStatusKept     CartItemStatus = "KEPT"
	CartItemStatusReturned CartItemStatus = "RETURNED"
)

var validCartItemStatuses = []CartItemStatus{
	CartItemStatusPending,
	CartItemStatusReceived,
	CartItemStatusKept,
	CartItemStatusReturned,
}

func (s CartItemStatus) String() string {
	return string(s)
}

func (s CartItemStatus) IsValid() bool {
	for _, candidate := range validCartItemStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseCartItemStatus converts raw input into CartItemStatus.
func ParseCartItemStatus(value string) (CartItemStatus, error) {
	for _, candidate := range validCartItemStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cart item status %q", value)
}
