package enums

import (
	"fmt"
	"strings"
)

type DeliveryType string

const (
	DeliveryTypeInstant   DeliveryType = "instant"
	DeliveryTypeScheduled DeliveryType = "scheduled"
)

func (d DeliveryType) IsValid() bool {
	return d == DeliveryTypeInstant || d == DeliveryTypeScheduled
}

// ParseDeliveryType accepts any casing.
func ParseDeliveryType(value string) (DeliveryType, error) {
	d := DeliveryType(strings.ToLower(strings.TrimSpace(value)))
	if !d.IsValid() {
		return "", fmt.Errorf("invalid delivery type %q", value)
	}
	return d, nil
}
