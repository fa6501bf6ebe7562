package enums

import "fmt"

// PackingStatus is the shop floor view of an order.
type PackingStatus string

const (
	PackingStatusPending PackingStatus = "pending"
	PackingStatusPacking PackingStatus = "packing"
	PackingStatusPacked  PackingStatus = "packed"
)

var validPackingStatuses = []PackingStatus{
	PackingStatusPending,
	PackingStatusPacking,
	PackingStatusPacked,
}

func (p PackingStatus) String() string {
	return string(p)
}

func (p PackingStatus) IsValid() bool {
	for _, candidate := range validPackingStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePackingStatus converts raw input into PackingStatus.
func ParsePackingStatus(value string) (PackingStatus, error) {
	for _, candidate := range validPackingStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid packing status %q", value)
}
