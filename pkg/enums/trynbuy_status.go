package enums

import "fmt"

// TrynbuyStatus tracks an order from reservation to settlement.
//
// OUT_FOR_DELIVERY is written by the dispatch app when a partner picks the
// order up; no operation in this service sets it. Packing never moves an order
// past ORDER_PACKED and settlement accepts any non-terminal status, so orders
// that skip dispatch still settle.
type TrynbuyStatus string

const (
	TrynbuyStatusReceived       TrynbuyStatus = "ORDER_RECEIVED"
	TrynbuyStatusScheduled      TrynbuyStatus = "ORDER_SCHEDULED"
	TrynbuyStatusPacked         TrynbuyStatus = "ORDER_PACKED"
	TrynbuyStatusOutForDelivery TrynbuyStatus = "OUT_FOR_DELIVERY"
	TrynbuyStatusPaid           TrynbuyStatus = "PAID"
	TrynbuyStatusCompleted      TrynbuyStatus = "COMPLETED"
)

// Received and scheduled share the entry rank, as do the two terminal states.
var trynbuyStatusRank = map[TrynbuyStatus]int{
	TrynbuyStatusReceived:       0,
	TrynbuyStatusScheduled:      0,
	TrynbuyStatusPacked:         1,
	TrynbuyStatusOutForDelivery: 2,
	TrynbuyStatusPaid:           3,
	TrynbuyStatusCompleted:      3,
}

const terminalTrynbuyRank = 3

var validTrynbuyStatuses = []TrynbuyStatus{
	TrynbuyStatusReceived,
	TrynbuyStatusScheduled,
	TrynbuyStatusPacked,
	TrynbuyStatusOutForDelivery,
	TrynbuyStatusPaid,
	TrynbuyStatusCompleted,
}

func (s TrynbuyStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known TrynbuyStatus.
func (s TrynbuyStatus) IsValid() bool {
	_, ok := trynbuyStatusRank[s]
	return ok
}

// IsTerminal reports whether the order can no longer change status.
func (s TrynbuyStatus) IsTerminal() bool {
	rank, ok := trynbuyStatusRank[s]
	return ok && rank >= terminalTrynbuyRank
}

// CanAdvanceTo reports whether moving from s to next keeps the status monotonic.
func (s TrynbuyStatus) CanAdvanceTo(next TrynbuyStatus) bool {
	from, ok := trynbuyStatusRank[s]
	if !ok {
		return false
	}
	to, ok := trynbuyStatusRank[next]
	if !ok {
		return false
	}
	return from < terminalTrynbuyRank && to > from
}

// NonTerminalTrynbuyStatuses lists every status an order can still leave.
func NonTerminalTrynbuyStatuses() []TrynbuyStatus {
	out := make([]TrynbuyStatus, 0, len(validTrynbuyStatuses))
	for _, s := range validTrynbuyStatuses {
		if !s.IsTerminal() {
			out = append(out, s)
		}
	}
	return out
}

// InitialTrynbuyStatus picks the entry status for a new order.
func InitialTrynbuyStatus(delivery DeliveryType) TrynbuyStatus {
	if delivery == DeliveryTypeInstant {
		return TrynbuyStatusReceived
	}
	return TrynbuyStatusScheduled
}

// ParseTrynbuyStatus converts raw input into TrynbuyStatus.
func ParseTrynbuyStatus(value string) (TrynbuyStatus, error) {
	for _, candidate := range validTrynbuyStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid trynbuy status %q", value)
}
