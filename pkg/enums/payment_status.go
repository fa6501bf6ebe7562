package enums

// PaymentStatus is recorded on a bill at settlement.
type PaymentStatus string

const (
	PaymentStatusPaid PaymentStatus = "PAID"
)

func (p PaymentStatus) IsValid() bool {
	return p == PaymentStatusPaid
}
