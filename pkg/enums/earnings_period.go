package enums

import (
	"fmt"
	"time"
)

// EarningsPeriod bounds a delivery partner earnings query.
type EarningsPeriod string

const (
	EarningsPeriodDay   EarningsPeriod = "day"
	EarningsPeriodWeek  EarningsPeriod = "week"
	EarningsPeriodMonth EarningsPeriod = "month"
	EarningsPeriodYear  EarningsPeriod = "year"
)

func (p EarningsPeriod) IsValid() bool {
	switch p {
	case EarningsPeriodDay, EarningsPeriodWeek, EarningsPeriodMonth, EarningsPeriodYear:
		return true
	default:
		return false
	}
}

// Start returns the beginning of the period containing now. Weeks start on Monday.
func (p EarningsPeriod) Start(now time.Time) time.Time {
	y, m, d := now.Date()
	loc := now.Location()
	switch p {
	case EarningsPeriodWeek:
		offset := (int(now.Weekday()) + 6) % 7
		return time.Date(y, m, d-offset, 0, 0, 0, 0, loc)
	case EarningsPeriodMonth:
		return time.Date(y, m, 1, 0, 0, 0, 0, loc)
	case EarningsPeriodYear:
		return time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
	default:
		return time.Date(y, m, d, 0, 0, 0, 0, loc)
	}
}

// ParseEarningsPeriod converts raw input into EarningsPeriod.
func ParseEarningsPeriod(value string) (EarningsPeriod, error) {
	p := EarningsPeriod(value)
	if !p.IsValid() {
		return "", fmt.Errorf("invalid earnings period %q", value)
	}
	return p, nil
}
