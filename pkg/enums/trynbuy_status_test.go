package enums

import (
	"testing"
	"time"
)

func TestTrynbuyStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to TrynbuyStatus
		want     bool
	}{
		{TrynbuyStatusReceived, TrynbuyStatusPacked, true},
		{TrynbuyStatusScheduled, TrynbuyStatusPaid, true},
		{TrynbuyStatusPacked, TrynbuyStatusCompleted, true},
		{TrynbuyStatusOutForDelivery, TrynbuyStatusPacked, false},
		{TrynbuyStatusReceived, TrynbuyStatusScheduled, false},
		{TrynbuyStatusPaid, TrynbuyStatusCompleted, false},
		{TrynbuyStatusCompleted, TrynbuyStatusPaid, false},
		{TrynbuyStatus("BOGUS"), TrynbuyStatusPaid, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanAdvanceTo(tc.to); got != tc.want {
			t.Fatalf("%s -> %s: expected %v got %v", tc.from, tc.to, tc.want, got)
		}
	}
}

func TestOutForDeliverySitsBetweenPackedAndSettled(t *testing.T) {
	if !TrynbuyStatusPacked.CanAdvanceTo(TrynbuyStatusOutForDelivery) {
		t.Fatal("packed orders can go out for delivery")
	}
	for _, next := range []TrynbuyStatus{TrynbuyStatusPaid, TrynbuyStatusCompleted} {
		if !TrynbuyStatusOutForDelivery.CanAdvanceTo(next) {
			t.Fatalf("out for delivery must settle to %s", next)
		}
	}
	if TrynbuyStatusOutForDelivery.IsTerminal() {
		t.Fatal("out for delivery is not terminal")
	}
}

func TestTrynbuyTerminalStatuses(t *testing.T) {
	if !TrynbuyStatusPaid.IsTerminal() || !TrynbuyStatusCompleted.IsTerminal() {
		t.Fatal("paid and completed must be terminal")
	}
	for _, s := range NonTerminalTrynbuyStatuses() {
		if s.IsTerminal() {
			t.Fatalf("%s listed as non terminal", s)
		}
	}
	if got := len(NonTerminalTrynbuyStatuses()); got != 4 {
		t.Fatalf("expected 4 non terminal statuses, got %d", got)
	}
}

func TestInitialTrynbuyStatus(t *testing.T) {
	if InitialTrynbuyStatus(DeliveryTypeInstant) != TrynbuyStatusReceived {
		t.Fatal("instant delivery starts as received")
	}
	if InitialTrynbuyStatus(DeliveryTypeScheduled) != TrynbuyStatusScheduled {
		t.Fatal("scheduled delivery starts as scheduled")
	}
}

func TestEarningsPeriodStart(t *testing.T) {
	// Thursday.
	now := time.Date(2026, time.October, 15, 17, 30, 0, 0, time.UTC)
	cases := map[EarningsPeriod]time.Time{
		EarningsPeriodDay:   time.Date(2026, time.October, 15, 0, 0, 0, 0, time.UTC),
		EarningsPeriodWeek:  time.Date(2026, time.October, 12, 0, 0, 0, 0, time.UTC),
		EarningsPeriodMonth: time.Date(2026, time.October, 1, 0, 0, 0, 0, time.UTC),
		EarningsPeriodYear:  time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
	for period, want := range cases {
		if got := period.Start(now); !got.Equal(want) {
			t.Fatalf("%s: expected %s got %s", period, want, got)
		}
	}
	if _, err := ParseEarningsPeriod("decade"); err == nil {
		t.Fatal("expected invalid period error")
	}
}
