package delivery

import (
	"time"

	"github.com/google/uuid"
	"github.com/markit/markit-server/internal/orders"
	"github.com/markit/markit-server/pkg/db/models"
	"github.com/markit/markit-server/pkg/enums"
	"github.com/shopspring/decimal"
)

type EarningsSummary struct {
	Period           enums.EarningsPeriod `json:"period"`
	Since            time.Time            `json:"since"`
	DeliverFees      decimal.Decimal      `json:"deliver_fees"`
	WaitingFees      decimal.Decimal      `json:"waiting_fees"`
	Tips             decimal.Decimal      `json:"tips"`
	Surge            decimal.Decimal      `json:"surge"`
	Total            decimal.Decimal      `json:"total"`
	TotalDistance    float64              `json:"total_distance"`
	TotalWaitingTime int64                `json:"total_waiting_time"`
	OrderCount       int64                `json:"order_count"`
}

// EarningRow is one assigned order in the period; fees are zero until an
// earning is recorded for it.
type EarningRow struct {
	TrynbuyID   uuid.UUID           `json:"trynbuy_id"`
	OrderStatus enums.TrynbuyStatus `json:"order_status"`
	DeliverFees decimal.Decimal     `json:"deliver_fees"`
	WaitingFees decimal.Decimal     `json:"waiting_fees"`
	Tips        decimal.Decimal     `json:"tips"`
	Surge       decimal.Decimal     `json:"surge"`
	Distance    float64             `json:"distance"`
	WaitingTime int                 `json:"waiting_time"`
	CreatedAt   time.Time           `json:"created_at"`
}

func newEarningsSummary(p enums.EarningsPeriod, since time.Time, t EarningsTotals) EarningsSummary {
	return EarningsSummary{
		Period:           p,
		Since:            since,
		DeliverFees:      t.DeliverFees,
		WaitingFees:      t.WaitingFees,
		Tips:             t.Tips,
		Surge:            t.Surge,
		Total:            t.DeliverFees.Add(t.WaitingFees).Add(t.Tips).Add(t.Surge),
		TotalDistance:    t.TotalDistance,
		TotalWaitingTime: t.TotalWaitingTime,
		OrderCount:       t.Orders,
	}
}

func newEarningRow(e EarningLine) EarningRow {
	return EarningRow{
		TrynbuyID:   e.TrynbuyID,
		OrderStatus: e.OrderStatus,
		DeliverFees: e.DeliverFees,
		WaitingFees: e.WaitingFees,
		Tips:        e.Tips,
		Surge:       e.Surge,
		Distance:    e.Distance,
		WaitingTime: e.WaitingTime,
		CreatedAt:   e.CreatedAt,
	}
}

func details(rows []models.Trynbuy) []orders.OrderDetail {
	out := make([]orders.OrderDetail, 0, len(rows))
	for _, row := range rows {
		out = append(out, orders.NewOrderDetail(row))
	}
	return out
}
