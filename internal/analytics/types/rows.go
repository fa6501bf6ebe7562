package types

import "time"

// SalesRow is one generated bill in the sales table. Money columns are
// decimal strings so BigQuery NUMERIC keeps full precision.
type SalesRow struct {
	BillID        string    `bigquery:"bill_id"`
	CompanyID     string    `bigquery:"company_id"`
	TrynbuyID     string    `bigquery:"trynbuy_id"`
	InvoiceNumber int64     `bigquery:"invoice_number"`
	Subtotal      string    `bigquery:"subtotal"`
	Discount      string    `bigquery:"discount"`
	GrandTotal    string    `bigquery:"grand_total"`
	PaymentMethod string    `bigquery:"payment_method"`
	KeptCount     int       `bigquery:"kept_count"`
	ReturnedCount int       `bigquery:"returned_count"`
	OccurredAt    time.Time `bigquery:"occurred_at"`
}
