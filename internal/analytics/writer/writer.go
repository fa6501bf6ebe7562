package writer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/markit/markit-server/internal/analytics/types"
	pkgbigquery "github.com/markit/markit-server/pkg/bigquery"
)

// Config controls the analytics writer behavior.
type Config struct {
	SalesTable  string
	RetryPolicy RetryPolicy
}

// RetryPolicy bounds the retries of a streaming insert.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaximumBackoff time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = 250 * time.Millisecond
	}
	if p.MaximumBackoff <= 0 {
		p.MaximumBackoff = 2 * time.Second
	}
	p.MaximumBackoff = max(p.MaximumBackoff, p.InitialBackoff)
	return p
}

type tableInserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

// BigQueryWriter streams settled sales into BigQuery.
type BigQueryWriter struct {
	client tableInserter
	table  string
	policy RetryPolicy
}

func New(client *pkgbigquery.Client, cfg Config) (*BigQueryWriter, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	return newWriter(client, cfg)
}

func newWriter(client tableInserter, cfg Config) (*BigQueryWriter, error) {
	table := strings.TrimSpace(cfg.SalesTable)
	if table == "" {
		return nil, errors.New("sales table is required")
	}
	return &BigQueryWriter{client: client, table: table, policy: cfg.RetryPolicy.withDefaults()}, nil
}

// InsertSale writes one row for a settled bill.
func (w *BigQueryWriter) InsertSale(ctx context.Context, row types.SalesRow) error {
	rows := []any{&row}
	wait := w.policy.InitialBackoff

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := w.client.InsertRows(ctx, w.table, rows)
		if err == nil {
			return nil
		}
		if attempt >= w.policy.MaxAttempts || !isRetryableBigQueryError(err) {
			return fmt.Errorf("insert %s rows after %d attempt(s): %w", w.table, attempt, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait = min(wait*2, w.policy.MaximumBackoff)
	}
}

var (
	retryableHTTP = []int{
		http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
	}
	retryableGRPC = []codes.Code{
		codes.Aborted,
		codes.DeadlineExceeded,
		codes.Internal,
		codes.ResourceExhausted,
		codes.Unavailable,
	}
)

// isRetryableBigQueryError reports whether every underlying failure is
// transient. Aggregate insert errors are retryable only when all members are.
func isRetryableBigQueryError(err error) bool {
	if err == nil {
		return false
	}

	if nested := unwrapInsertErrors(err); nested != nil {
		return len(nested) > 0 && !slices.ContainsFunc(nested, func(e error) bool {
			return !isRetryableBigQueryError(e)
		})
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return slices.Contains(retryableHTTP, apiErr.Code)
	}
	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		return slices.Contains(retryableGRPC, st.Code())
	}
	return false
}

// unwrapInsertErrors flattens the aggregate error types returned by the
// streaming inserter. It returns nil when err is not one of them.
func unwrapInsertErrors(err error) []error {
	var put cbigquery.PutMultiError
	if errors.As(err, &put) {
		var out []error
		for _, rowErr := range put {
			out = append(out, rowErr.Errors...)
		}
		return nonNil(out)
	}

	var multi cbigquery.MultiError
	if errors.As(err, &multi) {
		return nonNil(multi)
	}

	var rowErr *cbigquery.RowInsertionError
	if errors.As(err, &rowErr) && rowErr != nil {
		return nonNil(rowErr.Errors)
	}
	return nil
}

func nonNil(errs []error) []error {
	if errs == nil {
		return []error{}
	}
	return errs
}
