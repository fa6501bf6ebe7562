package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"

	"github.com/markit/markit-server/pkg/config"
	gcpopts "github.com/markit/markit-server/pkg/gcp"
	"github.com/markit/markit-server/pkg/logger"
)

const metadataTimeout = 10 * time.Second

var (
	errProjectIDRequired    = errors.New("gcp project id is required")
	errDatasetRequired      = errors.New("bigquery dataset is required")
	errTableNameRequired    = errors.New("bigquery table name is required")
	errClientNotInitialized = errors.New("bigquery client not initialized")
)

// Client wraps the dataset the analytics pipeline streams sales rows into.
type Client struct {
	bq      *bigquery.Client
	dataset *bigquery.Dataset
	sales   string
}

type target struct {
	project string
	dataset string
	sales   string
}

func resolveTarget(gcp config.GCPConfig, cfg config.BigQueryConfig) (target, error) {
	t := target{
		project: strings.TrimSpace(gcp.ProjectID),
		dataset: strings.TrimSpace(cfg.Dataset),
		sales:   strings.TrimSpace(cfg.SalesTable),
	}
	switch {
	case t.project == "":
		return t, errProjectIDRequired
	case t.dataset == "":
		return t, errDatasetRequired
	case t.sales == "":
		return t, errTableNameRequired
	}
	return t, nil
}

// NewClient dials BigQuery and fails fast when the dataset or sales table is missing.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.BigQueryConfig, logg *logger.Logger) (*Client, error) {
	t, err := resolveTarget(gcp, cfg)
	if err != nil {
		return nil, err
	}

	bq, err := bigquery.NewClient(ctx, t.project, gcpopts.ClientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating bigquery client: %w", err)
	}

	c := &Client{bq: bq, dataset: bq.Dataset(t.dataset), sales: t.sales}
	if err := c.Ping(ctx); err != nil {
		_ = bq.Close()
		return nil, err
	}

	if logg != nil {
		ctx = logg.WithFields(ctx, map[string]any{"dataset": t.dataset, "sales_table": t.sales})
		logg.Info(ctx, "bigquery client initialized")
	}
	return c, nil
}

// Ping reads dataset and table metadata.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.dataset == nil {
		return errClientNotInitialized
	}

	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	if _, err := c.dataset.Metadata(ctx); err != nil {
		return describeLookup("dataset", c.dataset.DatasetID, err)
	}
	if _, err := c.dataset.Table(c.sales).Metadata(ctx); err != nil {
		return describeLookup("table", c.sales, err)
	}
	return nil
}

func describeLookup(kind, name string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return fmt.Errorf("%s %q does not exist", kind, name)
	}
	return fmt.Errorf("checking %s %q: %w", kind, name, err)
}

// InsertRows streams rows into table.
func (c *Client) InsertRows(ctx context.Context, table string, rows []any) error {
	if c == nil || c.bq == nil {
		return errClientNotInitialized
	}
	table = strings.TrimSpace(table)
	if table == "" {
		return errTableNameRequired
	}
	if len(rows) == 0 {
		return nil
	}
	return c.dataset.Table(table).Inserter().Put(ctx, rows)
}

func (c *Client) SalesTable() string {
	if c == nil {
		return ""
	}
	return c.sales
}

func (c *Client) Close() error {
	if c == nil || c.bq == nil {
		return nil
	}
	return c.bq.Close()
}
