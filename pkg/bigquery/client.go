package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"

	"github.com/vendeo/vendeo-backend/pkg/config"
	"github.com/vendeo/vendeo-backend/pkg/gcp"
	"github.com/vendeo/vendeo-backend/pkg/logger"
)

const metadataTimeout = 10 * time.Second

var (
	errProjectIDRequired    = errors.New("gcp project id is required")
	errDatasetRequired      = errors.New("bigquery dataset is required")
	errTableNameRequired    = errors.New("bigquery table name is required")
	errClientNotInitialized = errors.New("bigquery client not initialized")
)

// Keyed rows carry a streaming insert ID. BigQuery drops a repeated ID seen
// within about a minute, which absorbs redeliveries that race the Redis marker.
type Keyed interface {
	InsertID() string
}

// Client streams rows into the tables of one dataset.
type Client struct {
	client  *bigquery.Client
	dataset *bigquery.Dataset
	tables  []string

	mu        sync.Mutex
	inserters map[string]*bigquery.Inserter
}

// NewClient fails unless the dataset and every configured table already exist.
func NewClient(ctx context.Context, gcpCfg config.GCPConfig, cfg config.BigQueryConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcpCfg.ProjectID)
	datasetID := strings.TrimSpace(cfg.Dataset)
	tables := configuredTables(cfg)
	switch {
	case projectID == "":
		return nil, errProjectIDRequired
	case datasetID == "":
		return nil, errDatasetRequired
	case len(tables) == 0:
		return nil, errTableNameRequired
	}

	inner, err := bigquery.NewClient(ctx, projectID, gcp.ClientOptions(gcpCfg)...)
	if err != nil {
		return nil, fmt.Errorf("creating bigquery client: %w", err)
	}
	c := &Client{
		client:    inner,
		dataset:   inner.Dataset(datasetID),
		tables:    tables,
		inserters: map[string]*bigquery.Inserter{},
	}
	if err := c.Ping(ctx); err != nil {
		_ = inner.Close()
		return nil, err
	}

	logg.Info(logg.WithFields(ctx, map[string]any{"dataset": datasetID, "tables": tables}), "bigquery client initialized")
	return c, nil
}

func configuredTables(cfg config.BigQueryConfig) []string {
	var tables []string
	for _, name := range []string{cfg.CommissionEventsTable, cfg.DistributorEventsTable} {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			tables = append(tables, trimmed)
		}
	}
	return tables
}

// Ping reads the dataset and table metadata.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.dataset == nil {
		return errClientNotInitialized
	}
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	if _, err := c.dataset.Metadata(ctx); err != nil {
		return describe("dataset", c.dataset.DatasetID, err)
	}
	for _, name := range c.tables {
		if _, err := c.dataset.Table(name).Metadata(ctx); err != nil {
			return describe("table", name, err)
		}
	}
	return nil
}

func describe(kind, name string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return fmt.Errorf("%s %q does not exist", kind, name)
	}
	return fmt.Errorf("checking %s %q: %w", kind, name, err)
}

// InsertRows streams rows into table. Rows implementing Keyed are sent with
// their insert ID.
func (c *Client) InsertRows(ctx context.Context, table string, rows []any) error {
	if c == nil || c.client == nil {
		return errClientNotInitialized
	}
	table = strings.TrimSpace(table)
	if table == "" {
		return errTableNameRequired
	}
	if len(rows) == 0 {
		return nil
	}
	return c.inserter(table).Put(ctx, withInsertIDs(rows))
}

func (c *Client) inserter(table string) *bigquery.Inserter {
	c.mu.Lock()
	defer c.mu.Unlock()
	ins, ok := c.inserters[table]
	if !ok {
		ins = c.dataset.Table(table).Inserter()
		c.inserters[table] = ins
	}
	return ins
}

func withInsertIDs(rows []any) []any {
	out := make([]any, len(rows))
	for i, row := range rows {
		keyed, ok := row.(Keyed)
		if !ok || keyed.InsertID() == "" {
			out[i] = row
			continue
		}
		out[i] = &bigquery.StructSaver{Struct: row, InsertID: keyed.InsertID()}
	}
	return out
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
