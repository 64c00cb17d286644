package sheets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/api/option"
	sheets "google.golang.org/api/sheets/v4"

	"github.com/teemow/leadflow/internal/instrumentation"
	"github.com/teemow/leadflow/internal/leads"
)

const (
	operationGet    = "values.get"
	operationUpdate = "values.update"

	// DefaultWorksheet is the tab read when none is configured.
	DefaultWorksheet = "Sheet1"
)

// Client reads and writes one worksheet of a spreadsheet.
type Client struct {
	values        *sheets.SpreadsheetsValuesService
	spreadsheetID string
	worksheet     string
	metrics       *instrumentation.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithMetrics records Google API metrics for every call.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a client for the worksheet of spreadsheetID.
// clientOpts usually carries option.WithHTTPClient with a service account
// client from the google package.
func NewClient(ctx context.Context, spreadsheetID, worksheet string, clientOpts []option.ClientOption, opts ...Option) (*Client, error) {
	if spreadsheetID == "" {
		return nil, errors.New("spreadsheet ID is required")
	}
	if worksheet == "" {
		worksheet = DefaultWorksheet
	}
	svc, err := sheets.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Sheets service: %w", err)
	}
	c := &Client{
		values:        svc.Spreadsheets.Values,
		spreadsheetID: spreadsheetID,
		worksheet:     worksheet,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// quoteSheetName quotes a worksheet name for A1 notation.
func quoteSheetName(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// LoadTable reads the worksheet. The first row is the header; data rows are
// padded with empty cells to the header width.
func (c *Client) LoadTable(ctx context.Context) (*leads.Table, error) {
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceSheets, operationGet,
		attribute.String("sheets.worksheet", c.worksheet),
	)
	defer span.End()

	start := time.Now()
	resp, err := c.values.Get(c.spreadsheetID, quoteSheetName(c.worksheet)).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	c.record(ctx, operationGet, err, time.Since(start))
	if err != nil {
		instrumentation.SetSpanError(span, err)
		return nil, fmt.Errorf("failed to read worksheet %s: %w", c.worksheet, err)
	}

	table := tableFromValues(resp.Values)
	span.SetAttributes(attribute.Int("sheets.rows", len(table.Rows)))
	instrumentation.SetSpanSuccess(span)
	return table, nil
}

// SaveTable overwrites the worksheet with table, starting at A1.
func (c *Client) SaveTable(ctx context.Context, table *leads.Table) error {
	if table == nil {
		return errors.New("table is required")
	}

	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceSheets, operationUpdate,
		attribute.String("sheets.worksheet", c.worksheet),
		attribute.Int("sheets.rows", len(table.Rows)),
	)
	defer span.End()

	start := time.Now()
	_, err := c.values.Update(c.spreadsheetID, quoteSheetName(c.worksheet)+"!A1", &sheets.ValueRange{
		MajorDimension: "ROWS",
		Values:         valuesFromTable(table),
	}).ValueInputOption("RAW").Context(ctx).Do()
	c.record(ctx, operationUpdate, err, time.Since(start))
	if err != nil {
		instrumentation.SetSpanError(span, err)
		return fmt.Errorf("failed to write worksheet %s: %w", c.worksheet, err)
	}
	instrumentation.SetSpanSuccess(span)
	return nil
}

func (c *Client) record(ctx context.Context, operation string, err error, d time.Duration) {
	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
	}
	c.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceSheets, operation, status, d)
}
