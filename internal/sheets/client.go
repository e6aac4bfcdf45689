// Package sheets fetches worksheet rows from the Google Sheets REST API and
// presents them as header-keyed maps. It is a thin collaborator: any fetch
// failure is logged and surfaces as an empty row set, which the monitor
// treats as "no data this run".
package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://sheets.googleapis.com"
	defaultTimeout = 15 * time.Second
)

// RowSource is the tabular-data collaborator consumed by monitors.
type RowSource interface {
	// FetchRows returns one map per data row, keyed by trimmed header names,
	// plus "_row" and "_sheet" metadata keys. An empty slice means no data.
	FetchRows(ctx context.Context, spreadsheetID, worksheetName string) []map[string]string
}

// ClientConfig holds the configuration for creating a Client.
type ClientConfig struct {
	APIKey  string
	BaseURL string        // defaults to the public Sheets API endpoint
	Timeout time.Duration // per-request timeout, default 15s
}

// Client implements RowSource against the Sheets API v4.
type Client struct {
	logger     *zap.Logger
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewClient creates a Sheets client. The API key must grant read access to
// the configured spreadsheets.
func NewClient(logger *zap.Logger, cfg ClientConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("sheets API key is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid sheets base URL: %w", err)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}

	return &Client{
		logger:     logger.Named("sheets"),
		httpClient: &http.Client{Timeout: timeout, Transport: transport},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     cfg.APIKey,
	}, nil
}

// valueRange mirrors the values.get response.
type valueRange struct {
	Values [][]string `json:"values"`
}

// spreadsheetMeta mirrors the sheet-listing response.
type spreadsheetMeta struct {
	Sheets []struct {
		Properties struct {
			Title string `json:"title"`
		} `json:"properties"`
	} `json:"sheets"`
}

// FetchRows implements RowSource. If the requested worksheet does not exist
// the first worksheet is used instead, matching how hand-maintained sheets
// get renamed without anyone updating the config.
func (c *Client) FetchRows(ctx context.Context, spreadsheetID, worksheetName string) []map[string]string {
	start := time.Now()

	title, err := c.resolveWorksheet(ctx, spreadsheetID, worksheetName)
	if err != nil {
		fetchDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		c.logger.Error("Failed to resolve worksheet",
			zap.String("spreadsheet", spreadsheetID),
			zap.String("worksheet", worksheetName),
			zap.Error(err),
		)
		return nil
	}

	values, err := c.fetchValues(ctx, spreadsheetID, title)
	if err != nil {
		fetchDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		c.logger.Error("Failed to fetch worksheet values",
			zap.String("spreadsheet", spreadsheetID),
			zap.String("worksheet", title),
			zap.Error(err),
		)
		return nil
	}
	fetchDuration.WithLabelValues("success").Observe(time.Since(start).Seconds())

	rows := buildRows(values, title)
	c.logger.Info("Fetched worksheet data",
		zap.String("worksheet", title),
		zap.Int("rows", len(rows)),
	)
	return rows
}

// resolveWorksheet returns the requested worksheet title if it exists,
// otherwise the first worksheet's title.
func (c *Client) resolveWorksheet(ctx context.Context, spreadsheetID, worksheetName string) (string, error) {
	endpoint := fmt.Sprintf("%s/v4/spreadsheets/%s?fields=sheets.properties&key=%s",
		c.baseURL, url.PathEscape(spreadsheetID), url.QueryEscape(c.apiKey))

	var meta spreadsheetMeta
	if err := c.getJSON(ctx, endpoint, &meta); err != nil {
		return "", err
	}
	if len(meta.Sheets) == 0 {
		return "", fmt.Errorf("spreadsheet has no worksheets")
	}

	for _, sheet := range meta.Sheets {
		if sheet.Properties.Title == worksheetName {
			return worksheetName, nil
		}
	}

	first := meta.Sheets[0].Properties.Title
	c.logger.Warn("Worksheet not found, falling back to first worksheet",
		zap.String("requested", worksheetName),
		zap.String("using", first),
	)
	return first, nil
}

// fetchValues retrieves the full cell grid of one worksheet.
func (c *Client) fetchValues(ctx context.Context, spreadsheetID, title string) ([][]string, error) {
	// Quote the title: A1 notation requires it for titles with spaces.
	rangeRef := "'" + strings.ReplaceAll(title, "'", "''") + "'"
	endpoint := fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s?key=%s",
		c.baseURL, url.PathEscape(spreadsheetID), url.PathEscape(rangeRef), url.QueryEscape(c.apiKey))

	var vr valueRange
	if err := c.getJSON(ctx, endpoint, &vr); err != nil {
		return nil, err
	}
	return vr.Values, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sheets API request: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sheets API returned HTTP %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode sheets API response: %w", err)
	}
	return nil
}

// buildRows converts a raw cell grid into header-keyed row maps. The first
// row supplies headers (blank headers become Column_N), fully empty rows are
// skipped, and every row carries "_row" (1-based spreadsheet row number) and
// "_sheet" metadata.
func buildRows(values [][]string, sheetTitle string) []map[string]string {
	if len(values) < 2 {
		return nil
	}

	headers := make([]string, len(values[0]))
	for i, h := range values[0] {
		h = strings.TrimSpace(h)
		if h == "" {
			h = "Column_" + strconv.Itoa(i+1)
		}
		headers[i] = h
	}

	var rows []map[string]string
	for idx, cells := range values[1:] {
		empty := true
		for _, cell := range cells {
			if strings.TrimSpace(cell) != "" {
				empty = false
				break
			}
		}
		if empty {
			continue
		}

		row := make(map[string]string, len(headers)+2)
		for col, header := range headers {
			if col < len(cells) {
				row[header] = strings.TrimSpace(cells[col])
			} else {
				row[header] = ""
			}
		}
		row["_row"] = strconv.Itoa(idx + 2)
		row["_sheet"] = sheetTitle
		rows = append(rows, row)
	}
	return rows
}
