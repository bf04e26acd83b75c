package boamp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/JulienFabre/TenderWatch/internal/pkg/env"
)

const defaultFeedBaseURL = "https://boamp-datadila.opendatasoft.com/api/explore/v2.1/catalog/datasets/boamp/records"

// Client issues paginated GET requests against the BOAMP open-data catalog.
type Client struct {
	BaseURL string

	HTTPClient *http.Client
}

// Query carries the feed query parameters for one page fetch.
type Query struct {
	Where   string
	OrderBy string
	Limit   int
	Offset  int
}

// NewClientFromEnv builds a feed client from environment configuration.
func NewClientFromEnv() *Client {
	return &Client{
		BaseURL: strings.TrimSpace(env.GetEnv("BOAMP_API_BASE_URL", defaultFeedBaseURL)),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Fetch performs a single GET against the records endpoint. One attempt, no
// retry; a failure is surfaced to the caller as a run failure.
func (c *Client) Fetch(ctx context.Context, q Query) (*FeedResponse, error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid feed base URL: %w", err)
	}

	params := u.Query()
	if q.Where != "" {
		params.Set("where", q.Where)
	}
	if q.OrderBy != "" {
		params.Set("order_by", q.OrderBy)
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		params.Set("offset", strconv.Itoa(q.Offset))
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("feed request failed: status=%d body=%s", resp.StatusCode, truncate(string(body), 500))
	}

	var out FeedResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("feed response decode failed: %w", err)
	}
	return &out, nil
}

// FetchRecent fetches up to limit records for one departement whose response
// deadline is still after deadlineAfter, newest publications first.
func (c *Client) FetchRecent(ctx context.Context, departement string, deadlineAfter time.Time, limit int) (*FeedResponse, error) {
	clauses := []string{
		fmt.Sprintf("datelimitereponse >= date'%s'", deadlineAfter.Format("2006-01-02")),
	}
	if departement != "" {
		clauses = append(clauses, fmt.Sprintf("code_departement = %q", departement))
	}

	return c.Fetch(ctx, Query{
		Where:   strings.Join(clauses, " AND "),
		OrderBy: "dateparution desc",
		Limit:   limit,
	})
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
