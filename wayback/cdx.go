// Package wayback lists and downloads archived copies of the 538 RAPTOR
// ratings page, and reads and writes the per-snapshot CSV files the ingest
// pipeline consumes.
package wayback

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"rapture/season"
	"rapture/utils"

	"github.com/bytedance/sonic"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://web.archive.org"
	RaptorURL      = "https://projects.fivethirtyeight.com/nba-player-ratings/"
)

// Snapshot is one archived capture.
type Snapshot struct {
	Timestamp season.Timestamp
	Original  string
	URL       string
}

type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("wayback %s returned %d", e.URL, e.Code)
}

type Client struct {
	http    *http.Client
	baseURL string
	limiter *rate.Limiter
	logger  *zap.Logger
}

func NewClient(baseURL string, limiter *rate.Limiter, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: baseURL,
		limiter: limiter,
		logger:  logger,
	}
}

func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "rate limit wait")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, utils.ErrorWithTrace(err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "GET %s", u)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: u, Code: resp.StatusCode}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read response body")
	}
	return body, nil
}

// Snapshots lists the successful captures of target, oldest first, one per
// timestamp.
func (c *Client) Snapshots(ctx context.Context, target string) ([]Snapshot, error) {
	params := url.Values{}
	params.Set("url", target)
	params.Set("output", "json")
	params.Set("fl", "timestamp,original,statuscode")
	params.Set("filter", "statuscode:200")

	body, err := c.get(ctx, c.baseURL+"/cdx/search/cdx?"+params.Encode())
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, nil
	}
	var table [][]string
	if err := sonic.Unmarshal(body, &table); err != nil {
		return nil, errors.Wrap(err, "malformed cdx response")
	}
	// first row is the field list
	if len(table) < 2 {
		return nil, nil
	}
	col := map[string]int{}
	for i, h := range table[0] {
		col[h] = i
	}
	tsCol, okTS := col["timestamp"]
	origCol, okOrig := col["original"]
	if !okTS || !okOrig {
		return nil, errors.Newf("cdx response missing fields: %v", table[0])
	}

	seen := map[season.Timestamp]bool{}
	var out []Snapshot
	for _, row := range table[1:] {
		if len(row) <= tsCol || len(row) <= origCol {
			continue
		}
		ts, err := season.ParseTimestamp(row[tsCol])
		if err != nil {
			c.logger.Warn("skipping cdx row", zap.Strings("row", row), zap.Error(err))
			continue
		}
		if seen[ts] {
			continue
		}
		seen[ts] = true
		out = append(out, Snapshot{
			Timestamp: ts,
			Original:  row[origCol],
			URL:       fmt.Sprintf("%s/web/%s/%s", c.baseURL, ts, row[origCol]),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}

// Rows downloads an archived ratings page and parses its table.
func (c *Client) Rows(ctx context.Context, snap Snapshot) ([]Row, error) {
	body, err := c.get(ctx, snap.URL)
	if err != nil {
		return nil, err
	}
	return ParseRaptor(bytes.NewReader(body))
}
