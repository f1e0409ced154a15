// Package nba reads stats.nba.com: league-wide player tracking and the
// all-players reference list.
package nba

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"rapture/utils"

	"github.com/bytedance/sonic"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const DefaultBaseURL = "https://stats.nba.com/stats"

// StatusError is a non-2xx response.
type StatusError struct {
	Endpoint string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("stats.nba.com %s returned %d: %s", e.Endpoint, e.Code, e.Body)
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

// stats.nba.com drops requests that do not look like they came from the site.
func initNBAReq(ctx context.Context, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, utils.ErrorWithTrace(err)
	}
	req.Header.Add("Accept", "application/json")
	req.Header.Add("Referer", "https://www.nba.com/")
	req.Header.Add("Origin", "https://www.nba.com")
	req.Header.Add("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	return req, nil
}

type resultSet struct {
	Name    string   `json:"name"`
	Headers []string `json:"headers"`
	RowSet  [][]any  `json:"rowSet"`
}

type statsResp struct {
	ResultSets []resultSet `json:"resultSets"`
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values) (*resultSet, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "rate limit wait")
	}
	req, err := initNBAReq(ctx, c.baseURL+"/"+endpoint+"?"+params.Encode())
	if err != nil {
		return nil, err
	}

	c.logger.Debug("stats.nba.com request", zap.String("endpoint", endpoint), zap.String("query", params.Encode()))
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "GET %s", endpoint)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read response body")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b := string(body)
		if len(b) > 200 {
			b = b[:200] + "..."
		}
		return nil, &StatusError{Endpoint: endpoint, Code: resp.StatusCode, Body: b}
	}

	unmarshalledBody := statsResp{}
	if err := sonic.Unmarshal(body, &unmarshalledBody); err != nil {
		return nil, errors.Wrapf(err, "malformed %s response", endpoint)
	}
	if len(unmarshalledBody.ResultSets) == 0 {
		return nil, errors.Newf("malformed %s response: no result sets", endpoint)
	}
	return &unmarshalledBody.ResultSets[0], nil
}

// rows zips each row with the result set headers.
func (rs *resultSet) rows() []map[string]any {
	out := make([]map[string]any, 0, len(rs.RowSet))
	for _, raw := range rs.RowSet {
		row := make(map[string]any, len(rs.Headers))
		for i, h := range rs.Headers {
			if i < len(raw) {
				row[h] = raw[i]
			}
		}
		out = append(out, row)
	}
	return out
}

func maybe[T any](x any) *T {
	if x, ok := x.(T); ok {
		return &x
	}
	return nil
}
