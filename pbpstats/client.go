// Package pbpstats talks to api.pbpstats.com: the player reference list,
// WOWY on/off splits and per-100-possession totals.
package pbpstats

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"rapture/season"
	"rapture/utils"

	"github.com/bytedance/sonic"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const DefaultBaseURL = "https://api.pbpstats.com"

// StatusError is a non-2xx response.
type StatusError struct {
	Path string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("pbpstats %s returned %d: %s", e.Path, e.Code, e.Body)
}

// Client is a rate-limited api.pbpstats.com client. One Client is shared by
// every source that calls the same host.
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

// SeasonType is the SeasonType parameter for a game type.
func SeasonType(gt season.GameType) string {
	switch gt {
	case season.Regular:
		return "Regular Season"
	case season.Playoffs:
		return "Playoffs"
	case season.PlayIn:
		return "PlayIn"
	default:
		return "All"
	}
}

// get issues a GET and decodes the JSON object body.
func (c *Client) get(ctx context.Context, path string, params url.Values) (map[string]any, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "rate limit wait")
	}
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, utils.ErrorWithTrace(err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("pbpstats request", zap.String("path", path), zap.String("query", params.Encode()))
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "GET %s", path)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read response body")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Path: path, Code: resp.StatusCode, Body: truncate(body, 200)}
	}

	out := map[string]any{}
	if err := sonic.Unmarshal(body, &out); err != nil {
		return nil, errors.Wrapf(err, "malformed %s response", path)
	}
	return out, nil
}

// AllPlayers returns the league's player reference list keyed by normalized
// display name.
func (c *Client) AllPlayers(ctx context.Context) (map[string]string, error) {
	body, err := c.get(ctx, "/get-all-players-for-league/nba", nil)
	if err != nil {
		return nil, err
	}
	players, ok := body["players"].(map[string]any)
	if !ok {
		return nil, errors.New("malformed player list: missing players object")
	}
	out := make(map[string]string, len(players))
	for id, name := range players {
		s, ok := name.(string)
		if !ok {
			continue
		}
		out[utils.NormalizeName(s)] = id
	}
	return out, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
