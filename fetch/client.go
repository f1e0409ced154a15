package fetch

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Client runs items against one Source. Resolution failures and invalid
// windows end the item before any network call. A governor slot is held only
// for the duration of each call; backoff waits happen outside it.
type Client struct {
	source   Source
	resolver Resolver
	gov      Governor
	policy   Policy
	sleep    SleepFunc
	logger   *zap.Logger
}

type Option func(*Client)

// WithSleep replaces the backoff sleep, mostly for tests.
func WithSleep(fn SleepFunc) Option {
	return func(c *Client) { c.sleep = fn }
}

func NewClient(src Source, resolver Resolver, gov Governor, policy Policy, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		source:   src,
		resolver: resolver,
		gov:      gov,
		policy:   policy,
		sleep:    Sleep,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Source() Source { return c.source }

// Fetch drives one item to a terminal outcome (or Aborted).
func (c *Client) Fetch(ctx context.Context, it Item) Outcome {
	req, err := c.prepare(it)
	if err != nil {
		return Outcome{Item: it, Kind: PermanentFailure, Err: Permanent(err)}
	}

	var records []Record
	attempts, err := c.policy.Retry(ctx, c.sleep, func(ctx context.Context, attempt int) error {
		o := c.Attempt(ctx, req)
		if o.Kind == Success {
			records = o.Records
			return nil
		}
		return o.Err
	}, func(attempt int, delay time.Duration, err error) {
		c.logger.Warn("retrying", append(it.Fields(),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))...)
	})

	switch {
	case err == nil:
		return Outcome{Item: it, Kind: Success, Records: records, Attempts: attempts}
	case ctx.Err() != nil:
		return Outcome{Item: it, Kind: Aborted, Err: err, Attempts: attempts}
	default:
		return Outcome{Item: it, Kind: PermanentFailure, Err: err, Attempts: attempts}
	}
}

// Attempt makes exactly one governed call and classifies the result as
// Success, TransientFailure or PermanentFailure.
func (c *Client) Attempt(ctx context.Context, req Request) Outcome {
	if err := c.gov.Acquire(ctx); err != nil {
		return Outcome{Item: req.Item, Kind: Aborted, Err: err, Attempts: 1}
	}
	records, err := c.call(ctx, req)

	switch {
	case err == nil:
		return Outcome{Item: req.Item, Kind: Success, Records: records, Attempts: 1}
	case errors.Is(err, ErrPermanent):
		return Outcome{Item: req.Item, Kind: PermanentFailure, Err: err, Attempts: 1}
	case ctx.Err() != nil:
		return Outcome{Item: req.Item, Kind: Aborted, Err: err, Attempts: 1}
	default:
		return Outcome{Item: req.Item, Kind: TransientFailure, Err: err, Attempts: 1}
	}
}

// call runs the source while holding an acquired slot. The slot is returned
// even if the source panics.
func (c *Client) call(ctx context.Context, req Request) ([]Record, error) {
	defer c.gov.Release()
	return c.source.Fetch(ctx, req)
}

func (c *Client) prepare(it Item) (Request, error) {
	if it.WindowErr != nil {
		return Request{}, it.WindowErr
	}
	req := Request{Item: it, Window: it.Window}
	if it.LeagueWide() {
		return req, nil
	}
	if c.resolver == nil {
		return Request{}, errors.Newf("source %s has no identity resolver", c.source.Tag())
	}
	id, err := c.resolver.Lookup(it.Entity)
	if err != nil {
		return Request{}, err
	}
	req.PlayerID = id
	return req, nil
}
