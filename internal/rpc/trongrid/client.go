package trongrid

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fystack/tron-ledger-crawler/internal/metrics"
	"github.com/fystack/tron-ledger-crawler/pkg/common/config"
	"github.com/fystack/tron-ledger-crawler/pkg/common/constant"
	"github.com/fystack/tron-ledger-crawler/pkg/common/logger"
	"github.com/fystack/tron-ledger-crawler/pkg/ratelimiter"
	"github.com/fystack/tron-ledger-crawler/pkg/retry"
)

const (
	routeTransactions = "transactions"
	routeTRC20        = "trc20"
)

type Options struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	PageLimit int
	MaxPages  int
	Limiter   *ratelimiter.RateLimiter
	Retry     retry.ExponentialConfig
}

// Client queries the TronGrid v1 account endpoints. Every Fetch* method walks
// all pages in ascending block_timestamp order starting at minTs inclusive.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *ratelimiter.RateLimiter
	pageLimit  int
	maxPages   int
	retry      retry.ExponentialConfig
}

func NewClient(o Options) *Client {
	if o.Timeout <= 0 {
		o.Timeout = constant.DefaultRequestTimeout
	}
	if o.PageLimit <= 0 {
		o.PageLimit = constant.DefaultPageLimit
	}
	if o.MaxPages <= 0 {
		o.MaxPages = constant.DefaultMaxPages
	}
	if o.Retry.InitialInterval <= 0 {
		o.Retry.InitialInterval = retry.DefaultInitialInterval
	}
	if o.Retry.MaxAttempts <= 0 {
		o.Retry.MaxAttempts = retry.DefaultMaxAttempts
	}
	return &Client{
		baseURL:    strings.TrimSuffix(o.BaseURL, "/"),
		apiKey:     o.APIKey,
		httpClient: &http.Client{Timeout: o.Timeout},
		limiter:    o.Limiter,
		pageLimit:  o.PageLimit,
		maxPages:   o.MaxPages,
		retry:      o.Retry,
	}
}

// NewFromConfig builds a client whose limiter is shared with every other
// client of the same host.
func NewFromConfig(cfg config.TronGridConfig) (*Client, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse trongrid url: %w", err)
	}
	return NewClient(Options{
		BaseURL:   cfg.URL,
		APIKey:    cfg.APIKey,
		Timeout:   cfg.Timeout,
		PageLimit: cfg.PageLimit,
		MaxPages:  cfg.MaxPages,
		Limiter:   ratelimiter.Shared(u.Host, cfg.Throttle.RPS, cfg.Throttle.Burst),
		Retry: retry.ExponentialConfig{
			InitialInterval: cfg.Retry.InitialInterval,
			MaxElapsedTime:  cfg.Retry.MaxElapsedTime,
			MaxAttempts:     cfg.Retry.MaxAttempts,
		},
	}), nil
}

// FetchOutboundSince returns transactions sent by account.
func (c *Client) FetchOutboundSince(ctx context.Context, account string, minTs int64) ([]json.RawMessage, error) {
	return c.fetchAll(ctx, routeTransactions, "/v1/accounts/"+url.PathEscape(account)+"/transactions",
		c.query(minTs, "only_from"))
}

// FetchInboundSince returns transactions received by account, internal
// transactions included.
func (c *Client) FetchInboundSince(ctx context.Context, account string, minTs int64) ([]json.RawMessage, error) {
	return c.fetchAll(ctx, routeTransactions, "/v1/accounts/"+url.PathEscape(account)+"/transactions",
		c.query(minTs, "only_to"))
}

// FetchTokenTransfersSince returns TRC-20 events touching account.
func (c *Client) FetchTokenTransfersSince(ctx context.Context, account string, minTs int64) ([]json.RawMessage, error) {
	return c.fetchAll(ctx, routeTRC20, "/v1/accounts/"+url.PathEscape(account)+"/transactions/trc20",
		c.query(minTs, ""))
}

func (c *Client) query(minTs int64, direction string) url.Values {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(c.pageLimit))
	q.Set("order_by", "block_timestamp,asc")
	q.Set("min_timestamp", strconv.FormatInt(minTs, 10))
	if direction != "" {
		q.Set(direction, "true")
	}
	return q
}

// fetchAll walks pages until the query is exhausted. When MaxPages is reached
// or ctx ends after at least one page, it returns the records gathered so far
// minus the trailing block_timestamp group, which may continue on the next
// page. The caller advances to the last returned timestamp and resumes there.
func (c *Client) fetchAll(ctx context.Context, route, path string, q url.Values) ([]json.RawMessage, error) {
	next := c.baseURL + path + "?" + q.Encode()

	var out []json.RawMessage
	for page := 1; ; page++ {
		env, err := c.getPage(ctx, route, next)
		if err != nil {
			if ctx.Err() != nil && len(out) > 0 {
				return c.truncated(path, page-1, out, err)
			}
			return nil, err
		}
		out = append(out, env.Data...)

		next = env.Meta.Links.Next
		if next == "" && env.Meta.Fingerprint != "" && len(env.Data) >= c.pageLimit {
			fq := cloneValues(q)
			fq.Set("fingerprint", env.Meta.Fingerprint)
			next = c.baseURL + path + "?" + fq.Encode()
		}
		if next == "" {
			logger.Debug("TronGrid query complete", "path", path, "pages", page, "records", len(out))
			return out, nil
		}
		if page >= c.maxPages {
			return c.truncated(path, page, out, fmt.Errorf("%w: %d pages of %s", ErrPageLimit, page, path))
		}
	}
}

func (c *Client) truncated(path string, pages int, out []json.RawMessage, cause error) ([]json.RawMessage, error) {
	kept := trimLastTimestampGroup(out)
	if len(kept) == 0 {
		// Every record shares one timestamp: advancing past it would drop
		// the unseen rest of the group.
		return nil, cause
	}
	logger.Info("TronGrid query truncated, remainder left for the next run",
		"path", path,
		"pages", pages,
		"records", len(kept),
		"dropped_tail", len(out)-len(kept),
		"reason", cause,
	)
	return kept, nil
}

// trimLastTimestampGroup drops the trailing records sharing the newest
// block_timestamp. Records without a readable timestamp at the tail go too.
func trimLastTimestampGroup(recs []json.RawMessage) []json.RawMessage {
	last := int64(-1)
	i := len(recs)
	for i > 0 {
		ts, ok := blockTimestamp(recs[i-1])
		if ok {
			if last < 0 {
				last = ts
			} else if ts != last {
				break
			}
		}
		i--
	}
	return recs[:i]
}

func blockTimestamp(raw json.RawMessage) (int64, bool) {
	var head struct {
		BlockTimestamp *int64 `json:"block_timestamp"`
	}
	if err := json.Unmarshal(raw, &head); err != nil || head.BlockTimestamp == nil {
		return 0, false
	}
	return *head.BlockTimestamp, true
}

func (c *Client) getPage(ctx context.Context, route, rawURL string) (*envelope, error) {
	var env *envelope
	op := func() error {
		e, err := c.do(ctx, route, rawURL)
		if err == nil {
			env = e
			return nil
		}
		var fe *FetchError
		if errors.As(err, &fe) && !fe.Retryable() {
			return retry.Permanent(err)
		}
		if ctx.Err() != nil {
			return retry.Permanent(err)
		}
		return err
	}

	cfg := c.retry
	cfg.OnRetry = func(err error, next time.Duration) {
		logger.Warn("TronGrid request failed, retrying", "url", redact(rawURL), "err", err, "next", next)
	}
	if err := retry.Exponential(ctx, op, cfg); err != nil {
		return nil, err
	}
	return env, nil
}

func (c *Client) do(ctx context.Context, route, rawURL string) (*envelope, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(constant.TronGridAPIKeyHdr, c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.APILatency.WithLabelValues(route).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.APIRequests.WithLabelValues(route, "error").Inc()
		return nil, err
	}
	defer resp.Body.Close()
	metrics.APIRequests.WithLabelValues(route, strconv.Itoa(resp.StatusCode)).Inc()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &FetchError{Status: resp.StatusCode, URL: redact(rawURL), Message: truncate(string(data), 256)}
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode trongrid response: %w", err)
	}
	if env.Success != nil && !*env.Success {
		msg := env.Error
		if msg == "" {
			msg = "success=false"
		}
		return nil, &FetchError{URL: redact(rawURL), Message: msg}
	}
	return &env, nil
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vs := range v {
		out[k] = append([]string(nil), vs...)
	}
	return out
}

// redact drops the query string from a URL before it is logged.
func redact(rawURL string) string {
	if i := strings.IndexByte(rawURL, '?'); i >= 0 {
		return rawURL[:i]
	}
	return rawURL
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
