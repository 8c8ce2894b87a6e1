// Package bybit is the Bybit V5 adapter: public market data, instrument rules,
// signed market orders and the public kline WebSocket stream.
package bybit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://api-testnet.bybit.com"

	// One request per 75ms, the spacing Bybit tolerates for unauthenticated market data.
	requestsPerSec = 13
	burst          = 1

	maxRetries    = 3
	baseRetryWait = 200 * time.Millisecond
	maxRetryWait  = 5 * time.Second

	retCodeTimestamp = 10002
	retCodeRateLimit = 10006

	timeSyncTTL = time.Minute
)

// APIError is a non-zero retCode returned by Bybit.
type APIError struct {
	RetCode int
	Msg     string
}

func (e *APIError) Error() string {
	switch e.RetCode {
	case retCodeTimestamp:
		return fmt.Sprintf("bybit error %d: %s (timestamp invalid; check time sync)", e.RetCode, e.Msg)
	case retCodeRateLimit:
		return fmt.Sprintf("bybit error %d: %s (rate limit)", e.RetCode, e.Msg)
	}
	return fmt.Sprintf("bybit error %d: %s", e.RetCode, e.Msg)
}

// Config holds connection settings and credentials.
type Config struct {
	BaseURL      string
	APIKey       string
	APISecret    string
	RecvWindowMs int
	Category     string
	Symbol       string
}

// Client is the Bybit V5 REST client with rate limiting, retries and request signing.
type Client struct {
	http    *http.Client
	cfg     Config
	limiter *rate.Limiter
	now     func() time.Time

	mu         sync.Mutex
	offset     time.Duration
	lastSynced time.Time
}

// NewClient creates a Client. An empty BaseURL uses the testnet.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.RecvWindowMs <= 0 {
		cfg.RecvWindowMs = 5000
	}
	if cfg.Category == "" {
		cfg.Category = "spot"
	}
	cfg.Symbol = strings.ToUpper(cfg.Symbol)
	return &Client{
		http:    &http.Client{Timeout: 10 * time.Second},
		cfg:     cfg,
		limiter: rate.NewLimiter(requestsPerSec, burst),
		now:     time.Now,
	}
}

type envelope struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
	Time    int64           `json:"time"`
}

// get issues an unauthenticated GET. params keep insertion order in the query string.
func (c *Client) get(ctx context.Context, path string, params [][2]string, out any) error {
	query := encodeQuery(params)
	target := c.cfg.BaseURL + path
	if query != "" {
		target += "?" + query
	}
	_, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	}, out)
	return err
}

// post issues a signed JSON POST.
func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	if c.cfg.APIKey == "" || c.cfg.APISecret == "" {
		return errors.New("bybit apiKey/apiSecret required for signed requests")
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}
	_, err = c.doWithRetry(ctx, func() (*http.Request, error) {
		ts, err := c.timestamp(ctx)
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		c.signRequest(req, ts, string(payload))
		return req, nil
	}, out)
	return err
}

// doWithRetry runs the request with exponential backoff on transport errors,
// HTTP 403/429/5xx and the Bybit rate-limit retCode.
func (c *Client) doWithRetry(ctx context.Context, build func() (*http.Request, error), out any) (*envelope, error) {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		req, err := build()
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			if attempt == maxRetries {
				return nil, fmt.Errorf("request failed after %d retries: %w", maxRetries, err)
			}
			c.sleep(ctx, attempt)
			continue
		}
		logRateLimit(resp.Header)

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusForbidden || resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return nil, fmt.Errorf("http status %d after %d retries", resp.StatusCode, maxRetries)
			}
			slog.Warn("bybit: retrying request", "status", resp.StatusCode, "attempt", attempt+1)
			c.sleep(ctx, attempt)
			continue
		}
		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return nil, fmt.Errorf("client error %d: %s", resp.StatusCode, string(body))
		}

		var env envelope
		err = json.NewDecoder(resp.Body).Decode(&env)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		if env.RetCode != 0 {
			apiErr := &APIError{RetCode: env.RetCode, Msg: env.RetMsg}
			if env.RetCode == retCodeRateLimit && attempt < maxRetries {
				slog.Warn("bybit: rate limited", "attempt", attempt+1)
				c.sleep(ctx, attempt)
				continue
			}
			return nil, apiErr
		}
		if out != nil && len(env.Result) > 0 {
			if err := json.Unmarshal(env.Result, out); err != nil {
				return nil, fmt.Errorf("decode result: %w", err)
			}
		}
		return &env, nil
	}
	return nil, fmt.Errorf("exhausted %d retries", maxRetries)
}

// sleep waits with exponential backoff, capped, honouring ctx.
func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	if wait > maxRetryWait {
		wait = maxRetryWait
	}
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}

// ServerTime returns Bybit's clock.
func (c *Client) ServerTime(ctx context.Context) (time.Time, error) {
	var res struct {
		TimeSecond string `json:"timeSecond"`
	}
	env, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/v5/market/time", nil)
	}, &res)
	if err != nil {
		return time.Time{}, fmt.Errorf("bybit.ServerTime: %w", err)
	}
	if env.Time > 0 {
		return time.UnixMilli(env.Time), nil
	}
	sec, err := strconv.ParseInt(res.TimeSecond, 10, 64)
	if err != nil {
		return time.Time{}, errors.New("bybit.ServerTime: missing time fields")
	}
	return time.Unix(sec, 0), nil
}

// timestamp returns the local clock corrected by the server offset, resyncing once a minute.
func (c *Client) timestamp(ctx context.Context) (int64, error) {
	c.mu.Lock()
	stale := c.now().Sub(c.lastSynced) >= timeSyncTTL
	c.mu.Unlock()

	if stale {
		server, err := c.ServerTime(ctx)
		if err != nil {
			slog.Warn("bybit: time sync failed, using local clock", "err", err)
		} else {
			c.mu.Lock()
			c.offset = server.Sub(c.now())
			c.lastSynced = c.now()
			c.mu.Unlock()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now().Add(c.offset).UnixMilli(), nil
}

func encodeQuery(params [][2]string) string {
	parts := make([]string, 0, len(params))
	for _, p := range params {
		parts = append(parts, p[0]+"="+url.QueryEscape(p[1]))
	}
	return strings.Join(parts, "&")
}

func logRateLimit(h http.Header) {
	remaining := h.Get("X-Bapi-Limit-Status")
	limit := h.Get("X-Bapi-Limit")
	if remaining != "" || limit != "" {
		slog.Debug("bybit rate limit", "remaining", remaining, "limit", limit,
			"reset", h.Get("X-Bapi-Limit-Reset-Timestamp"))
	}
}
