// Package vaults talks to the upstream vault API: the metrics listing
// consumed by the summary cache and the rebalance history consumed by
// the poller.
package vaults

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ErrUpstreamStatus marks a non-2xx upstream response. Callers treat it
// the same as a transport error: skip the cycle or fall back to stale.
var ErrUpstreamStatus = errors.New("upstream returned non-2xx status")

type Config struct {
	StatsURL      string
	RebalancesURL string
	Timeout       time.Duration
}

type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: timeout}}
}

// Stats fetches the full vault metrics listing.
func (c *Client) Stats(ctx context.Context) ([]VaultStat, error) {
	var stats []VaultStat
	if err := c.getJSON(ctx, c.cfg.StatsURL, &stats); err != nil {
		return nil, fmt.Errorf("vault stats: %w", err)
	}
	return stats, nil
}

// LatestRebalance fetches the single most recent rebalance event
// (page size 1, newest first). It returns (nil, nil) when the upstream
// has no events yet.
func (c *Client) LatestRebalance(ctx context.Context) (*RebalancePayload, error) {
	u, err := withPageParams(c.cfg.RebalancesURL, 1, 1)
	if err != nil {
		return nil, fmt.Errorf("rebalances url: %w", err)
	}
	var page []RebalancePayload
	if err := c.getJSON(ctx, u, &page); err != nil {
		return nil, fmt.Errorf("latest rebalance: %w", err)
	}
	if len(page) == 0 {
		return nil, nil
	}
	return &page[0], nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused.
		_, _ = io.CopyN(io.Discard, resp.Body, 4096)
		return fmt.Errorf("%w: %d from %s", ErrUpstreamStatus, resp.StatusCode, req.URL.Host)
	}

	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

func withPageParams(rawURL string, page, pageSize int) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))
	q.Set("sort", "desc")
	u.RawQuery = q.Encode()
	return u.String(), nil
}
