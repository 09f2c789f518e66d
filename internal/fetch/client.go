package fetch

import (
	"context"
	"encoding/json"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	DefaultTimeout = 30 * time.Second
	DefaultRetries = 3
)

// ProxySource supplies outbound proxy addresses. A nil source or an
// empty list means direct connections.
type ProxySource interface {
	All() []string
}

// Client fetches JSON documents from the source API with bounded
// retries, exponential backoff and per-attempt proxy rotation.
type Client struct {
	baseURL    string
	httpClient *http.Client
	proxies    ProxySource
	logger     zerolog.Logger

	// injected for tests
	sleep func(time.Duration)
	pick  func(n int) int
}

func NewClient(baseURL string, timeout time.Duration, proxies ProxySource, logger zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: &http.Transport{Proxy: proxyFromContext},
		},
		proxies: proxies,
		logger:  logger.With().Str("component", "fetch").Logger(),
		sleep:   time.Sleep,
		pick:    rand.Intn,
	}
}

// CallOption tunes a single logical fetch.
type CallOption func(*callOptions)

type callOptions struct {
	retries   int
	baseDelay time.Duration
}

// WithRetries bounds the total number of attempts, including the
// first one.
func WithRetries(n int) CallOption {
	return func(o *callOptions) { o.retries = n }
}

// WithBaseDelay sets the backoff base. The delay before attempt n is
// baseDelay doubled per retry, never less than one second.
func WithBaseDelay(d time.Duration) CallOption {
	return func(o *callOptions) { o.baseDelay = d }
}

// ClubProfile fetches a club's profile document.
func (c *Client) ClubProfile(ctx context.Context, clubID string, opts ...CallOption) (*Object, error) {
	return c.GetJSON(ctx, "/clubs/"+url.PathEscape(clubID)+"/profile", nil, opts...)
}

// ClubPlayers fetches a club's roster, optionally filtered to a season.
func (c *Client) ClubPlayers(ctx context.Context, clubID, seasonID string, opts ...CallOption) (*Object, error) {
	var query url.Values
	if seasonID != "" {
		query = url.Values{"season_id": {seasonID}}
	}
	return c.GetJSON(ctx, "/clubs/"+url.PathEscape(clubID)+"/players", query, opts...)
}

// PlayerProfile fetches the detail document merged into a roster row
// during enrichment.
func (c *Client) PlayerProfile(ctx context.Context, playerID string, opts ...CallOption) (*Object, error) {
	return c.GetJSON(ctx, "/players/"+url.PathEscape(playerID)+"/profile", nil, opts...)
}

// GetJSON performs one logical fetch of path with the client's retry
// policy. Non-retriable status codes abort immediately; other errors
// are retried with exponential backoff until the attempt budget is
// spent, and the last error is returned.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, opts ...CallOption) (*Object, error) {
	call := callOptions{retries: DefaultRetries}
	for _, opt := range opts {
		opt(&call)
	}
	if call.retries < 1 {
		call.retries = 1
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var lastErr error
	for attempt := 1; attempt <= call.retries; attempt++ {
		if attempt > 1 {
			c.sleep(backoff(call.baseDelay, attempt))
		}
		obj, err := c.do(ctx, target)
		if err == nil {
			return obj, nil
		}
		lastErr = err
		if NonRetriable(err) {
			return nil, err
		}
		c.logger.Warn().Err(err).
			Int("attempt", attempt).
			Int("retries", call.retries).
			Str("url", target).
			Msg("Fetch attempt failed")
	}
	return nil, lastErr
}

// backoff returns the sleep before the given attempt (attempt >= 2):
// baseDelay * 2^(attempt-2), floored to one second when the product
// is zero.
func backoff(baseDelay time.Duration, attempt int) time.Duration {
	d := baseDelay * time.Duration(1<<uint(attempt-2))
	if d <= 0 {
		return time.Second
	}
	return d
}

func (c *Client) do(ctx context.Context, target string) (*Object, error) {
	if addr, ok := c.pickProxy(); ok {
		proxyURL, err := url.Parse(addr)
		if err != nil {
			c.logger.Warn().Str("proxy", addr).Msg("Skipping unparsable proxy address")
		} else {
			ctx = context.WithValue(ctx, proxyKey{}, proxyURL)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{Status: resp.StatusCode, URL: target}
	}

	var obj Object
	if err := json.NewDecoder(resp.Body).Decode(&obj); err != nil {
		return nil, errors.Wrapf(err, "decode response from %s", target)
	}
	return &obj, nil
}

// pickProxy chooses one pool address uniformly at random, so a failed
// attempt may retry through a different address.
func (c *Client) pickProxy() (string, bool) {
	if c.proxies == nil {
		return "", false
	}
	addrs := c.proxies.All()
	if len(addrs) == 0 {
		return "", false
	}
	return addrs[c.pick(len(addrs))], true
}

// proxyKey carries the per-attempt proxy choice to the shared
// transport.
type proxyKey struct{}

func proxyFromContext(req *http.Request) (*url.URL, error) {
	if v := req.Context().Value(proxyKey{}); v != nil {
		return v.(*url.URL), nil
	}
	return nil, nil
}
