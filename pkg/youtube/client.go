// Package youtube talks to the YouTube Data API v3: video metadata lookup,
// paginated top-level comment listing and video id extraction.
package youtube

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

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://www.googleapis.com/youtube/v3"

	// PageSize is the largest page the commentThreads endpoint serves.
	PageSize = 100

	maxErrorBody = 64 << 10
)

// RequestObserver is notified after every API call. Status is 0 when the
// request never got a response.
type RequestObserver interface {
	ObserveRequest(endpoint string, status int, elapsed time.Duration)
}

// Client is a YouTube Data API client. It is safe for concurrent use.
type Client struct {
	client   *http.Client
	apiKey   string
	baseURL  string
	timeout  time.Duration
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker
	observer RequestObserver
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another API root (tests, proxies).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithRequestTimeout bounds every single API call.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRateLimit paces outgoing calls. rps <= 0 disables pacing.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithCircuitBreaker stops calling the API for cooldown once failures
// consecutive calls failed in transport or with a 5xx status. Calls made
// while the breaker is open fail with ErrUnavailable. failures == 0 disables
// the breaker.
func WithCircuitBreaker(failures uint32, cooldown time.Duration) Option {
	return func(c *Client) {
		if failures == 0 {
			c.breaker = nil
			return
		}
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "youtube",
			Timeout: cooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= failures
			},
			IsSuccessful: countsAsAvailable,
		})
	}
}

// countsAsAvailable reports whether err still proves the API is up. Client
// errors, quota answers and caller cancellations do not trip the breaker.
func countsAsAvailable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status < http.StatusInternalServerError
	}
	return errors.Is(err, ErrMalformedResponse)
}

// WithObserver registers a RequestObserver.
func WithObserver(o RequestObserver) Option {
	return func(c *Client) { c.observer = o }
}

// NewClient creates a new YouTube API client.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		client:  &http.Client{Timeout: 30 * time.Second},
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		timeout: 15 * time.Second,
		limiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 5),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// VideoDetails looks up the title and thumbnail of a video. It returns
// ErrVideoNotFound when the API knows no such video.
func (c *Client) VideoDetails(ctx context.Context, videoID string) (*VideoDetails, error) {
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("id", videoID)

	var result videoListResponse
	if err := c.get(ctx, "videos", params, &result); err != nil {
		return nil, err
	}
	return result.details(videoID)
}

// ListComments returns one page of top-level comments (replies excluded).
// An empty pageToken requests the first page.
func (c *Client) ListComments(ctx context.Context, videoID, pageToken string) (*CommentPage, error) {
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("videoId", videoID)
	params.Set("maxResults", strconv.Itoa(PageSize))
	params.Set("textFormat", "plainText")
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}

	var result commentThreadListResponse
	if err := c.get(ctx, "commentThreads", params, &result); err != nil {
		return nil, err
	}
	return result.page()
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	if c.apiKey == "" {
		return ErrMissingAPIKey
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("wait for youtube %s slot: %w", endpoint, err)
		}
	}

	if c.breaker == nil {
		return c.do(ctx, endpoint, params, out)
	}
	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.do(ctx, endpoint, params, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return err
}

func (c *Client) do(ctx context.Context, endpoint string, params url.Values, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params.Set("key", c.apiKey)
	reqURL := c.baseURL + "/" + endpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("create youtube %s request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.observe(endpoint, 0, start)
		return fmt.Errorf("fetch youtube %s: %w", endpoint, redactKey(err))
	}
	defer resp.Body.Close()
	c.observe(endpoint, resp.StatusCode, start)

	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrMalformedResponse, endpoint, err)
	}
	return nil
}

func (c *Client) observe(endpoint string, status int, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveRequest(endpoint, status, time.Since(start))
	}
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var parsed apiErrorResponse
	if json.Unmarshal(body, &parsed) == nil {
		if parsed.Error.Message != "" {
			apiErr.Message = parsed.Error.Message
		}
		if len(parsed.Error.Errors) > 0 {
			apiErr.Reason = parsed.Error.Errors[0].Reason
		}
	}

	switch apiErr.Reason {
	case "quotaExceeded", "dailyLimitExceeded", "rateLimitExceeded", "userRateLimitExceeded":
		return fmt.Errorf("%w: %w", ErrQuotaExhausted, apiErr)
	}
	return apiErr
}

// redactKey strips the request URL, which carries the API key, from
// transport errors.
func redactKey(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return fmt.Errorf("%s: %w", uerr.Op, uerr.Err)
	}
	return err
}
