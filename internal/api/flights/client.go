package flights

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"flight-price-checker/internal/models"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const maxAttempts = 3

// Client fetches round-trip fares from the flight search site. It is safe
// for concurrent use; all requests share one rate limiter.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
	userAgent  string
	attempts   int
	backoff    func(attempt int) time.Duration

	// OnRetry, when set, is called before every retried request.
	OnRetry func()
}

func New(baseURL string, timeout time.Duration, ratePerSec float64, userAgent string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter:   rate.NewLimiter(rate.Limit(ratePerSec), 1),
		logger:    logger,
		userAgent: userAgent,
		attempts:  maxAttempts,
		backoff: func(attempt int) time.Duration {
			return time.Duration(5*attempt) * time.Second
		},
	}
}

// SetRetry overrides the attempt count and the pause before each retry.
func (c *Client) SetRetry(attempts int, backoff func(attempt int) time.Duration) {
	if attempts < 1 {
		attempts = 1
	}
	c.attempts = attempts
	c.backoff = backoff
}

// SearchURL is the public results page of a round-trip search.
func SearchURL(baseURL string, p models.SearchParams) string {
	return fmt.Sprintf("%s/flights/international/%s-%s-%s/%s-%s-%s?adult=1&fareType=Y",
		baseURL,
		p.Origin, p.Destination, p.DepartDate,
		p.Destination, p.Origin, p.ReturnDate,
	)
}

// Fetch implements monitor.Fetcher.
func (c *Client) Fetch(ctx context.Context, params models.SearchParams) ([]models.Listing, error) {
	url := SearchURL(c.baseURL, params)

	body, err := c.get(ctx, url)
	if err != nil {
		c.logger.Error("failed to fetch fares",
			zap.Stringer("search", params),
			zap.Error(err),
		)
		return nil, fmt.Errorf("fetch %s: %w", params, err)
	}

	listings, err := ParseListings(body, params.Origin, params.Destination)
	if err != nil {
		c.logger.Warn("no usable fares on page",
			zap.Stringer("search", params),
			zap.Error(err),
		)
		return nil, fmt.Errorf("parse %s: %w", params, err)
	}

	c.logger.Debug("fares fetched",
		zap.Stringer("search", params),
		zap.Int("listings", len(listings)),
	)

	return listings, nil
}

// get performs a GET with rate limiting and retries on transport errors,
// 429 and 5xx responses.
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < c.attempts; attempt++ {
		if attempt > 0 {
			backoff := c.backoff(attempt)
			c.logger.Debug("retrying request",
				zap.String("url", url),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
			)
			if c.OnRetry != nil {
				c.OnRetry()
			}
			if err := sleep(ctx, backoff); err != nil {
				return nil, err
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			// Wait gives up early when the next token would land past the
			// deadline, without wrapping context.DeadlineExceeded.
			if ctx.Err() == nil {
				err = context.DeadlineExceeded
			}
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		body, retry, err := c.do(ctx, url)
		if err == nil {
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !retry {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("request failed after retries: %w", lastErr)
}

func (c *Client) do(ctx context.Context, url string) (body []byte, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html")
	req.Header.Set("Accept-Language", "ko-KR,ko;q=0.9")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("read response body: %w", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, false, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		c.logger.Warn("price source error",
			zap.String("url", url),
			zap.Int("status", resp.StatusCode),
		)
		return nil, true, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	default:
		return nil, false, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
