package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/time/rate"
)

const maxResponseBytes = 10 << 20

// NewHttpClient returns a client with an HTTP/2 capable transport shared by explorer and custodian calls.
func NewHttpClient(timeout time.Duration) (*http.Client, error) {
	tr := &http.Transport{
		ResponseHeaderTimeout: timeout,
		Proxy:                 http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			KeepAlive: 30 * time.Second,
			Timeout:   15 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConnsPerHost:   5,
		ExpectContinueTimeout: 5 * time.Second,
	}

	if err := http2.ConfigureTransport(tr); err != nil {
		return nil, fmt.Errorf("unable to configure http2 transport: %w", err)
	}

	return &http.Client{
		Transport: tr,
		Timeout:   timeout,
	}, nil
}

// fetcher wraps GET+JSON calls to one upstream with a rate limit and a circuit breaker.
type fetcher struct {
	name    string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

func newFetcher(name string, client *http.Client, requestsPerSec float64) *fetcher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	limit := rate.Inf
	if requestsPerSec > 0 {
		limit = rate.Limit(requestsPerSec)
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			zap.L().Warn("Explorer circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &fetcher{
		name:    name,
		client:  client,
		breaker: gobreaker.NewCircuitBreaker(settings),
		limiter: rate.NewLimiter(limit, 1),
	}
}

func (f *fetcher) getJSON(ctx context.Context, url string, out interface{}) error {
	if err := f.limiter.Wait(ctx); err != nil {
		return upstreamError(f.name, fmt.Errorf("rate limiter: %w", err))
	}

	_, err := f.breaker.Execute(func() (interface{}, error) {
		return nil, f.do(ctx, url, out)
	})
	if err != nil {
		return upstreamError(f.name, err)
	}
	return nil
}

func (f *fetcher) do(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			zap.L().Warn("Failed to close response body", zap.String("upstream", f.name), zap.Error(err))
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
