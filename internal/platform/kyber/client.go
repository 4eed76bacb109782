// Package kyber is the REST client for the external routing aggregator. It
// fetches conversion routes and builds swap payloads. Missing or failed
// quotes are reported as "no route", never as hard failures: one venue going
// quiet must not abort evaluation of the other direction.
package kyber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/url"
	"time"

	"github.com/0xlarry/basearb/internal/domain"
)

const (
	requestTimeout    = 10 * time.Second
	defaultMaxRetries = 3
)

// Backoff delays, variables so tests can compress them.
var (
	retryDelay    = 2 * time.Second
	deniedBackoff = 10 * time.Second
)

// Limiter gates outbound calls to the aggregator.
type Limiter interface {
	Allow() bool
}

// Client talks to the aggregator's routes and route/build endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    Limiter
	logger     *slog.Logger

	slippageBps int
	deadline    time.Duration
	maxRetries  int
}

// NewClient creates a Client against baseURL (e.g.
// "https://aggregator-api.kyberswap.com/base/api/v1"). slippageBps and
// deadline parameterize the build step; maxRetries bounds 429 retries and
// falls back to 3 when non-positive.
func NewClient(baseURL string, limiter Limiter, slippageBps int, deadline time.Duration, maxRetries int, logger *slog.Logger) *Client {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	return &Client{
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: requestTimeout},
		limiter:     limiter,
		logger:      logger.With(slog.String("component", "kyber")),
		slippageBps: slippageBps,
		deadline:    deadline,
		maxRetries:  maxRetries,
	}
}

// GetRoute fetches a suggested route for converting amountIn of tokenIn into
// tokenOut. It returns (nil, nil) when no route is available — timeouts,
// non-200 statuses, and malformed payloads all downgrade to "no route".
// Rate-limit denials back off once before proceeding; HTTP 429 responses are
// retried with a bounded linear backoff.
func (c *Client) GetRoute(ctx context.Context, tokenIn, tokenOut string, amountIn *big.Int) (*domain.Route, error) {
	if !c.limiter.Allow() {
		c.logger.Warn("aggregator rate limit reached, backing off")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(deniedBackoff):
		}
	}

	query := url.Values{}
	query.Set("tokenIn", tokenIn)
	query.Set("tokenOut", tokenOut)
	query.Set("amountIn", amountIn.String())
	reqURL := c.baseURL + "/routes?" + query.Encode()

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryDelay * time.Duration(attempt)):
			}
		}

		route, retry, err := c.fetchRoute(ctx, reqURL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Debug("route fetch failed", slog.String("error", err.Error()))
			continue
		}
		if retry {
			continue
		}
		return route, nil
	}

	// Retries exhausted: no data this pass.
	return nil, nil
}

// fetchRoute performs one GET /routes attempt. retry=true signals a 429.
func (c *Client) fetchRoute(ctx context.Context, reqURL string) (route *domain.Route, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("kyber: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("kyber: route request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, true, nil
	case resp.StatusCode != http.StatusOK:
		c.logger.Debug("route request rejected", slog.Int("status", resp.StatusCode))
		return nil, false, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("kyber: read route response: %w", err)
	}

	var decoded routeResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		c.logger.Debug("malformed route response", slog.String("error", err.Error()))
		return nil, false, nil
	}
	if len(decoded.Data.RouteSummary) == 0 {
		return nil, false, nil
	}

	var fields routeSummaryFields
	if err := json.Unmarshal(decoded.Data.RouteSummary, &fields); err != nil {
		c.logger.Debug("malformed route summary", slog.String("error", err.Error()))
		return nil, false, nil
	}
	amountOut, ok := new(big.Int).SetString(fields.AmountOut, 10)
	if !ok {
		c.logger.Debug("unparseable amountOut", slog.String("amount_out", fields.AmountOut))
		return nil, false, nil
	}

	return &domain.Route{
		AmountOut: amountOut,
		Summary:   decoded.Data.RouteSummary,
	}, false, nil
}

// BuildSwap finalizes a previously fetched route into an executable swap
// payload, with the settlement contract as both sender and recipient.
// Unlike GetRoute, failures here are hard errors: the execution controller
// must abort the attempt when the payload cannot be built.
func (c *Client) BuildSwap(ctx context.Context, routeSummary json.RawMessage, contract string) (string, error) {
	payload := buildRequest{
		RouteSummary:      routeSummary,
		Sender:            contract,
		Recipient:         contract,
		SlippageTolerance: c.slippageBps,
		Deadline:          time.Now().Add(c.deadline).Unix(),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("kyber: marshal build request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/route/build", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("kyber: create build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("kyber: build request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("kyber: read build response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("kyber: build failed (HTTP %d): %s", resp.StatusCode, string(respBody))
	}

	var decoded buildResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return "", fmt.Errorf("kyber: decode build response: %w", err)
	}
	if decoded.Data.Data == "" {
		return "", fmt.Errorf("kyber: build response missing swap data")
	}

	return decoded.Data.Data, nil
}
