// Package aggregator is the REST client for the swap aggregator API used to
// quote and execute token swaps during a rebalance.
package aggregator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/lpwatch/rangekeeper/internal/domain"
)

// Client is the REST client for the swap aggregator API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new aggregator client.
//
// baseURL is the aggregator API root, e.g. "https://aggregator.example.com".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// FindRoutes asks the aggregator for swap routes matching the request,
// ordered best output first. An empty result is returned as-is; callers
// decide whether that is fatal.
func (c *Client) FindRoutes(ctx context.Context, req domain.RouteRequest) ([]domain.Route, error) {
	params := url.Values{}
	params.Set("fromToken", req.FromAsset)
	params.Set("toToken", req.ToAsset)
	params.Set("amount", req.Amount.String())
	params.Set("from", req.FromAddress)
	params.Set("slippageBps", fmt.Sprintf("%d", req.SlippageBps))

	path := "/v1/routes?" + params.Encode()

	body, err := c.doGet(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("aggregator: find routes: %w", err)
	}

	var apiRoutes []apiRoute
	if err := json.Unmarshal(body, &apiRoutes); err != nil {
		return nil, fmt.Errorf("aggregator: decode routes: %w", err)
	}

	routes := make([]domain.Route, 0, len(apiRoutes))
	for i := range apiRoutes {
		route, err := apiRoutes[i].toDomain()
		if err != nil {
			return nil, fmt.Errorf("aggregator: route %s: %w", apiRoutes[i].ID, err)
		}
		routes = append(routes, route)
	}
	return routes, nil
}

// Execute submits a previously quoted route for execution and waits for the
// aggregator to report the realized amounts.
func (c *Client) Execute(ctx context.Context, route domain.Route) (domain.ExecutedRoute, error) {
	path := fmt.Sprintf("/v1/routes/%s/execute", url.PathEscape(route.ID))

	body, err := c.doPost(ctx, path, nil)
	if err != nil {
		return domain.ExecutedRoute{}, fmt.Errorf("aggregator: execute route %s: %w", route.ID, err)
	}

	var exec apiExecution
	if err := json.Unmarshal(body, &exec); err != nil {
		return domain.ExecutedRoute{}, fmt.Errorf("aggregator: decode execution: %w", err)
	}
	return exec.toDomain()
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return c.do(req)
}

func (c *Client) doPost(ctx context.Context, path string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(body, 256))
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}

// Compile-time interface check.
var _ domain.SwapRouter = (*Client)(nil)
