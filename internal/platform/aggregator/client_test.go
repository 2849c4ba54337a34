package aggregator

import (
	"context"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lpwatch/rangekeeper/internal/domain"
)

func routeRequest() domain.RouteRequest {
	return domain.RouteRequest{
		FromAsset:   "0xtokenx",
		ToAsset:     "native",
		Amount:      big.NewInt(500),
		FromAddress: "0xowner",
		SlippageBps: 50,
	}
}

func TestFindRoutes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/routes", r.URL.Path)

		q := r.URL.Query()
		assert.Equal(t, "0xtokenx", q.Get("fromToken"))
		assert.Equal(t, "native", q.Get("toToken"))
		assert.Equal(t, "500", q.Get("amount"))
		assert.Equal(t, "0xowner", q.Get("from"))
		assert.Equal(t, "50", q.Get("slippageBps"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id":"r1","fromToken":"0xtokenx","toToken":"native","amountIn":"500","amountOut":"490"},
			{"id":"r2","fromToken":"0xtokenx","toToken":"native","amountIn":"500","amountOut":"480"}
		]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	routes, err := c.FindRoutes(context.Background(), routeRequest())
	require.NoError(t, err)
	require.Len(t, routes, 2)

	assert.Equal(t, "r1", routes[0].ID)
	assert.Equal(t, "0xtokenx", routes[0].FromAsset)
	assert.Equal(t, "native", routes[0].ToAsset)
	assert.Equal(t, big.NewInt(500), routes[0].AmountIn)
	assert.Equal(t, big.NewInt(490), routes[0].AmountOut)
	assert.Equal(t, big.NewInt(480), routes[1].AmountOut)
}

func TestFindRoutesEmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	routes, err := NewClient(srv.URL).FindRoutes(context.Background(), routeRequest())
	require.NoError(t, err)
	assert.Empty(t, routes, "no routes is the caller's problem, not a transport error")
}

func TestFindRoutesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream pool unavailable", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).FindRoutes(context.Background(), routeRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
	assert.Contains(t, err.Error(), "upstream pool unavailable")
}

func TestFindRoutesInvalidAmount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":"r1","amountIn":"not-a-number","amountOut":"1"}]`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).FindRoutes(context.Background(), routeRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "route r1")
	assert.Contains(t, err.Error(), `invalid amount "not-a-number"`)
}

func TestExecute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/routes/r1/execute", r.URL.Path)

		w.Write([]byte(`{"txHash":"0xswap","realizedIn":"500","realizedOut":"488"}`))
	}))
	defer srv.Close()

	exec, err := NewClient(srv.URL).Execute(context.Background(), domain.Route{ID: "r1"})
	require.NoError(t, err)

	assert.Equal(t, "0xswap", exec.TxRef)
	assert.Equal(t, big.NewInt(500), exec.RealizedIn)
	assert.Equal(t, big.NewInt(488), exec.RealizedOut)
}

func TestExecuteRouteIDIsPathEscaped(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		w.Write([]byte(`{"txHash":"0x1","realizedIn":"1","realizedOut":"1"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Execute(context.Background(), domain.Route{ID: "r/1"})
	require.NoError(t, err)
	assert.Equal(t, "/v1/routes/r%2F1/execute", gotPath)
}

func TestExecuteServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"quote expired"}`, http.StatusConflict)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Execute(context.Background(), domain.Route{ID: "r1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "execute route r1")
	assert.Contains(t, err.Error(), "status 409")
}

func TestParseAmountEmptyIsZero(t *testing.T) {
	n, err := parseAmount("")
	require.NoError(t, err)
	assert.Equal(t, 0, n.Sign())
}
