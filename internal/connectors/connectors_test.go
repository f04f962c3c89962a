package connectors

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xela07ax/ricemarket-console/internal/domain"
)

func newMock(t *testing.T) (*httptest.Server, Options) {
	t.Helper()
	srv := httptest.NewServer(NewMockServer().Handler())
	t.Cleanup(srv.Close)
	return srv, Options{Tokens: StaticToken("test-token"), Logger: zaptest.NewLogger(t)}
}

func TestNLSQLClient_Query(t *testing.T) {
	srv, opts := newMock(t)
	c := NewNLSQLClient(srv.URL, opts)

	resp, err := c.Query(context.Background(), "How many customers are in the database?")
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "SELECT COUNT(*) FROM customers", resp.SQLQuery)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, json.Number("42"), resp.Results[0]["count"])
}

func TestNLSQLClient_SuccessFalseIsNotAnError(t *testing.T) {
	srv, opts := newMock(t)
	c := NewNLSQLClient(srv.URL, opts)

	resp, err := c.Query(context.Background(), "unsupported question")
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.NotNil(t, resp.Results)
}

func TestClient_DetailBecomesMessage(t *testing.T) {
	srv, opts := newMock(t)
	c := NewNLSQLClient(srv.URL, opts)

	_, err := c.Query(context.Background(), "   ")
	var sErr *domain.ServiceError
	require.ErrorAs(t, err, &sErr)
	assert.Equal(t, http.StatusUnprocessableEntity, sErr.StatusCode)
	assert.Equal(t, "question is required", sErr.Message)
	assert.Equal(t, domain.ServiceNLSQL, sErr.Service)
}

func TestClient_ErrorMessageFallbacks(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"string detail", `{"detail":"boom"}`, "boom"},
		{"validation list", `{"detail":[{"loc":["body","query"]}]}`, `[{"loc":["body","query"]}]`},
		{"no detail", `{}`, "Failed to execute query"},
		{"not json", `<html>`, "Failed to execute query"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewAgentClient(srv.URL, Options{}).Execute(context.Background(), "q", nil)
			var sErr *domain.ServiceError
			require.ErrorAs(t, err, &sErr)
			assert.Equal(t, tt.want, sErr.Message)
		})
	}
}

func TestClient_StatusFallbackWithoutDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewRAGClient(srv.URL, Options{}).Documents(context.Background())
	var sErr *domain.ServiceError
	require.ErrorAs(t, err, &sErr)
	assert.Equal(t, "API Error: 502", sErr.Message)
}

func TestClient_TransportFailureIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewNLSQLClient(url, Options{}).Query(context.Background(), "q")
	var nErr *domain.NetworkError
	require.ErrorAs(t, err, &nErr)
	assert.Equal(t, "network", domain.ErrorKind(err))
}

func TestClient_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success":`))
	}))
	defer srv.Close()

	_, err := NewNLSQLClient(srv.URL, Options{}).Query(context.Background(), "q")
	var sErr *domain.ServiceError
	require.ErrorAs(t, err, &sErr)
	assert.Equal(t, "malformed response", sErr.Message)
}

func TestClient_SendsBearer(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"response":"","agents_used":[],"success":true}`))
	}))
	defer srv.Close()

	_, err := NewAgentClient(srv.URL, Options{Tokens: StaticToken("abc")}).Execute(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Equal(t, "Bearer abc", got)
}

func TestHealth_AuthIsOptional(t *testing.T) {
	var headers []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = append(headers, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	}))
	defer srv.Close()

	c := NewRAGClient(srv.URL, Options{Tokens: StaticToken("abc")})
	status, err := c.Health(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "healthy", status)

	_, err = c.Health(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, []string{"", "Bearer abc"}, headers)
}

func TestAgentClient_ExecuteAndAgents(t *testing.T) {
	srv, opts := newMock(t)
	c := NewAgentClient(srv.URL, opts)

	resp, err := c.Execute(context.Background(), "rice outlook", map[string]any{"region": "Punjab"})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, MockResponse, resp.Response)
	assert.Equal(t, []string{"sql_agent", "rag_agent", "forecast_agent"}, resp.AgentsUsed)

	agents, err := c.Agents(context.Background())
	require.NoError(t, err)
	require.Len(t, agents, 3)
	assert.Equal(t, "sql_agent", agents[0].Name)
	assert.Equal(t, "active", agents[0].Status)
}

func TestDecodeAgents_Shapes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"plain strings", `["a","b"]`, []string{"a", "b"}},
		{"wrapped objects", `{"agents":[{"name":"x"}]}`, []string{"x"}},
		{"mixed", `["a",{"name":"b","status":"idle"}]`, []string{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agents, err := decodeAgents([]byte(tt.raw))
			require.NoError(t, err)
			var names []string
			for _, a := range agents {
				names = append(names, a.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}

	_, err := decodeAgents([]byte(`42`))
	assert.Error(t, err)
}

func TestRAGClient_Lifecycle(t *testing.T) {
	srv, opts := newMock(t)
	c := NewRAGClient(srv.URL, opts)
	ctx := context.Background()

	res, err := c.Query(ctx, "why are prices rising?", 1)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Answer)
	require.Len(t, res.Sources, 1)
	assert.Equal(t, "rice_market_report_2024.pdf", res.Sources[0].Source)
	assert.InDelta(t, 0.87, res.Confidence, 1e-9)

	up, err := c.Upload(ctx, "notes.txt", strings.NewReader(strings.Repeat("x", 1200)))
	require.NoError(t, err)
	assert.True(t, up.Success)
	assert.Equal(t, 3, up.ChunksIndexed)

	list, err := c.Documents(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, list.Count)
	assert.Contains(t, list.Sources, "notes.txt")

	_, err = c.DeleteDocument(ctx, "notes.txt")
	require.NoError(t, err)

	_, err = c.DeleteDocument(ctx, "notes.txt")
	var sErr *domain.ServiceError
	require.ErrorAs(t, err, &sErr)
	assert.Equal(t, http.StatusNotFound, sErr.StatusCode)
	assert.Equal(t, "Document notes.txt not found", sErr.Message)

	_, err = c.DeleteAll(ctx)
	require.NoError(t, err)
	list, err = c.Documents(ctx)
	require.NoError(t, err)
	assert.Zero(t, list.Count)
	assert.Empty(t, list.Sources)
}

func TestForecastClient_CompareAll(t *testing.T) {
	srv, opts := newMock(t)
	c := NewForecastClient(srv.URL, opts)

	f, err := c.CompareAll(context.Background(), ForecastRequest{Data: []float64{10, 11}, Horizon: 3, Frequency: "D"})
	require.NoError(t, err)
	assert.Equal(t, "ensemble", f.BestModel)
	require.Len(t, f.Predictions, 3)
	assert.InDelta(t, 11.4, f.Predictions[0], 1e-9)
	assert.NotEmpty(t, f.ComparisonTable)
}

func TestForecastClient_Models(t *testing.T) {
	srv, opts := newMock(t)
	raw, err := NewForecastClient(srv.URL, opts).Models(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"models":["arima","prophet","lstm","ensemble"]}`, string(raw))
}

func TestMock_RequiresBearer(t *testing.T) {
	srv, _ := newMock(t)
	_, err := NewNLSQLClient(srv.URL, Options{}).Query(context.Background(), "q")
	var sErr *domain.ServiceError
	require.ErrorAs(t, err, &sErr)
	assert.Equal(t, http.StatusUnauthorized, sErr.StatusCode)
}

func TestGuard_BreakerOpensOnServerErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	var transitions []gobreaker.State
	c := NewNLSQLClient(srv.URL, Options{
		CBFailures: 2,
		CBTimeout:  time.Minute,
		OnBreakerChange: func(_ string, _, to gobreaker.State) {
			transitions = append(transitions, to)
		},
	})

	for i := 0; i < 2; i++ {
		_, err := c.Query(context.Background(), "q")
		assert.Equal(t, "service", domain.ErrorKind(err))
	}

	_, err := c.Query(context.Background(), "q")
	var nErr *domain.NetworkError
	require.ErrorAs(t, err, &nErr)
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.Equal(t, 2, calls, "open breaker must not reach the server")
	assert.Equal(t, []gobreaker.State{gobreaker.StateOpen}, transitions)
}

func TestGuard_ClientErrorsDoNotTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := NewNLSQLClient(srv.URL, Options{CBFailures: 1})
	for i := 0; i < 3; i++ {
		_, err := c.Query(context.Background(), "q")
		assert.Equal(t, "service", domain.ErrorKind(err))
	}
	assert.Equal(t, gobreaker.StateClosed, c.guard.State())
}

func TestGuard_CancelledContext(t *testing.T) {
	c := NewNLSQLClient("http://127.0.0.1:1", Options{RateLimit: 0.001, RateBurst: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Query(ctx, "q")
	var nErr *domain.NetworkError
	assert.ErrorAs(t, err, &nErr)
}
