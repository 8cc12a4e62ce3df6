package main

import (
	"context"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-resty/resty/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	ei "github.com/rogov-ks/employee-importance/employeeimportance"
)

func newTestServer(t *testing.T) (*httptest.Server, *resty.Client) {
	return newTestServerTimeout(t, defaultComputeTimeout)
}

func newTestServerTimeout(t *testing.T, computeTimeout time.Duration) (*httptest.Server, *resty.Client) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(newRouter(logger, prometheus.NewRegistry(), computeTimeout))
	t.Cleanup(srv.Close)

	return srv, resty.New()
}

// diamond строит цепочку, где каждый сотрудник дважды подчиняет следующего: 2^layers путей.
func diamond(layers int) []ei.Employee {
	employees := make([]ei.Employee, layers+1)
	for i := range employees {
		employees[i] = ei.Employee{ID: i, Importance: 1}
		if i < layers {
			employees[i].Subordinates = []int{i + 1, i + 1}
		}
	}
	return employees
}

var scenario = []ei.Employee{
	{ID: 1, Importance: 5, Subordinates: []int{2, 3}},
	{ID: 2, Importance: 3, Subordinates: []int{}},
	{ID: 3, Importance: 3, Subordinates: []int{}},
}

func TestServer_Importance(t *testing.T) {
	srv, client := newTestServer(t)

	id := 1
	for _, tc := range []struct {
		name     string
		body     interface{}
		status   int
		expected int
	}{
		{
			name:     "ok",
			body:     importanceRequest{Employees: scenario, ID: &id},
			status:   http.StatusOK,
			expected: 11,
		},
		{
			name: "count_once",
			body: map[string]interface{}{
				"employees": []ei.Employee{
					{ID: 1, Importance: 1, Subordinates: []int{2, 3}},
					{ID: 2, Importance: 1, Subordinates: []int{4}},
					{ID: 3, Importance: 1, Subordinates: []int{4}},
					{ID: 4, Importance: 10},
				},
				"id":         1,
				"count_once": true,
			},
			status:   http.StatusOK,
			expected: 13,
		},
		{
			name: "missing_zero",
			body: map[string]interface{}{
				"employees": []ei.Employee{{ID: 1, Importance: 4, Subordinates: []int{8}}},
				"id":        1,
				"missing":   "zero",
			},
			status:   http.StatusOK,
			expected: 4,
		},
		{
			name:   "not_found",
			body:   map[string]interface{}{"employees": scenario, "id": 7},
			status: http.StatusNotFound,
		},
		{
			name: "cycle",
			body: map[string]interface{}{
				"employees": []ei.Employee{{ID: 1, Importance: 1, Subordinates: []int{1}}},
				"id":        1,
			},
			status: http.StatusUnprocessableEntity,
		},
		{
			name: "overflow",
			body: map[string]interface{}{
				"employees": []ei.Employee{
					{ID: 1, Importance: math.MaxInt, Subordinates: []int{2}},
					{ID: 2, Importance: 1},
				},
				"id": 1,
			},
			status: http.StatusUnprocessableEntity,
		},
		{
			name:   "no_id",
			body:   map[string]interface{}{"employees": scenario},
			status: http.StatusBadRequest,
		},
		{
			name:   "bad_policy",
			body:   map[string]interface{}{"employees": scenario, "id": 1, "missing": "skip"},
			status: http.StatusBadRequest,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var out importanceResponse
			resp, err := client.R().
				SetBody(tc.body).
				SetResult(&out).
				Post(srv.URL + "/importance")
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode(), resp.String())
			if tc.status == http.StatusOK {
				require.Equal(t, tc.expected, out.Importance)
			}
		})
	}
}

func TestServer_MalformedJSON(t *testing.T) {
	srv, client := newTestServer(t)

	resp, err := client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(`{"employees": [`).
		Post(srv.URL + "/importance")
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode())
}

func TestServer_BodyTooLarge(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := newRouter(logger, prometheus.NewRegistry(), defaultComputeTimeout)

	body := `{"id": 1, "missing": "` + strings.Repeat("x", maxBodyBytes) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/importance", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_ComputeTimeout(t *testing.T) {
	srv, client := newTestServerTimeout(t, 50*time.Millisecond)

	start := time.Now()
	resp, err := client.R().
		SetBody(map[string]interface{}{"employees": diamond(60), "id": 0}).
		Post(srv.URL + "/importance")
	require.NoError(t, err)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode(), resp.String())
	require.JSONEq(t, `{"error":"computation canceled"}`, resp.String())
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestServer_AbandonedRequest(t *testing.T) {
	srv, client := newTestServerTimeout(t, time.Minute)

	_, err := resty.New().SetTimeout(200*time.Millisecond).R().
		SetBody(map[string]interface{}{"employees": diamond(60), "id": 0}).
		Post(srv.URL + "/importance")
	require.Error(t, err)

	// Обработчик должен заметить отключение клиента и завершиться
	require.Eventually(t, func() bool {
		resp, err := client.R().Get(srv.URL + "/metrics")
		return err == nil && strings.Contains(resp.String(), `importance_requests_total{result="canceled"} 1`)
	}, 5*time.Second, 50*time.Millisecond)
}

func TestServer_RequestID(t *testing.T) {
	srv, client := newTestServer(t)

	resp, err := client.R().Get(srv.URL + "/pong")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())
	require.JSONEq(t, `{"message":"pong"}`, resp.String())
	require.NotEmpty(t, resp.Header().Get(requestIDHeader))

	resp, err = client.R().SetHeader(requestIDHeader, "abc").Get(srv.URL + "/pong")
	require.NoError(t, err)
	require.Equal(t, "abc", resp.Header().Get(requestIDHeader))
}

func TestServer_Metrics(t *testing.T) {
	srv, client := newTestServer(t)

	id := 1
	for i := 0; i < 2; i++ {
		_, err := client.R().SetBody(importanceRequest{Employees: scenario, ID: &id}).Post(srv.URL + "/importance")
		require.NoError(t, err)
	}
	id = 100
	_, err := client.R().SetBody(importanceRequest{Employees: scenario, ID: &id}).Post(srv.URL + "/importance")
	require.NoError(t, err)

	resp, err := client.R().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())
	require.Contains(t, resp.String(), `importance_requests_total{result="ok"} 2`)
	require.Contains(t, resp.String(), `importance_requests_total{result="not_found"} 1`)
}

func TestServer_Recovery(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := newRouter(logger, prometheus.NewRegistry(), defaultComputeTimeout)
	router.GET("/panic", func(c *gin.Context) { panic("boom") })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
}

func TestRunServer_StopsOnCancel(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, runServer(ctx, "127.0.0.1:0", defaultComputeTimeout, logger))
}
