package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"tga-backend/internal/services/health"
	"tga-backend/internal/shared/config"
)

func testRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.TestMode)
	if deps.Config.Env == "" {
		deps.Config.Env = "dev"
	}
	return NewRouter(deps)
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
	return resp
}

func TestHealthWithoutChecks(t *testing.T) {
	resp := get(testRouter(RouterDeps{}), "/api/v1/health")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if resp.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestHealthReportsFailingDependency(t *testing.T) {
	svc := health.NewService()
	svc.Register("database", func(ctx context.Context) error { return errors.New("connection refused") })

	resp := get(testRouter(RouterDeps{Health: svc}), "/api/v1/health")
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "connection refused") {
		t.Fatalf("expected check detail in body, got %s", resp.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	resp := get(testRouter(RouterDeps{}), "/metrics")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "tga_") {
		t.Fatalf("expected tga metrics in exposition")
	}
}

func TestRateLimitAppliesWhenConfigured(t *testing.T) {
	r := testRouter(RouterDeps{Config: config.Config{RateLimitPerMinute: 6}})

	if resp := get(r, "/api/v1/health"); resp.Code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", resp.Code)
	}
	if resp := get(r, "/api/v1/health"); resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.Code)
	}
}

func TestRateLimitRules(t *testing.T) {
	if rateLimitRules(0) != nil {
		t.Fatalf("expected limiting disabled at zero")
	}
	rules := rateLimitRules(120)
	if rules[groupSubmit].Burst != 2 || rules[groupPolling].Burst != 60 || rules[groupDefault].Burst != 20 {
		t.Fatalf("unexpected bursts: %+v", rules)
	}
	if rules[groupPolling].Rate != 8 {
		t.Fatalf("expected polling rate 8/s, got %v", rules[groupPolling].Rate)
	}
}

func TestAddr(t *testing.T) {
	cases := map[string]string{"": ":8080", "9000": ":9000", ":7000": ":7000"}
	for in, want := range cases {
		if got := Addr(in); got != want {
			t.Fatalf("Addr(%q) = %q, want %q", in, got, want)
		}
	}
}
