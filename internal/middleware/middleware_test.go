package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/paiban/campsched/internal/metrics"
	"github.com/paiban/campsched/pkg/errors"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(GetRequestID(r.Context())))
	})
}

func TestRequestID(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"沿用请求头", "req-123"},
		{"自动生成", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			if tt.header != "" {
				req.Header.Set("X-Request-ID", tt.header)
			}
			rec := httptest.NewRecorder()
			RequestID(okHandler()).ServeHTTP(rec, req)

			got := rec.Header().Get("X-Request-ID")
			if got == "" || rec.Body.String() != got {
				t.Errorf("request id header %q, body %q", got, rec.Body.String())
			}
			if tt.header != "" && got != tt.header {
				t.Errorf("X-Request-ID = %q, want %q", got, tt.header)
			}
		})
	}
}

func TestRecovery(t *testing.T) {
	panicky := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	rec := httptest.NewRecorder()
	Recovery(panicky).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "INTERNAL_ERROR") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestLogging_RecordsMetrics(t *testing.T) {
	reg := metrics.NewRegistry()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/schedule/runs/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	h := Chain(mux, RequestID, Logging(reg))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/schedule/runs/abc", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}

	scrape := httptest.NewRecorder()
	reg.Handler().ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := scrape.Body.String()
	if !strings.Contains(body, `path="/api/v1/schedule/runs/{id}"`) {
		t.Errorf("metrics should use the route pattern:\n%s", body)
	}
	if !strings.Contains(body, `status="404"`) {
		t.Errorf("metrics should record status 404")
	}
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name    string
		origins []string
		origin  string
		want    string
	}{
		{"允许所有", []string{"*"}, "http://a.example", "*"},
		{"白名单命中", []string{"http://a.example"}, "http://a.example", "http://a.example"},
		{"白名单未命中", []string{"http://a.example"}, "http://b.example", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()
			CORS(tt.origins)(okHandler()).ServeHTTP(rec, req)
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.want)
			}
		})
	}

	rec := httptest.NewRecorder()
	CORS([]string{"*"})(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", rec.Code)
	}
}

func TestRateLimiter(t *testing.T) {
	clock := time.Date(2026, 7, 6, 9, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2)
	rl.now = func() time.Time { return clock }
	rl.lastRefill = clock

	allowed := 0
	for i := 0; i < 5; i++ {
		if rl.Allow() {
			allowed++
		}
	}
	if allowed != 2 {
		t.Errorf("allowed = %d, want 2", allowed)
	}

	clock = clock.Add(time.Second)
	if !rl.Allow() {
		t.Error("tokens should refill after one second")
	}

	h := RateLimit(rl)(okHandler())
	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = httptest.NewRecorder()
		h.ServeHTTP(last, httptest.NewRequest(http.MethodGet, "/", nil))
	}
	if last.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", last.Code)
	}
	// 响应体使用统一错误码
	if !strings.Contains(last.Body.String(), string(errors.CodeRateLimited)) {
		t.Errorf("body = %s, want code %s", last.Body.String(), errors.CodeRateLimited)
	}
}

func TestChain_Order(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	Chain(okHandler(), mark("a"), mark("b")).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if strings.Join(order, ",") != "a,b" {
		t.Errorf("order = %v", order)
	}
}
