package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/digestman/internal/middleware"
)

// stubPinger はDB疎通確認のスタブ。
type stubPinger struct {
	err error
}

func (s *stubPinger) PingContext(ctx context.Context) error {
	return s.err
}

func newTestRouter(t *testing.T, db Pinger) http.Handler {
	t.Helper()

	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)

	return NewRouter(&RouterDeps{
		Logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       rl,
		TaskService:       &stubTaskService{},
		TaskFinder:        &stubTaskFinder{},
		DigestReader:      newStubDigestReader(),
		ValidationService: &stubValidator{},
		DB:                db,
		MetricsGatherer:   prometheus.NewRegistry(),
	})
}

func TestRouter_Healthz(t *testing.T) {
	router := newTestRouter(t, &stubPinger{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var body map[string]string
	json.NewDecoder(w.Body).Decode(&body)
	if body["status"] != "ok" {
		t.Errorf("status = %q, want ok", body["status"])
	}
}

func TestRouter_Healthz_DatabaseDown(t *testing.T) {
	router := newTestRouter(t, &stubPinger{err: errors.New("connection refused")})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}

	var body map[string]string
	json.NewDecoder(w.Body).Decode(&body)
	if body["status"] != "unhealthy" {
		t.Errorf("status = %q, want unhealthy", body["status"])
	}
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, &stubPinger{})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

// TestRouter_APIRoutes は主要なAPIルートが配線されていることを検証する。
func TestRouter_APIRoutes(t *testing.T) {
	router := newTestRouter(t, &stubPinger{})

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{"タスク開始", http.MethodPost, "/api/tasks", `{"user_id":"user-1"}`, http.StatusAccepted},
		{"タスク照会", http.MethodGet, "/api/tasks/missing", "", http.StatusNotFound},
		{"ダイジェスト一覧", http.MethodGet, "/api/digests?user_id=user-1", "", http.StatusOK},
		{"ダイジェスト詳細", http.MethodGet, "/api/digests/missing", "", http.StatusNotFound},
		{"ソース検証", http.MethodPost, "/api/sources/validate", `{"url":""}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body io.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			}
			req := httptest.NewRequest(tt.method, tt.path, body)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

// TestRouter_SecurityHeaders はミドルウェアチェーンを通過したレスポンスに
// セキュリティヘッダーが付くことを検証する。
func TestRouter_SecurityHeaders(t *testing.T) {
	router := newTestRouter(t, &stubPinger{})

	req := httptest.NewRequest(http.MethodGet, "/api/digests?user_id=user-1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}
