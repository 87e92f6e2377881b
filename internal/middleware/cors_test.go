package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// TestCORSMiddleware はCORSヘッダーの付与とプリフライト応答を検証する。
func TestCORSMiddleware(t *testing.T) {
	handler := NewCORSMiddleware("https://app.example.com")(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	t.Run("通常リクエスト", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/points", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
			t.Errorf("Allow-Origin = %q", got)
		}
		if got := rec.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type, Authorization" {
			t.Errorf("Allow-Headers = %q", got)
		}
	})

	t.Run("プリフライト", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/points", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Errorf("status = %d, want 204", rec.Code)
		}
	})
}
