package app

import (
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// TestRunHealthcheck はヘルスチェックサブコマンドの成否を検証する。
func TestRunHealthcheck(t *testing.T) {
	t.Run("200で成功", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/health" {
				t.Errorf("path = %q, want /health", r.URL.Path)
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer ts.Close()

		_, port, err := net.SplitHostPort(ts.Listener.Addr().String())
		if err != nil {
			t.Fatalf("failed to split addr: %v", err)
		}

		if err := runHealthcheck(port); err != nil {
			t.Errorf("runHealthcheck returned error: %v", err)
		}
	})

	t.Run("非200で失敗", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer ts.Close()

		_, port, err := net.SplitHostPort(ts.Listener.Addr().String())
		if err != nil {
			t.Fatalf("failed to split addr: %v", err)
		}

		if err := runHealthcheck(port); err == nil {
			t.Error("expected error for unhealthy server")
		}
	})

	t.Run("接続不可で失敗", func(t *testing.T) {
		if err := runHealthcheck("1"); err == nil {
			t.Error("expected error for unreachable server")
		}
	})
}

// TestMaskDatabaseURL は接続URLの認証情報マスキングを検証する。
func TestMaskDatabaseURL(t *testing.T) {
	masked := maskDatabaseURL("postgres://user:password@db:5432/cropmap")
	if strings.Contains(masked, "password") {
		t.Errorf("masked URL still contains password: %q", masked)
	}

	if got := maskDatabaseURL("short"); got != "***" {
		t.Errorf("maskDatabaseURL(short) = %q, want ***", got)
	}
}
