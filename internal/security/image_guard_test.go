package security

import (
	"context"
	"strings"
	"testing"
	"time"
)

// TestValidateURL_Allowed は安全な画像URLが許可されることを検証する。
func TestValidateURL_Allowed(t *testing.T) {
	guard := NewImageURLGuard()

	urls := []string{
		"https://images.example.com/field-42.jpg",
		"http://cdn.example.org/crops/wheat.png",
		"https://8.8.8.8/photo.jpg",
	}

	for _, u := range urls {
		if err := guard.ValidateURL(u); err != nil {
			t.Errorf("ValidateURL(%q) = %v, want nil", u, err)
		}
	}
}

// TestValidateURL_Blocked は危険な画像URLが拒否されることを検証する。
func TestValidateURL_Blocked(t *testing.T) {
	guard := NewImageURLGuard()

	tests := []struct {
		name string
		url  string
		// エラーメッセージに含まれるべき部分文字列
		wantContains string
	}{
		{
			name:         "空URL",
			url:          "",
			wantContains: "empty URL",
		},
		{
			name:         "ftpスキーム",
			url:          "ftp://example.com/photo.jpg",
			wantContains: "disallowed scheme",
		},
		{
			name:         "javascriptスキーム",
			url:          "javascript:alert(1)",
			wantContains: "disallowed scheme",
		},
		{
			name:         "ホストなし",
			url:          "https:///photo.jpg",
			wantContains: "empty host",
		},
		{
			name:         "ループバックIP",
			url:          "http://127.0.0.1/photo.jpg",
			wantContains: "blocked IP",
		},
		{
			name:         "プライベートIP (RFC 1918)",
			url:          "https://192.168.1.10/cam.jpg",
			wantContains: "blocked IP",
		},
		{
			name:         "クラウドメタデータIP",
			url:          "http://169.254.169.254/latest/meta-data/",
			wantContains: "blocked IP",
		},
		{
			name:         "IPv6ループバック",
			url:          "http://[::1]/photo.jpg",
			wantContains: "blocked IP",
		},
		{
			name:         "localhostホスト名",
			url:          "http://localhost/photo.jpg",
			wantContains: "blocked host",
		},
		{
			name:         "localhost大文字",
			url:          "http://LOCALHOST/photo.jpg",
			wantContains: "blocked host",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := guard.ValidateURL(tt.url)
			if err == nil {
				t.Fatalf("ValidateURL(%q) = nil, want error", tt.url)
			}
			if !strings.Contains(err.Error(), tt.wantContains) {
				t.Errorf("error = %q, want contains %q", err.Error(), tt.wantContains)
			}
		})
	}
}

// TestVerifyImage_BlockedTargets はSSRF防止付きクライアントが危険な接続先を
// 拒否することを検証する。検証はDialerのControlフックで接続前に行われるため、
// 外部ネットワークへの到達を必要としない。
func TestVerifyImage_BlockedTargets(t *testing.T) {
	guard := NewImageURLGuard()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	tests := []struct {
		name string
		url  string
	}{
		{"ループバックIP", "http://127.0.0.1/photo.jpg"},
		{"クラウドメタデータIP", "http://169.254.169.254/latest/meta-data/"},
		{"許可されないスキーム", "ftp://example.com/photo.jpg"},
		{"許可されないポート", "http://203.0.113.1:8080/photo.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := guard.VerifyImage(ctx, tt.url); err == nil {
				t.Errorf("VerifyImage(%q) = nil, want error", tt.url)
			}
		})
	}
}

// TestVerifyImage_InvalidURL は不正なURLが拒否されることを検証する。
func TestVerifyImage_InvalidURL(t *testing.T) {
	guard := NewImageURLGuard()

	if err := guard.VerifyImage(context.Background(), "://broken"); err == nil {
		t.Error("VerifyImage with malformed URL should fail")
	}
}
