package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/cropmap/internal/auth"
	"github.com/hitoshi/cropmap/internal/model"
)

// TestAuthMiddleware はBearerトークン認証の通過・拒否を検証する。
func TestAuthMiddleware(t *testing.T) {
	tokens := auth.NewTokenService("test-secret", time.Hour)
	validToken, err := tokens.Issue(&model.User{
		ID:    "user-1",
		Email: "taro@example.com",
		Role:  model.RoleUser,
	})
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{"有効なトークン", "Bearer " + validToken, http.StatusOK},
		{"ヘッダーなし", "", http.StatusUnauthorized},
		{"Bearerプレフィックスなし", validToken, http.StatusUnauthorized},
		{"トークンが空", "Bearer ", http.StatusUnauthorized},
		{"不正なトークン", "Bearer not-a-jwt", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotIdentity Identity
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotIdentity, _ = IdentityFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/api/points", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()

			NewAuthMiddleware(tokens)(next).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK {
				if gotIdentity.ID != "user-1" || gotIdentity.Role != model.RoleUser {
					t.Errorf("identity = %+v, want user-1/user", gotIdentity)
				}
			}
		})
	}
}

// TestAuthMiddleware_ExpiredToken は期限切れトークンの拒否を検証する。
func TestAuthMiddleware_ExpiredToken(t *testing.T) {
	expired := auth.NewTokenService("test-secret", -time.Hour)
	token, err := expired.Issue(&model.User{ID: "user-1", Role: model.RoleUser})
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("next handler should not run")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/points", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	NewAuthMiddleware(auth.NewTokenService("test-secret", time.Hour))(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}

	var body ErrorEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Success {
		t.Error("success = true, want false")
	}
	if body.Error.Code != model.ErrCodeUnauthorized {
		t.Errorf("error code = %q, want %q", body.Error.Code, model.ErrCodeUnauthorized)
	}
}

// TestRequireAdmin は管理者ロールの境界を検証する。
func TestRequireAdmin(t *testing.T) {
	tests := []struct {
		name       string
		identity   *Identity
		wantStatus int
	}{
		{"管理者", &Identity{ID: "admin-1", Role: model.RoleAdmin}, http.StatusOK},
		{"一般ユーザー", &Identity{ID: "user-1", Role: model.RoleUser}, http.StatusForbidden},
		{"未認証", nil, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
			if tt.identity != nil {
				req = req.WithContext(ContextWithIdentity(req.Context(), *tt.identity))
			}
			rec := httptest.NewRecorder()

			RequireAdmin(next).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

// TestIdentityFromContext_Missing はIdentityなしのコンテキストを検証する。
func TestIdentityFromContext_Missing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, err := IdentityFromContext(req.Context()); err == nil {
		t.Error("expected error for context without identity")
	}
}
