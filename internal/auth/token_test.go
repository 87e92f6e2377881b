package auth

import (
	"testing"
	"time"

	"github.com/hitoshi/cropmap/internal/model"
)

// TestTokenService_IssueAndVerify は発行したトークンが検証を通ることを検証する。
func TestTokenService_IssueAndVerify(t *testing.T) {
	svc := NewTokenService("test-secret", time.Hour)
	user := &model.User{
		ID:    "user-1",
		Email: "farmer@example.com",
		Role:  model.RoleAdmin,
	}

	token, err := svc.Issue(user)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	claims, err := svc.Verify(token)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}

	if claims.ID != "user-1" {
		t.Errorf("claims.ID = %q, want user-1", claims.ID)
	}
	if claims.Email != "farmer@example.com" {
		t.Errorf("claims.Email = %q, want farmer@example.com", claims.Email)
	}
	if claims.Role != "admin" {
		t.Errorf("claims.Role = %q, want admin", claims.Role)
	}
}

// TestTokenService_Verify_WrongSecret は別の秘密鍵で署名されたトークンが拒否されることを検証する。
func TestTokenService_Verify_WrongSecret(t *testing.T) {
	issuer := NewTokenService("secret-a", time.Hour)
	verifier := NewTokenService("secret-b", time.Hour)

	token, err := issuer.Issue(&model.User{ID: "user-1", Role: model.RoleUser})
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	if _, err := verifier.Verify(token); err == nil {
		t.Error("expected verification to fail with wrong secret")
	}
}

// TestTokenService_Verify_Expired は期限切れトークンが拒否されることを検証する。
func TestTokenService_Verify_Expired(t *testing.T) {
	svc := NewTokenService("test-secret", -time.Minute)

	token, err := svc.Issue(&model.User{ID: "user-1", Role: model.RoleUser})
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	if _, err := svc.Verify(token); err == nil {
		t.Error("expected verification to fail for expired token")
	}
}

// TestTokenService_Verify_Garbage はトークンでない文字列が拒否されることを検証する。
func TestTokenService_Verify_Garbage(t *testing.T) {
	svc := NewTokenService("test-secret", time.Hour)

	if _, err := svc.Verify("not-a-token"); err == nil {
		t.Error("expected verification to fail for malformed input")
	}
}
