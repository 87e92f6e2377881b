package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/cropmap/internal/model"
)

// Claims はアクセストークンに埋め込むユーザー情報。
// ペイロードはid・email・roleの3つのみで、パスワードハッシュ等は含めない。
type Claims struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// TokenVerifier はアクセストークンの検証機能のインターフェース。
// 認証ミドルウェアが使用する。
type TokenVerifier interface {
	// Verify はトークン文字列を検証し、有効な場合はClaimsを返す。
	// 期限切れ・署名不正・形式不正はすべてエラーになる。
	Verify(tokenString string) (*Claims, error)
}

// TokenService はHMAC-SHA256署名のJWTアクセストークンを発行・検証する。
type TokenService struct {
	secret []byte
	expiry time.Duration
}

// NewTokenService はTokenServiceを生成する。
func NewTokenService(secret string, expiry time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), expiry: expiry}
}

// Issue はユーザーに対するアクセストークンを発行する。
func (s *TokenService) Issue(user *model.User) (string, error) {
	now := time.Now()
	claims := Claims{
		ID:    user.ID,
		Email: user.Email,
		Role:  string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// Verify はトークン文字列を検証し、有効な場合はClaimsを返す。
func (s *TokenService) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		// 署名方式の差し替え攻撃を防ぐ
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return claims, nil
}

// compile-time interface check
var _ TokenVerifier = (*TokenService)(nil)
