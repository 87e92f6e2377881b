package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hitoshi/cropmap/internal/auth"
	"github.com/hitoshi/cropmap/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	// Signup は新規ユーザーを登録し、アクセストークンを発行する。
	Signup(ctx context.Context, input auth.SignupInput) (*model.User, string, error)
	// Login はメールアドレスとパスワードで認証し、アクセストークンを発行する。
	Login(ctx context.Context, email, password string) (*model.User, string, error)
	// Profile は認証済みユーザーのプロフィールを返す。
	Profile(ctx context.Context, userID string) (*model.User, error)
}

// AuthHandler は認証のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{service: service}
}

// signupRequest はユーザー登録リクエストのボディ。
type signupRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// userResponse はユーザー情報のAPIレスポンス。パスワードハッシュは含めない。
type userResponse struct {
	ID                   string     `json:"id"`
	Email                string     `json:"email"`
	FirstName            string     `json:"firstName"`
	LastName             string     `json:"lastName"`
	Role                 string     `json:"role"`
	PointsContributed    int        `json:"pointsContributed"`
	PolygonesContributed int        `json:"polygonesContributed"`
	CreatedAt            time.Time  `json:"createdAt"`
	LastLogin            *time.Time `json:"lastLogin,omitempty"`
}

// authResponse は認証成功時のレスポンス。
type authResponse struct {
	User  userResponse `json:"user"`
	Token string       `json:"token"`
}

// toUserResponse はドメインのUserをAPIレスポンス型に変換する。
func toUserResponse(user *model.User) userResponse {
	return userResponse{
		ID:                   user.ID,
		Email:                user.Email,
		FirstName:            user.FirstName,
		LastName:             user.LastName,
		Role:                 string(user.Role),
		PointsContributed:    user.PointsContributed,
		PolygonesContributed: user.PolygonesContributed,
		CreatedAt:            user.CreatedAt,
		LastLogin:            user.LastLogin,
	}
}

// Signup は新規ユーザー登録を処理する。
// POST /api/auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequestBody(w)
		return
	}

	user, token, err := h.service.Signup(r.Context(), auth.SignupInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      req.Role,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeMessageData(w, http.StatusCreated, "ユーザー登録が完了しました。", authResponse{
		User:  toUserResponse(user),
		Token: token,
	})
}

// Login はログインを処理する。
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequestBody(w)
		return
	}

	user, token, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeData(w, http.StatusOK, authResponse{
		User:  toUserResponse(user),
		Token: token,
	})
}

// Me は認証済みユーザーのプロフィールを返す。
// GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	user, err := h.service.Profile(r.Context(), identity.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeData(w, http.StatusOK, map[string]any{"user": toUserResponse(user)})
}

// Verify はトークンの有効性を確認する。認証ミドルウェアを通過した時点で
// トークンは有効なので、クレームをそのまま返す。
// GET /api/auth/verify
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	writeMessageData(w, http.StatusOK, "トークンは有効です。", map[string]any{
		"user": map[string]string{
			"id":    identity.ID,
			"email": identity.Email,
			"role":  string(identity.Role),
		},
	})
}
