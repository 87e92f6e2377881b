// Package auth はパスワード認証とアクセストークン管理を提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/cropmap/internal/model"
	"github.com/hitoshi/cropmap/internal/repository"
)

// SignupInput はユーザー登録の入力。
type SignupInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      string // 省略時は "user"
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	users      repository.UserRepository
	tokens     *TokenService
	bcryptCost int
}

// NewService はServiceを生成する。
func NewService(users repository.UserRepository, tokens *TokenService, bcryptCost int) *Service {
	return &Service{
		users:      users,
		tokens:     tokens,
		bcryptCost: bcryptCost,
	}
}

// Signup は新規ユーザーを登録し、アクセストークンを発行する。
// メールアドレスが既に登録済みの場合はDuplicateEmailエラーを返す。
func (s *Service) Signup(ctx context.Context, input SignupInput) (*model.User, string, error) {
	if input.Email == "" || input.Password == "" {
		return nil, "", model.NewBadRequestError("メールアドレスとパスワードは必須です。")
	}

	role := model.Role(input.Role)
	if input.Role == "" {
		role = model.RoleUser
	}
	if !role.IsValid() {
		return nil, "", model.NewBadRequestError(fmt.Sprintf("不正なロールです: %s", input.Role))
	}

	existing, err := s.users.FindByEmail(ctx, input.Email)
	if err != nil {
		return nil, "", fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, "", model.NewDuplicateEmailError()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.bcryptCost)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		ID:           uuid.New().String(),
		Email:        input.Email,
		PasswordHash: string(hash),
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Role:         role,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, "", fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue token: %w", err)
	}

	slog.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("role", string(user.Role)),
	)

	return user, token, nil
}

// Login は資格情報を検証し、アクセストークンを発行する。
// メールアドレス・パスワードのどちらが誤っているかは区別せず、
// 同一のエラーを返す。成功時は最終ログイン日時を更新する。
func (s *Service) Login(ctx context.Context, email, password string) (*model.User, string, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, "", fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, "", model.NewInvalidCredentialsError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", model.NewInvalidCredentialsError()
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID); err != nil {
		return nil, "", fmt.Errorf("failed to update last login: %w", err)
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue token: %w", err)
	}

	slog.Info("user logged in", slog.String("user_id", user.ID))

	return user, token, nil
}

// Profile は認証済みユーザー自身のプロフィールを返す。
func (s *Service) Profile(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewNotFoundError("ユーザー")
	}
	return user, nil
}
