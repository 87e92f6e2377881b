// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/cropmap/internal/authz"
	"github.com/hitoshi/cropmap/internal/model"
	"github.com/hitoshi/cropmap/internal/repository"
)

// Service はユーザー管理のサービス層。
// 一覧・削除の管理者限定はルーティング層のロールチェックで担保し、
// 更新の所有権とロール変更権限はここで判定する。
type Service struct {
	users      repository.UserRepository
	bcryptCost int
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(users repository.UserRepository, bcryptCost int) *Service {
	return &Service{users: users, bcryptCost: bcryptCost}
}

// List はフィルタ条件に一致するユーザー一覧と総件数を返す。
func (s *Service) List(ctx context.Context, filter model.UserFilter) ([]*model.User, int, error) {
	users, total, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	return users, total, nil
}

// Get は指定IDのユーザーを返す。
func (s *Service) Get(ctx context.Context, id string) (*model.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, model.NewNotFoundError("ユーザー")
	}
	return user, nil
}

// Update はユーザーを部分更新する。本人または管理者のみが実行できる。
//
// ロールの変更は管理者のみに許可される。非管理者がroleフィールドを指定した場合、
// エラーにはせず黙って無視する（他のフィールドの更新は行われ、成功レスポンスになる）。
// roleのみを指定した非管理者のリクエストも成功扱いで、ロールは据え置かれる。
// 認識されたフィールドが1つもないリクエストのみエラーになる。
func (s *Service) Update(ctx context.Context, requesterID string, requesterRole model.Role, id string, upd model.UserUpdate) (*model.User, error) {
	if upd.IsEmpty() {
		return nil, model.NewNoFieldsError()
	}

	existing, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if existing == nil {
		return nil, model.NewNotFoundError("ユーザー")
	}

	if !authz.CanMutate(requesterID, requesterRole, id) {
		return nil, model.NewForbiddenError("自分のアカウントのみ更新できます。")
	}

	if upd.Role != nil {
		if !authz.CanChangeRole(requesterRole) {
			upd.Role = nil
		} else if !model.Role(*upd.Role).IsValid() {
			return nil, model.NewBadRequestError(fmt.Sprintf("不正なロールです: %s", *upd.Role))
		}
	}

	// 非管理者のrole指定を落とした結果、更新対象が残らない場合は
	// 行を変更せず現在の状態を成功として返す
	if upd.IsEmpty() {
		return existing, nil
	}

	if upd.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*upd.Password), s.bcryptCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		hashed := string(hash)
		upd.Password = &hashed
	}

	user, err := s.users.Update(ctx, id, upd)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NewNotFoundError("ユーザー")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	slog.Info("user updated",
		slog.String("user_id", id),
		slog.String("requester_id", requesterID),
	)

	return user, nil
}

// Delete はユーザーを削除する。自分自身のアカウントは削除できない。
// 削除されたユーザーのポイント・ポリゴン・プロジェクト参加はCASCADE削除される。
func (s *Service) Delete(ctx context.Context, requesterID, id string) error {
	if requesterID == id {
		return model.NewSelfDeleteError()
	}

	existing, err := s.users.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if existing == nil {
		return model.NewNotFoundError("ユーザー")
	}

	err = s.users.DeleteByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.NewNotFoundError("ユーザー")
	}
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	slog.Info("user deleted",
		slog.String("user_id", id),
		slog.String("requester_id", requesterID),
	)

	return nil
}

// Stats はユーザーの投稿統計を返す。
func (s *Service) Stats(ctx context.Context, id string) (*model.UserStats, error) {
	stats, err := s.users.Stats(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user stats: %w", err)
	}
	if stats == nil {
		return nil, model.NewNotFoundError("ユーザー")
	}
	return stats, nil
}
