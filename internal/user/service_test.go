package user

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/cropmap/internal/model"
)

// --- モック ---

type mockUserRepo struct {
	findByIDFn   func(ctx context.Context, id string) (*model.User, error)
	listFn       func(ctx context.Context, filter model.UserFilter) ([]*model.User, int, error)
	updateFn     func(ctx context.Context, id string, upd model.UserUpdate) (*model.User, error)
	deleteByIDFn func(ctx context.Context, id string) error
	statsFn      func(ctx context.Context, id string) (*model.UserStats, error)
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}
func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return nil, nil
}
func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error { return nil }
func (m *mockUserRepo) List(ctx context.Context, filter model.UserFilter) ([]*model.User, int, error) {
	if m.listFn != nil {
		return m.listFn(ctx, filter)
	}
	return nil, 0, nil
}
func (m *mockUserRepo) Update(ctx context.Context, id string, upd model.UserUpdate) (*model.User, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, upd)
	}
	return nil, nil
}
func (m *mockUserRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}
func (m *mockUserRepo) UpdateLastLogin(ctx context.Context, id string) error { return nil }
func (m *mockUserRepo) Stats(ctx context.Context, id string) (*model.UserStats, error) {
	if m.statsFn != nil {
		return m.statsFn(ctx, id)
	}
	return nil, nil
}

func wantAPIError(t *testing.T, err error, code string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != code {
		t.Errorf("code = %q, want %q", apiErr.Code, code)
	}
}

func strptr(s string) *string { return &s }

// --- テスト ---

// TestService_Update_SelfProfile は本人によるプロフィール更新を検証する。
func TestService_Update_SelfProfile(t *testing.T) {
	var gotUpd model.UserUpdate
	repo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, Role: model.RoleUser}, nil
		},
		updateFn: func(ctx context.Context, id string, upd model.UserUpdate) (*model.User, error) {
			gotUpd = upd
			return &model.User{ID: id, FirstName: *upd.FirstName}, nil
		},
	}
	svc := NewService(repo, bcrypt.MinCost)

	user, err := svc.Update(context.Background(), "user-1", model.RoleUser, "user-1", model.UserUpdate{
		FirstName: strptr("花子"),
	})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if user.FirstName != "花子" {
		t.Errorf("FirstName = %q, want 花子", user.FirstName)
	}
	if gotUpd.Role != nil {
		t.Error("Role should not be set")
	}
}

// TestService_Update_Forbidden は他人のアカウント更新が拒否されることを検証する。
func TestService_Update_Forbidden(t *testing.T) {
	repo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id}, nil
		},
	}
	svc := NewService(repo, bcrypt.MinCost)

	_, err := svc.Update(context.Background(), "user-1", model.RoleUser, "user-2", model.UserUpdate{
		FirstName: strptr("花子"),
	})
	wantAPIError(t, err, model.ErrCodeForbidden)
}

// TestService_Update_RoleDroppedForNonAdmin は非管理者のロール指定が
// 黙って無視され、他のフィールドだけ更新されることを検証する。
func TestService_Update_RoleDroppedForNonAdmin(t *testing.T) {
	var gotUpd model.UserUpdate
	repo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, Role: model.RoleUser}, nil
		},
		updateFn: func(ctx context.Context, id string, upd model.UserUpdate) (*model.User, error) {
			gotUpd = upd
			return &model.User{ID: id, Role: model.RoleUser}, nil
		},
	}
	svc := NewService(repo, bcrypt.MinCost)

	user, err := svc.Update(context.Background(), "user-1", model.RoleUser, "user-1", model.UserUpdate{
		FirstName: strptr("花子"),
		Role:      strptr("admin"),
	})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if gotUpd.Role != nil {
		t.Error("role should be dropped for non-admin requester")
	}
	if user.Role != model.RoleUser {
		t.Errorf("Role = %q, want user", user.Role)
	}
}

// TestService_Update_RoleOnlyNonAdmin はロールのみを指定した非管理者の
// リクエストが行を変更せず成功扱いになることを検証する。
func TestService_Update_RoleOnlyNonAdmin(t *testing.T) {
	existing := &model.User{ID: "user-1", FirstName: "太郎", Role: model.RoleUser}
	updateCalled := false
	repo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return existing, nil
		},
		updateFn: func(ctx context.Context, id string, upd model.UserUpdate) (*model.User, error) {
			updateCalled = true
			return nil, nil
		},
	}
	svc := NewService(repo, bcrypt.MinCost)

	user, err := svc.Update(context.Background(), "user-1", model.RoleUser, "user-1", model.UserUpdate{
		Role: strptr("admin"),
	})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if updateCalled {
		t.Error("repository update should not run when role is the only field")
	}
	if user != existing {
		t.Error("expected the current user to be returned unchanged")
	}
}

// TestService_Update_AdminChangesRole は管理者によるロール変更を検証する。
func TestService_Update_AdminChangesRole(t *testing.T) {
	var gotUpd model.UserUpdate
	repo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, Role: model.RoleUser}, nil
		},
		updateFn: func(ctx context.Context, id string, upd model.UserUpdate) (*model.User, error) {
			gotUpd = upd
			return &model.User{ID: id, Role: model.RoleAdmin}, nil
		},
	}
	svc := NewService(repo, bcrypt.MinCost)

	user, err := svc.Update(context.Background(), "admin-1", model.RoleAdmin, "user-1", model.UserUpdate{
		Role: strptr("admin"),
	})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if gotUpd.Role == nil || *gotUpd.Role != "admin" {
		t.Errorf("Role = %v, want admin", gotUpd.Role)
	}
	if user.Role != model.RoleAdmin {
		t.Errorf("Role = %q, want admin", user.Role)
	}
}

// TestService_Update_InvalidRole は管理者による不正なロール指定を検証する。
func TestService_Update_InvalidRole(t *testing.T) {
	repo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id}, nil
		},
	}
	svc := NewService(repo, bcrypt.MinCost)

	_, err := svc.Update(context.Background(), "admin-1", model.RoleAdmin, "user-1", model.UserUpdate{
		Role: strptr("superuser"),
	})
	wantAPIError(t, err, model.ErrCodeBadRequest)
}

// TestService_Update_PasswordHashed はパスワードがハッシュ化されてから
// 永続化層に渡ることを検証する。
func TestService_Update_PasswordHashed(t *testing.T) {
	var gotUpd model.UserUpdate
	repo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id}, nil
		},
		updateFn: func(ctx context.Context, id string, upd model.UserUpdate) (*model.User, error) {
			gotUpd = upd
			return &model.User{ID: id}, nil
		},
	}
	svc := NewService(repo, bcrypt.MinCost)

	_, err := svc.Update(context.Background(), "user-1", model.RoleUser, "user-1", model.UserUpdate{
		Password: strptr("new-password"),
	})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if gotUpd.Password == nil || *gotUpd.Password == "new-password" {
		t.Fatal("password should be hashed before reaching the repository")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*gotUpd.Password), []byte("new-password")); err != nil {
		t.Errorf("stored hash does not match original password: %v", err)
	}
}

// TestService_Update_NoFields は更新対象フィールドなしのリクエストを検証する。
func TestService_Update_NoFields(t *testing.T) {
	svc := NewService(&mockUserRepo{}, bcrypt.MinCost)

	_, err := svc.Update(context.Background(), "user-1", model.RoleUser, "user-1", model.UserUpdate{})
	wantAPIError(t, err, model.ErrCodeNoFields)
}

// TestService_Delete は削除の権限境界を検証する。
func TestService_Delete(t *testing.T) {
	tests := []struct {
		name        string
		requesterID string
		targetID    string
		exists      bool
		wantCode    string
	}{
		{"自分自身は削除できない", "user-1", "user-1", true, model.ErrCodeSelfDelete},
		{"存在しないユーザー", "admin-1", "missing", false, model.ErrCodeNotFound},
		{"削除成功", "admin-1", "user-1", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deleted := false
			repo := &mockUserRepo{
				findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
					if !tt.exists {
						return nil, nil
					}
					return &model.User{ID: id}, nil
				},
				deleteByIDFn: func(ctx context.Context, id string) error {
					deleted = true
					return nil
				},
			}
			svc := NewService(repo, bcrypt.MinCost)

			err := svc.Delete(context.Background(), tt.requesterID, tt.targetID)
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("Delete returned error: %v", err)
				}
				if !deleted {
					t.Error("expected user to be deleted")
				}
				return
			}
			wantAPIError(t, err, tt.wantCode)
			if deleted {
				t.Error("user should not be deleted on failure")
			}
		})
	}
}

// TestService_Stats_NotFound は存在しないユーザーの統計取得を検証する。
func TestService_Stats_NotFound(t *testing.T) {
	svc := NewService(&mockUserRepo{}, bcrypt.MinCost)

	_, err := svc.Stats(context.Background(), "missing")
	wantAPIError(t, err, model.ErrCodeNotFound)
}
