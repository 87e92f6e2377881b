package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/cropmap/internal/model"
)

// モックサービスは router_test.go の mockUserService を共用する。

// TestUserHandler_List はロール・検索フィルタの取り出しを検証する。
func TestUserHandler_List(t *testing.T) {
	var gotFilter model.UserFilter
	h := NewUserHandler(&mockUserService{
		listFn: func(ctx context.Context, filter model.UserFilter) ([]*model.User, int, error) {
			gotFilter = filter
			return []*model.User{{ID: "user-1", Email: "taro@example.com", Role: model.RoleUser}}, 1, nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/users?role=admin&search=taro", nil)
	rec := httptest.NewRecorder()

	h.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if gotFilter.Role != "admin" || gotFilter.Search != "taro" {
		t.Errorf("filter = %+v", gotFilter)
	}
	if gotFilter.Page != 1 || gotFilter.Limit != 10 {
		t.Errorf("pagination = %d/%d, want 1/10", gotFilter.Page, gotFilter.Limit)
	}
}

// TestUserHandler_Update は認証主体のID・ロールが認可判定のため
// サービスに渡ることを検証する。
func TestUserHandler_Update(t *testing.T) {
	var gotRequesterID string
	var gotRole model.Role
	var gotUpd model.UserUpdate
	h := NewUserHandler(&mockUserService{
		updateFn: func(ctx context.Context, requesterID string, requesterRole model.Role, id string, upd model.UserUpdate) (*model.User, error) {
			gotRequesterID = requesterID
			gotRole = requesterRole
			gotUpd = upd
			return &model.User{ID: id, FirstName: *upd.FirstName, Role: model.RoleUser}, nil
		},
	})

	body := `{"firstName":"次郎"}`
	req := authedContext(httptest.NewRequest(http.MethodPut, "/api/users/user-1", strings.NewReader(body)), "user-1", model.RoleUser)
	rec := httptest.NewRecorder()

	h.Update(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", rec.Code, rec.Body.String())
	}
	if gotRequesterID != "user-1" || gotRole != model.RoleUser {
		t.Errorf("requester = %q/%q", gotRequesterID, gotRole)
	}
	if gotUpd.FirstName == nil || *gotUpd.FirstName != "次郎" {
		t.Errorf("firstName = %v", gotUpd.FirstName)
	}
	if gotUpd.Email != nil || gotUpd.Role != nil {
		t.Errorf("unexpected fields set: %+v", gotUpd)
	}
}

// TestUserHandler_Delete は認証主体のIDと対象が揃って渡ることを検証する。
// 自己削除の拒否などの判定はサービス側の責務。
func TestUserHandler_Delete(t *testing.T) {
	var gotRequesterID string
	h := NewUserHandler(&mockUserService{
		deleteFn: func(ctx context.Context, requesterID, id string) error {
			gotRequesterID = requesterID
			return nil
		},
	})

	req := authedContext(httptest.NewRequest(http.MethodDelete, "/api/users/user-2", nil), "admin-1", model.RoleAdmin)
	rec := httptest.NewRecorder()

	h.Delete(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if gotRequesterID != "admin-1" {
		t.Errorf("requesterID = %q, want admin-1", gotRequesterID)
	}
}

// TestUserHandler_Stats は投稿統計レスポンスの整形を検証する。
func TestUserHandler_Stats(t *testing.T) {
	h := NewUserHandler(&mockUserService{
		statsFn: func(ctx context.Context, id string) (*model.UserStats, error) {
			return &model.UserStats{
				UserID:               id,
				Email:                "taro@example.com",
				PointsContributed:    7,
				PolygonesContributed: 3,
				ProjectsCount:        2,
			}, nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/users/user-1/stats", nil)
	rec := httptest.NewRecorder()

	h.Stats(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var envelope struct {
		Data struct {
			Stats userStatsResponse `json:"stats"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if envelope.Data.Stats.PointsContributed != 7 || envelope.Data.Stats.PolygonesContributed != 3 {
		t.Errorf("stats = %+v", envelope.Data.Stats)
	}
}
