package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/cropmap/internal/model"
	"github.com/hitoshi/cropmap/internal/project"
)

// --- モック ---

type mockProjectService struct {
	createFn            func(ctx context.Context, creatorID string, input project.CreateInput) (*model.Project, error)
	getFn               func(ctx context.Context, id string) (*model.Project, []model.Contributor, error)
	listFn              func(ctx context.Context, filter model.ProjectFilter) ([]*model.Project, int, error)
	updateFn            func(ctx context.Context, requesterID string, requesterRole model.Role, id string, upd model.ProjectUpdate) (*model.Project, error)
	deleteFn            func(ctx context.Context, requesterID string, requesterRole model.Role, id string) error
	addContributorFn    func(ctx context.Context, projectID, userID string) error
	removeContributorFn func(ctx context.Context, projectID, userID string) error
}

func (m *mockProjectService) Create(ctx context.Context, creatorID string, input project.CreateInput) (*model.Project, error) {
	return m.createFn(ctx, creatorID, input)
}
func (m *mockProjectService) Get(ctx context.Context, id string) (*model.Project, []model.Contributor, error) {
	return m.getFn(ctx, id)
}
func (m *mockProjectService) List(ctx context.Context, filter model.ProjectFilter) ([]*model.Project, int, error) {
	return m.listFn(ctx, filter)
}
func (m *mockProjectService) Update(ctx context.Context, requesterID string, requesterRole model.Role, id string, upd model.ProjectUpdate) (*model.Project, error) {
	return m.updateFn(ctx, requesterID, requesterRole, id, upd)
}
func (m *mockProjectService) Delete(ctx context.Context, requesterID string, requesterRole model.Role, id string) error {
	return m.deleteFn(ctx, requesterID, requesterRole, id)
}
func (m *mockProjectService) AddContributor(ctx context.Context, projectID, userID string) error {
	return m.addContributorFn(ctx, projectID, userID)
}
func (m *mockProjectService) RemoveContributor(ctx context.Context, projectID, userID string) error {
	return m.removeContributorFn(ctx, projectID, userID)
}

// --- テスト ---

// TestProjectHandler_Create は作成者IDと入力フィールドの受け渡しを検証する。
func TestProjectHandler_Create(t *testing.T) {
	var gotCreatorID string
	var gotInput project.CreateInput
	h := NewProjectHandler(&mockProjectService{
		createFn: func(ctx context.Context, creatorID string, input project.CreateInput) (*model.Project, error) {
			gotCreatorID = creatorID
			gotInput = input
			return &model.Project{
				ID:        "project-1",
				Name:      input.Name,
				Status:    model.ProjectStatusActive,
				CreatedBy: creatorID,
			}, nil
		},
	})

	body := `{"name":"水田調査2026","description":"県北の作付け状況","status":"active","targetArea":30000}`
	req := authedContext(httptest.NewRequest(http.MethodPost, "/api/projects", strings.NewReader(body)), "user-1", model.RoleUser)
	rec := httptest.NewRecorder()

	h.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body: %s)", rec.Code, rec.Body.String())
	}
	if gotCreatorID != "user-1" {
		t.Errorf("creatorID = %q, want user-1", gotCreatorID)
	}
	if gotInput.Name != "水田調査2026" {
		t.Errorf("name = %q", gotInput.Name)
	}
	if gotInput.TargetArea == nil || *gotInput.TargetArea != 30000 {
		t.Errorf("targetArea = %v, want 30000", gotInput.TargetArea)
	}

	var envelope struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Data    struct {
			Project projectResponse `json:"project"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if envelope.Message != "プロジェクトを作成しました。" {
		t.Errorf("message = %q", envelope.Message)
	}
	if envelope.Data.Project.ID != "project-1" {
		t.Errorf("project.id = %q, want project-1", envelope.Data.Project.ID)
	}
}

// TestProjectHandler_List はフィルタの取り出しとデフォルトページングを検証する。
func TestProjectHandler_List(t *testing.T) {
	var gotFilter model.ProjectFilter
	h := NewProjectHandler(&mockProjectService{
		listFn: func(ctx context.Context, filter model.ProjectFilter) ([]*model.Project, int, error) {
			gotFilter = filter
			return []*model.Project{{ID: "project-1", Status: model.ProjectStatusActive}}, 1, nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/projects?status=active&search=水田", nil)
	rec := httptest.NewRecorder()

	h.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if gotFilter.Status != "active" || gotFilter.Search != "水田" {
		t.Errorf("filter = %+v", gotFilter)
	}
	if gotFilter.Page != 1 || gotFilter.Limit != 10 {
		t.Errorf("pagination = %d/%d, want 1/10", gotFilter.Page, gotFilter.Limit)
	}
}

// TestProjectHandler_Get はプロジェクト詳細と参加者一覧の同時返却を検証する。
func TestProjectHandler_Get(t *testing.T) {
	joined := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	h := NewProjectHandler(&mockProjectService{
		getFn: func(ctx context.Context, id string) (*model.Project, []model.Contributor, error) {
			return &model.Project{
					ID:     id,
					Name:   "水田調査2026",
					Status: model.ProjectStatusActive,
					Stats:  &model.ProjectStats{ContributorCount: 1, PointCount: 4},
				}, []model.Contributor{
					{UserID: "user-2", Email: "taro@example.com", FirstName: "太郎", JoinedAt: joined},
				}, nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/projects/project-1", nil)
	rec := httptest.NewRecorder()

	h.Get(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var envelope struct {
		Data struct {
			Project      projectResponse       `json:"project"`
			Contributors []contributorResponse `json:"contributors"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if envelope.Data.Project.Stats == nil || envelope.Data.Project.Stats.PointCount != 4 {
		t.Errorf("stats = %+v", envelope.Data.Project.Stats)
	}
	if len(envelope.Data.Contributors) != 1 || envelope.Data.Contributors[0].UserID != "user-2" {
		t.Errorf("contributors = %+v", envelope.Data.Contributors)
	}
}

// TestProjectHandler_AddContributor は参加者追加とuserId必須の検証を行う。
func TestProjectHandler_AddContributor(t *testing.T) {
	t.Run("成功", func(t *testing.T) {
		var gotUserID string
		h := NewProjectHandler(&mockProjectService{
			addContributorFn: func(ctx context.Context, projectID, userID string) error {
				gotUserID = userID
				return nil
			},
		})

		body := `{"userId":"user-2"}`
		req := authedContext(httptest.NewRequest(http.MethodPost, "/api/projects/project-1/contributors", strings.NewReader(body)), "user-1", model.RoleUser)
		rec := httptest.NewRecorder()

		h.AddContributor(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, want 201 (body: %s)", rec.Code, rec.Body.String())
		}
		if gotUserID != "user-2" {
			t.Errorf("userID = %q, want user-2", gotUserID)
		}
	})

	t.Run("userId未指定", func(t *testing.T) {
		h := NewProjectHandler(&mockProjectService{})

		req := authedContext(httptest.NewRequest(http.MethodPost, "/api/projects/project-1/contributors", strings.NewReader(`{}`)), "user-1", model.RoleUser)
		rec := httptest.NewRecorder()

		h.AddContributor(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

// TestProjectHandler_RemoveContributor は参加者除外の成功応答を検証する。
func TestProjectHandler_RemoveContributor(t *testing.T) {
	h := NewProjectHandler(&mockProjectService{
		removeContributorFn: func(ctx context.Context, projectID, userID string) error {
			return nil
		},
	})

	req := authedContext(httptest.NewRequest(http.MethodDelete, "/api/projects/project-1/contributors/user-2", nil), "user-1", model.RoleUser)
	rec := httptest.NewRecorder()

	h.RemoveContributor(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

// TestProjectHandler_Delete は認証主体のID・ロールの受け渡しを検証する。
func TestProjectHandler_Delete(t *testing.T) {
	var gotRequesterID string
	var gotRole model.Role
	h := NewProjectHandler(&mockProjectService{
		deleteFn: func(ctx context.Context, requesterID string, requesterRole model.Role, id string) error {
			gotRequesterID = requesterID
			gotRole = requesterRole
			return nil
		},
	})

	req := authedContext(httptest.NewRequest(http.MethodDelete, "/api/projects/project-1", nil), "admin-1", model.RoleAdmin)
	rec := httptest.NewRecorder()

	h.Delete(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if gotRequesterID != "admin-1" || gotRole != model.RoleAdmin {
		t.Errorf("requester = %q/%q", gotRequesterID, gotRole)
	}
}
