package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/cropmap/internal/model"
	"github.com/hitoshi/cropmap/internal/project"
)

// ProjectServiceInterface はプロジェクトハンドラーが必要とするサービスインターフェース。
type ProjectServiceInterface interface {
	Create(ctx context.Context, creatorID string, input project.CreateInput) (*model.Project, error)
	Get(ctx context.Context, id string) (*model.Project, []model.Contributor, error)
	List(ctx context.Context, filter model.ProjectFilter) ([]*model.Project, int, error)
	Update(ctx context.Context, requesterID string, requesterRole model.Role, id string, upd model.ProjectUpdate) (*model.Project, error)
	Delete(ctx context.Context, requesterID string, requesterRole model.Role, id string) error
	AddContributor(ctx context.Context, projectID, userID string) error
	RemoveContributor(ctx context.Context, projectID, userID string) error
}

// ProjectHandler は収集プロジェクトのHTTPハンドラー。
type ProjectHandler struct {
	service ProjectServiceInterface
}

// NewProjectHandler はProjectHandlerを生成する。
func NewProjectHandler(service ProjectServiceInterface) *ProjectHandler {
	return &ProjectHandler{service: service}
}

// createProjectRequest はプロジェクト作成リクエストのボディ。
type createProjectRequest struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	StartDate   *time.Time `json:"startDate"`
	EndDate     *time.Time `json:"endDate"`
	TargetArea  *float64   `json:"targetArea"`
	Status      string     `json:"status"`
}

// updateProjectRequest はプロジェクト部分更新リクエストのボディ。
type updateProjectRequest struct {
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	StartDate   *time.Time `json:"startDate"`
	EndDate     *time.Time `json:"endDate"`
	TargetArea  *float64   `json:"targetArea"`
	Status      *string    `json:"status"`
}

// addContributorRequest は参加者追加リクエストのボディ。
type addContributorRequest struct {
	UserID string `json:"userId"`
}

// projectStatsResponse はプロジェクトの導出集計値。
type projectStatsResponse struct {
	ContributorCount int `json:"contributorCount"`
	PolygonCount     int `json:"polygonCount"`
	PointCount       int `json:"pointCount"`
}

// contributorResponse はプロジェクト参加者のAPIレスポンス。
type contributorResponse struct {
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	JoinedAt  time.Time `json:"joinedAt"`
}

// projectResponse はプロジェクトのAPIレスポンス。
type projectResponse struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	Description string                `json:"description"`
	StartDate   *time.Time            `json:"startDate"`
	EndDate     *time.Time            `json:"endDate"`
	TargetArea  *float64              `json:"targetArea"`
	Status      string                `json:"status"`
	CreatedBy   string                `json:"createdBy"`
	CreatedAt   time.Time             `json:"createdAt"`
	Creator     *ownerResponse        `json:"creator,omitempty"`
	Stats       *projectStatsResponse `json:"stats,omitempty"`
}

// toProjectResponse はドメインのProjectをAPIレスポンス型に変換する。
func toProjectResponse(p *model.Project) projectResponse {
	resp := projectResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		StartDate:   p.StartDate,
		EndDate:     p.EndDate,
		TargetArea:  p.TargetArea,
		Status:      string(p.Status),
		CreatedBy:   p.CreatedBy,
		CreatedAt:   p.CreatedAt,
	}
	if p.Creator != nil {
		resp.Creator = &ownerResponse{
			FirstName: p.Creator.FirstName,
			LastName:  p.Creator.LastName,
			Email:     p.Creator.Email,
		}
	}
	if p.Stats != nil {
		resp.Stats = &projectStatsResponse{
			ContributorCount: p.Stats.ContributorCount,
			PolygonCount:     p.Stats.PolygonCount,
			PointCount:       p.Stats.PointCount,
		}
	}
	return resp
}

func toContributorResponses(contributors []model.Contributor) []contributorResponse {
	results := make([]contributorResponse, len(contributors))
	for i, c := range contributors {
		results[i] = contributorResponse{
			UserID:    c.UserID,
			Email:     c.Email,
			FirstName: c.FirstName,
			LastName:  c.LastName,
			JoinedAt:  c.JoinedAt,
		}
	}
	return results
}

// Create はプロジェクト作成を処理する。
// POST /api/projects
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req createProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequestBody(w)
		return
	}

	created, err := h.service.Create(r.Context(), identity.ID, project.CreateInput{
		Name:        req.Name,
		Description: req.Description,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		TargetArea:  req.TargetArea,
		Status:      req.Status,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeMessageData(w, http.StatusCreated, "プロジェクトを作成しました。", map[string]any{
		"project": toProjectResponse(created),
	})
}

// List はプロジェクト一覧（導出集計値付き）を返す。
// GET /api/projects
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	page, limit := parsePagination(r, 10)
	filter := model.ProjectFilter{
		Status: r.URL.Query().Get("status"),
		Search: r.URL.Query().Get("search"),
		Page:   page,
		Limit:  limit,
	}

	projects, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]projectResponse, len(projects))
	for i, p := range projects {
		results[i] = toProjectResponse(p)
	}

	writeData(w, http.StatusOK, map[string]any{
		"projects":   results,
		"pagination": newPagination(total, page, limit),
	})
}

// Get はプロジェクト詳細を参加者一覧付きで返す。
// GET /api/projects/:id
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, contributors, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeData(w, http.StatusOK, map[string]any{
		"project":      toProjectResponse(p),
		"contributors": toContributorResponses(contributors),
	})
}

// Update はプロジェクトの部分更新を処理する。
// PUT /api/projects/:id
func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req updateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequestBody(w)
		return
	}

	updated, err := h.service.Update(r.Context(), identity.ID, identity.Role, chi.URLParam(r, "id"), model.ProjectUpdate{
		Name:        req.Name,
		Description: req.Description,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		TargetArea:  req.TargetArea,
		Status:      req.Status,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeMessageData(w, http.StatusOK, "プロジェクトを更新しました。", map[string]any{
		"project": toProjectResponse(updated),
	})
}

// Delete はプロジェクト削除を処理する。
// DELETE /api/projects/:id
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), identity.ID, identity.Role, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	writeMessage(w, http.StatusOK, "プロジェクトを削除しました。")
}

// AddContributor はプロジェクトへの参加者追加を処理する。
// POST /api/projects/:id/contributors
func (h *ProjectHandler) AddContributor(w http.ResponseWriter, r *http.Request) {
	var req addContributorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequestBody(w)
		return
	}
	if req.UserID == "" {
		handleServiceError(w, model.NewBadRequestError("userIdは必須です。"))
		return
	}

	if err := h.service.AddContributor(r.Context(), chi.URLParam(r, "id"), req.UserID); err != nil {
		handleServiceError(w, err)
		return
	}

	writeMessage(w, http.StatusCreated, "参加者を追加しました。")
}

// RemoveContributor はプロジェクトからの参加者除外を処理する。
// DELETE /api/projects/:id/contributors/:userId
func (h *ProjectHandler) RemoveContributor(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RemoveContributor(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "userId")); err != nil {
		handleServiceError(w, err)
		return
	}

	writeMessage(w, http.StatusOK, "参加者を外しました。")
}
