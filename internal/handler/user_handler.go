package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/cropmap/internal/model"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	List(ctx context.Context, filter model.UserFilter) ([]*model.User, int, error)
	Get(ctx context.Context, id string) (*model.User, error)
	Update(ctx context.Context, requesterID string, requesterRole model.Role, id string, upd model.UserUpdate) (*model.User, error)
	Delete(ctx context.Context, requesterID, id string) error
	Stats(ctx context.Context, id string) (*model.UserStats, error)
}

// UserHandler はユーザー管理のHTTPハンドラー。
// 一覧取得と削除はルーティング層で管理者ロールに制限される。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{service: service}
}

// updateUserRequest はユーザー部分更新リクエストのボディ。
// roleは管理者のみ反映される。
type updateUserRequest struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Email     *string `json:"email"`
	Role      *string `json:"role"`
	Password  *string `json:"password"`
}

// userStatsResponse はユーザーの投稿統計のAPIレスポンス。
type userStatsResponse struct {
	UserID               string `json:"userId"`
	Email                string `json:"email"`
	FirstName            string `json:"firstName"`
	LastName             string `json:"lastName"`
	PointsContributed    int    `json:"pointsContributed"`
	PolygonesContributed int    `json:"polygonesContributed"`
	ProjectsCount        int    `json:"projectsCount"`
}

// List はユーザー一覧を返す。管理者専用。
// GET /api/users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	page, limit := parsePagination(r, 10)
	filter := model.UserFilter{
		Role:   r.URL.Query().Get("role"),
		Search: r.URL.Query().Get("search"),
		Page:   page,
		Limit:  limit,
	}

	users, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]userResponse, len(users))
	for i, u := range users {
		results[i] = toUserResponse(u)
	}

	writeData(w, http.StatusOK, map[string]any{
		"users":      results,
		"pagination": newPagination(total, page, limit),
	})
}

// Get はユーザー詳細を返す。
// GET /api/users/:id
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeData(w, http.StatusOK, map[string]any{"user": toUserResponse(user)})
}

// Update はユーザーの部分更新を処理する。本人または管理者のみ。
// PUT /api/users/:id
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequestBody(w)
		return
	}

	updated, err := h.service.Update(r.Context(), identity.ID, identity.Role, chi.URLParam(r, "id"), model.UserUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Role:      req.Role,
		Password:  req.Password,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeMessageData(w, http.StatusOK, "ユーザー情報を更新しました。", map[string]any{
		"user": toUserResponse(updated),
	})
}

// Delete はユーザー削除を処理する。管理者専用で、自分自身は削除できない。
// DELETE /api/users/:id
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), identity.ID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	writeMessage(w, http.StatusOK, "ユーザーを削除しました。")
}

// Stats はユーザーの投稿統計を返す。
// GET /api/users/:id/stats
func (h *UserHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeData(w, http.StatusOK, map[string]any{
		"stats": userStatsResponse{
			UserID:               stats.UserID,
			Email:                stats.Email,
			FirstName:            stats.FirstName,
			LastName:             stats.LastName,
			PointsContributed:    stats.PointsContributed,
			PolygonesContributed: stats.PolygonesContributed,
			ProjectsCount:        stats.ProjectsCount,
		},
	})
}
