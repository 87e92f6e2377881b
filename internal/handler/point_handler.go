package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/cropmap/internal/metrics"
	"github.com/hitoshi/cropmap/internal/model"
	"github.com/hitoshi/cropmap/internal/point"
)

// PointServiceInterface はポイントハンドラーが必要とするサービスインターフェース。
type PointServiceInterface interface {
	Create(ctx context.Context, userID string, input point.CreateInput) (*model.Point, error)
	Get(ctx context.Context, id string) (*model.Point, error)
	List(ctx context.Context, filter model.PointFilter) ([]*model.Point, int, error)
	ListWithinBounds(ctx context.Context, bounds model.Bounds) ([]*model.Point, error)
	Update(ctx context.Context, requesterID string, requesterRole model.Role, id string, upd model.PointUpdate) (*model.Point, error)
	Delete(ctx context.Context, requesterID string, requesterRole model.Role, id string) error
}

// PointHandler は観測ポイントのHTTPハンドラー。
type PointHandler struct {
	service   PointServiceInterface
	collector metrics.MetricsCollector
}

// NewPointHandler はPointHandlerを生成する。collectorはnilでもよい。
func NewPointHandler(service PointServiceInterface, collector metrics.MetricsCollector) *PointHandler {
	return &PointHandler{service: service, collector: collector}
}

// createPointRequest はポイント作成リクエストのボディ。
type createPointRequest struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	CropType  string   `json:"cropType"`
	Notes     string   `json:"notes"`
	ProjectID *string  `json:"projectId"`
	Images    []string `json:"images"`
}

// updatePointRequest はポイント部分更新リクエストのボディ。
type updatePointRequest struct {
	CropType *string   `json:"cropType"`
	Notes    *string   `json:"notes"`
	Images   *[]string `json:"images"`
}

// boundsRequest は矩形範囲検索リクエストのボディ。
type boundsRequest struct {
	NorthEast latLngRequest `json:"northEast"`
	SouthWest latLngRequest `json:"southWest"`
}

// latLngRequest は緯度経度の組。
type latLngRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (b boundsRequest) toBounds() model.Bounds {
	return model.Bounds{
		NorthEast: model.LatLng{Lat: b.NorthEast.Lat, Lng: b.NorthEast.Lng},
		SouthWest: model.LatLng{Lat: b.SouthWest.Lat, Lng: b.SouthWest.Lng},
	}
}

// ownerResponse はリソースに付随する所有者の公開情報。
// レスポンスではuserキーで埋め込まれる。
type ownerResponse struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

// pointResponse はポイントのAPIレスポンス。
// GeometryはPostGISが返すGeoJSONをそのまま転送する。
type pointResponse struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	CropType  string          `json:"cropType"`
	Notes     string          `json:"notes"`
	ProjectID *string         `json:"projectId"`
	Images    []string        `json:"images"`
	Geometry  json.RawMessage `json:"geometry"`
	CreatedAt time.Time       `json:"createdAt"`
	Owner     *ownerResponse  `json:"user,omitempty"`
}

// toPointResponse はドメインのPointをAPIレスポンス型に変換する。
func toPointResponse(p *model.Point) pointResponse {
	resp := pointResponse{
		ID:        p.ID,
		UserID:    p.UserID,
		CropType:  p.CropType,
		Notes:     p.Notes,
		ProjectID: p.ProjectID,
		Images:    p.Images,
		Geometry:  p.Geometry,
		CreatedAt: p.CreatedAt,
	}
	if p.User != nil {
		resp.Owner = &ownerResponse{
			FirstName: p.User.FirstName,
			LastName:  p.User.LastName,
			Email:     p.User.Email,
		}
	}
	return resp
}

func toPointResponses(points []*model.Point) []pointResponse {
	results := make([]pointResponse, len(points))
	for i, p := range points {
		results[i] = toPointResponse(p)
	}
	return results
}

// parsePagination はクエリパラメータからページとリミットを取り出す。
// 不正・未指定の値はデフォルトにフォールバックする。
func parsePagination(r *http.Request, defaultLimit int) (page, limit int) {
	page = 1
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 0 {
		page = v
	}
	limit = defaultLimit
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}
	return page, limit
}

// Create はポイント作成を処理する。
// POST /api/points
func (h *PointHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req createPointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequestBody(w)
		return
	}

	created, err := h.service.Create(r.Context(), identity.ID, point.CreateInput{
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		CropType:  req.CropType,
		Notes:     req.Notes,
		ProjectID: req.ProjectID,
		Images:    req.Images,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if h.collector != nil {
		h.collector.RecordObservationCreated("point")
	}
	writeMessageData(w, http.StatusCreated, "ポイントを作成しました。", map[string]any{
		"point": toPointResponse(created),
	})
}

// List はポイント一覧を返す。
// GET /api/points
func (h *PointHandler) List(w http.ResponseWriter, r *http.Request) {
	page, limit := parsePagination(r, 50)
	filter := model.PointFilter{
		CropType:  r.URL.Query().Get("cropType"),
		ProjectID: r.URL.Query().Get("projectId"),
		UserID:    r.URL.Query().Get("userId"),
		Page:      page,
		Limit:     limit,
	}

	points, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeData(w, http.StatusOK, map[string]any{
		"points":     toPointResponses(points),
		"pagination": newPagination(total, page, limit),
	})
}

// WithinBounds は矩形範囲内のポイント一覧を返す。
// POST /api/points/within-bounds
func (h *PointHandler) WithinBounds(w http.ResponseWriter, r *http.Request) {
	var req boundsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequestBody(w)
		return
	}

	start := time.Now()
	points, err := h.service.ListWithinBounds(r.Context(), req.toBounds())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if h.collector != nil {
		h.collector.RecordSpatialQuery("point", time.Since(start))
	}

	writeData(w, http.StatusOK, map[string]any{
		"points": toPointResponses(points),
	})
}

// Get はポイント詳細を返す。
// GET /api/points/:id
func (h *PointHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeData(w, http.StatusOK, map[string]any{"point": toPointResponse(p)})
}

// Update はポイントの部分更新を処理する。
// PUT /api/points/:id
func (h *PointHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req updatePointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequestBody(w)
		return
	}

	updated, err := h.service.Update(r.Context(), identity.ID, identity.Role, chi.URLParam(r, "id"), model.PointUpdate{
		CropType: req.CropType,
		Notes:    req.Notes,
		Images:   req.Images,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeMessageData(w, http.StatusOK, "ポイントを更新しました。", map[string]any{
		"point": toPointResponse(updated),
	})
}

// Delete はポイント削除を処理する。
// DELETE /api/points/:id
func (h *PointHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), identity.ID, identity.Role, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	if h.collector != nil {
		h.collector.RecordObservationDeleted("point")
	}
	writeMessage(w, http.StatusOK, "ポイントを削除しました。")
}
