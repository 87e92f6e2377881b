package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/cropmap/internal/metrics"
	"github.com/hitoshi/cropmap/internal/model"
	"github.com/hitoshi/cropmap/internal/polygon"
)

// PolygonServiceInterface はポリゴンハンドラーが必要とするサービスインターフェース。
type PolygonServiceInterface interface {
	Create(ctx context.Context, userID string, input polygon.CreateInput) (*model.Polygon, error)
	Get(ctx context.Context, id string) (*model.Polygon, error)
	List(ctx context.Context, filter model.PolygonFilter) ([]*model.Polygon, int, error)
	ListWithinBounds(ctx context.Context, bounds model.Bounds) ([]*model.Polygon, error)
	Update(ctx context.Context, requesterID string, requesterRole model.Role, id string, upd model.PolygonUpdate) (*model.Polygon, error)
	Delete(ctx context.Context, requesterID string, requesterRole model.Role, id string) error
}

// PolygonHandler は観測ポリゴンのHTTPハンドラー。
type PolygonHandler struct {
	service   PolygonServiceInterface
	collector metrics.MetricsCollector
}

// NewPolygonHandler はPolygonHandlerを生成する。collectorはnilでもよい。
func NewPolygonHandler(service PolygonServiceInterface, collector metrics.MetricsCollector) *PolygonHandler {
	return &PolygonHandler{service: service, collector: collector}
}

// coordinatePair は [lat, lng] 形式で送られる頂点。
type coordinatePair struct {
	Lat float64
	Lng float64
}

// UnmarshalJSON は2要素の数値配列のみを受け付ける。
func (p *coordinatePair) UnmarshalJSON(data []byte) error {
	var pair []float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("coordinate pair must be [lat, lng], got %d elements", len(pair))
	}
	p.Lat = pair[0]
	p.Lng = pair[1]
	return nil
}

// createPolygonRequest はポリゴン作成リクエストのボディ。
// 頂点は [lat, lng] ペアの配列としてcoordinatesキーで受け取る。
// 面積・周長はクライアントが地図上で計測した値をそのまま受け取る。
type createPolygonRequest struct {
	Coordinates []coordinatePair `json:"coordinates"`
	CropType    string           `json:"cropType"`
	Area        float64          `json:"area"`
	Perimeter   float64          `json:"perimeter"`
	Notes       string           `json:"notes"`
	ProjectID   *string          `json:"projectId"`
	Images      []string         `json:"images"`
}

// updatePolygonRequest はポリゴン部分更新リクエストのボディ。
// 頂点・面積・周長は作成後に変更できない。
type updatePolygonRequest struct {
	CropType *string   `json:"cropType"`
	Notes    *string   `json:"notes"`
	Images   *[]string `json:"images"`
}

// polygonResponse はポリゴンのAPIレスポンス。
// GeometryはPostGISが返すGeoJSONをそのまま転送する。
type polygonResponse struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	CropType  string          `json:"cropType"`
	Area      float64         `json:"area"`
	Perimeter float64         `json:"perimeter"`
	Notes     string          `json:"notes"`
	ProjectID *string         `json:"projectId"`
	Images    []string        `json:"images"`
	Geometry  json.RawMessage `json:"geometry"`
	CreatedAt time.Time       `json:"createdAt"`
	Owner     *ownerResponse  `json:"user,omitempty"`
}

// toPolygonResponse はドメインのPolygonをAPIレスポンス型に変換する。
func toPolygonResponse(p *model.Polygon) polygonResponse {
	resp := polygonResponse{
		ID:        p.ID,
		UserID:    p.UserID,
		CropType:  p.CropType,
		Area:      p.Area,
		Perimeter: p.Perimeter,
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

func toPolygonResponses(polygons []*model.Polygon) []polygonResponse {
	results := make([]polygonResponse, len(polygons))
	for i, p := range polygons {
		results[i] = toPolygonResponse(p)
	}
	return results
}

// Create はポリゴン作成を処理する。
// POST /api/polygons
func (h *PolygonHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req createPolygonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequestBody(w)
		return
	}

	vertices := make([]model.LatLng, len(req.Coordinates))
	for i, c := range req.Coordinates {
		vertices[i] = model.LatLng{Lat: c.Lat, Lng: c.Lng}
	}

	created, err := h.service.Create(r.Context(), identity.ID, polygon.CreateInput{
		Vertices:  vertices,
		CropType:  req.CropType,
		Area:      req.Area,
		Perimeter: req.Perimeter,
		Notes:     req.Notes,
		ProjectID: req.ProjectID,
		Images:    req.Images,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if h.collector != nil {
		h.collector.RecordObservationCreated("polygon")
	}
	writeMessageData(w, http.StatusCreated, "ポリゴンを作成しました。", map[string]any{
		"polygon": toPolygonResponse(created),
	})
}

// List はポリゴン一覧を返す。
// GET /api/polygons
func (h *PolygonHandler) List(w http.ResponseWriter, r *http.Request) {
	page, limit := parsePagination(r, 50)
	filter := model.PolygonFilter{
		CropType:  r.URL.Query().Get("cropType"),
		ProjectID: r.URL.Query().Get("projectId"),
		UserID:    r.URL.Query().Get("userId"),
		Page:      page,
		Limit:     limit,
	}
	if v, err := strconv.ParseFloat(r.URL.Query().Get("minArea"), 64); err == nil {
		filter.MinArea = &v
	}
	if v, err := strconv.ParseFloat(r.URL.Query().Get("maxArea"), 64); err == nil {
		filter.MaxArea = &v
	}

	polygons, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeData(w, http.StatusOK, map[string]any{
		"polygons":   toPolygonResponses(polygons),
		"pagination": newPagination(total, page, limit),
	})
}

// WithinBounds は矩形範囲と交差するポリゴン一覧を返す。
// POST /api/polygons/within-bounds
func (h *PolygonHandler) WithinBounds(w http.ResponseWriter, r *http.Request) {
	var req boundsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequestBody(w)
		return
	}

	start := time.Now()
	polygons, err := h.service.ListWithinBounds(r.Context(), req.toBounds())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if h.collector != nil {
		h.collector.RecordSpatialQuery("polygon", time.Since(start))
	}

	writeData(w, http.StatusOK, map[string]any{
		"polygons": toPolygonResponses(polygons),
	})
}

// Get はポリゴン詳細を返す。
// GET /api/polygons/:id
func (h *PolygonHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeData(w, http.StatusOK, map[string]any{"polygon": toPolygonResponse(p)})
}

// Update はポリゴンの部分更新を処理する。
// PUT /api/polygons/:id
func (h *PolygonHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req updatePolygonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequestBody(w)
		return
	}

	updated, err := h.service.Update(r.Context(), identity.ID, identity.Role, chi.URLParam(r, "id"), model.PolygonUpdate{
		CropType: req.CropType,
		Notes:    req.Notes,
		Images:   req.Images,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeMessageData(w, http.StatusOK, "ポリゴンを更新しました。", map[string]any{
		"polygon": toPolygonResponse(updated),
	})
}

// Delete はポリゴン削除を処理する。
// DELETE /api/polygons/:id
func (h *PolygonHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), identity.ID, identity.Role, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	if h.collector != nil {
		h.collector.RecordObservationDeleted("polygon")
	}
	writeMessage(w, http.StatusOK, "ポリゴンを削除しました。")
}
