// Package polygon は観測ポリゴンのドメインロジックを提供する。
package polygon

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/hitoshi/cropmap/internal/authz"
	"github.com/hitoshi/cropmap/internal/geometry"
	"github.com/hitoshi/cropmap/internal/model"
	"github.com/hitoshi/cropmap/internal/repository"
	"github.com/hitoshi/cropmap/internal/security"
)

// CreateInput はポリゴン作成の入力。
// Verticesは緯度が先の頂点列。リングが閉じていない場合は自動的に閉じられる。
// 面積・周長はクライアント計測値をそのまま保存する。
type CreateInput struct {
	Vertices  []model.LatLng
	CropType  string
	Area      float64
	Perimeter float64
	Notes     string
	ProjectID *string
	Images    []string
}

// Service は観測ポリゴンのサービス層。
type Service struct {
	polygons   repository.PolygonRepository
	sanitizer  security.TextSanitizerService
	imageGuard security.ImageURLGuardService
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	polygons repository.PolygonRepository,
	sanitizer security.TextSanitizerService,
	imageGuard security.ImageURLGuardService,
) *Service {
	return &Service{
		polygons:   polygons,
		sanitizer:  sanitizer,
		imageGuard: imageGuard,
	}
}

// Create は新しい観測ポリゴンを作成する。
// 異なる頂点が3つ未満の場合はエラーを返す。
// 作成成功と同一トランザクションで所有者の投稿数カウンターが1増える。
func (s *Service) Create(ctx context.Context, userID string, input CreateInput) (*model.Polygon, error) {
	for _, v := range input.Vertices {
		if err := geometry.ValidateLatLng(v); err != nil {
			return nil, err
		}
	}
	if input.CropType == "" {
		return nil, model.NewBadRequestError("作物の種類は必須です。")
	}
	if err := s.validateImages(ctx, input.Images); err != nil {
		return nil, err
	}

	wkt, err := geometry.EncodePolygon(input.Vertices)
	if err != nil {
		return nil, err
	}

	polygon := &model.Polygon{
		ID:        uuid.New().String(),
		UserID:    userID,
		CropType:  input.CropType,
		Area:      input.Area,
		Perimeter: input.Perimeter,
		Notes:     s.sanitizer.Sanitize(input.Notes),
		ProjectID: input.ProjectID,
		Images:    input.Images,
	}

	if err := s.polygons.Create(ctx, polygon, wkt); err != nil {
		return nil, fmt.Errorf("failed to create polygon: %w", err)
	}

	slog.Info("polygon created",
		slog.String("polygon_id", polygon.ID),
		slog.String("user_id", userID),
		slog.String("crop_type", polygon.CropType),
		slog.Float64("area", polygon.Area),
	)

	return polygon, nil
}

// Get は指定IDのポリゴンを所有者情報付きで返す。
func (s *Service) Get(ctx context.Context, id string) (*model.Polygon, error) {
	polygon, err := s.polygons.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get polygon: %w", err)
	}
	if polygon == nil {
		return nil, model.NewNotFoundError("ポリゴン")
	}
	return polygon, nil
}

// List はフィルタ条件に一致するポリゴン一覧と総件数を返す。
func (s *Service) List(ctx context.Context, filter model.PolygonFilter) ([]*model.Polygon, int, error) {
	polygons, total, err := s.polygons.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list polygons: %w", err)
	}
	return polygons, total, nil
}

// ListWithinBounds は境界矩形と交差するポリゴンを返す。
// ポイントの厳密包含と異なり、ビューポートに一部でも重なれば対象になる。
func (s *Service) ListWithinBounds(ctx context.Context, bounds model.Bounds) ([]*model.Polygon, error) {
	if err := geometry.ValidateBounds(bounds); err != nil {
		return nil, err
	}

	polygons, err := s.polygons.ListWithinBounds(ctx, geometry.EncodeBounds(bounds))
	if err != nil {
		return nil, fmt.Errorf("failed to list polygons within bounds: %w", err)
	}
	return polygons, nil
}

// Update はポリゴンを部分更新する。所有者または管理者のみが実行できる。
// ジオメトリ・面積・周長は変更できない。
func (s *Service) Update(ctx context.Context, requesterID string, requesterRole model.Role, id string, upd model.PolygonUpdate) (*model.Polygon, error) {
	if upd.IsEmpty() {
		return nil, model.NewNoFieldsError()
	}

	ownerID, err := s.polygons.FindOwnerID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to check polygon owner: %w", err)
	}
	if ownerID == "" {
		return nil, model.NewNotFoundError("ポリゴン")
	}
	if !authz.CanMutate(requesterID, requesterRole, ownerID) {
		return nil, model.NewForbiddenError("自分が作成したポリゴンのみ更新できます。")
	}

	if upd.Notes != nil {
		sanitized := s.sanitizer.Sanitize(*upd.Notes)
		upd.Notes = &sanitized
	}
	if upd.Images != nil {
		if err := s.validateImages(ctx, *upd.Images); err != nil {
			return nil, err
		}
	}

	polygon, err := s.polygons.Update(ctx, id, upd)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NewNotFoundError("ポリゴン")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update polygon: %w", err)
	}

	return polygon, nil
}

// Delete はポリゴンを削除する。所有者または管理者のみが実行できる。
// 削除成功と同一トランザクションで所有者の投稿数カウンターが1減る。
func (s *Service) Delete(ctx context.Context, requesterID string, requesterRole model.Role, id string) error {
	ownerID, err := s.polygons.FindOwnerID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to check polygon owner: %w", err)
	}
	if ownerID == "" {
		return model.NewNotFoundError("ポリゴン")
	}
	if !authz.CanMutate(requesterID, requesterRole, ownerID) {
		return model.NewForbiddenError("自分が作成したポリゴンのみ削除できます。")
	}

	err = s.polygons.Delete(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.NewNotFoundError("ポリゴン")
	}
	if err != nil {
		return fmt.Errorf("failed to delete polygon: %w", err)
	}

	slog.Info("polygon deleted",
		slog.String("polygon_id", id),
		slog.String("requester_id", requesterID),
	)

	return nil
}

// validateImages は画像URLの安全性を検証する。
// 静的検証を通過したURLはSSRF防止付きクライアント経由で到達確認する。
func (s *Service) validateImages(ctx context.Context, images []string) error {
	for _, url := range images {
		if err := s.imageGuard.ValidateURL(url); err != nil {
			return model.NewBadRequestError(fmt.Sprintf("不正な画像URLです: %v", err))
		}
		if err := s.imageGuard.VerifyImage(ctx, url); err != nil {
			return model.NewBadRequestError(fmt.Sprintf("画像URLを検証できません: %v", err))
		}
	}
	return nil
}
