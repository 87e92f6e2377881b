// Package point は観測ポイントのドメインロジックを提供する。
package point

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

// CreateInput はポイント作成の入力。
type CreateInput struct {
	Latitude  float64
	Longitude float64
	CropType  string
	Notes     string
	ProjectID *string
	Images    []string
}

// Service は観測ポイントのサービス層。
// 座標検証、メモのサニタイズ、画像URLの安全性検証を経てリポジトリに委譲する。
type Service struct {
	points     repository.PointRepository
	sanitizer  security.TextSanitizerService
	imageGuard security.ImageURLGuardService
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	points repository.PointRepository,
	sanitizer security.TextSanitizerService,
	imageGuard security.ImageURLGuardService,
) *Service {
	return &Service{
		points:     points,
		sanitizer:  sanitizer,
		imageGuard: imageGuard,
	}
}

// Create は新しい観測ポイントを作成する。
// 作成成功と同一トランザクションで所有者の投稿数カウンターが1増える。
func (s *Service) Create(ctx context.Context, userID string, input CreateInput) (*model.Point, error) {
	if err := geometry.ValidateLatLng(model.LatLng{Lat: input.Latitude, Lng: input.Longitude}); err != nil {
		return nil, err
	}
	if input.CropType == "" {
		return nil, model.NewBadRequestError("作物の種類は必須です。")
	}
	if err := s.validateImages(ctx, input.Images); err != nil {
		return nil, err
	}

	wkt := geometry.EncodePoint(model.LatLng{Lat: input.Latitude, Lng: input.Longitude})

	point := &model.Point{
		ID:        uuid.New().String(),
		UserID:    userID,
		CropType:  input.CropType,
		Notes:     s.sanitizer.Sanitize(input.Notes),
		ProjectID: input.ProjectID,
		Images:    input.Images,
	}

	if err := s.points.Create(ctx, point, wkt); err != nil {
		return nil, fmt.Errorf("failed to create point: %w", err)
	}

	slog.Info("point created",
		slog.String("point_id", point.ID),
		slog.String("user_id", userID),
		slog.String("crop_type", point.CropType),
	)

	return point, nil
}

// Get は指定IDのポイントを所有者情報付きで返す。
func (s *Service) Get(ctx context.Context, id string) (*model.Point, error) {
	point, err := s.points.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get point: %w", err)
	}
	if point == nil {
		return nil, model.NewNotFoundError("ポイント")
	}
	return point, nil
}

// List はフィルタ条件に一致するポイント一覧と総件数を返す。
func (s *Service) List(ctx context.Context, filter model.PointFilter) ([]*model.Point, int, error) {
	points, total, err := s.points.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list points: %w", err)
	}
	return points, total, nil
}

// ListWithinBounds は境界矩形に厳密に包含されるポイントを返す。
// 矩形の境界線上のポイントは含まれない。
func (s *Service) ListWithinBounds(ctx context.Context, bounds model.Bounds) ([]*model.Point, error) {
	if err := geometry.ValidateBounds(bounds); err != nil {
		return nil, err
	}

	points, err := s.points.ListWithinBounds(ctx, geometry.EncodeBounds(bounds))
	if err != nil {
		return nil, fmt.Errorf("failed to list points within bounds: %w", err)
	}
	return points, nil
}

// Update はポイントを部分更新する。所有者または管理者のみが実行できる。
func (s *Service) Update(ctx context.Context, requesterID string, requesterRole model.Role, id string, upd model.PointUpdate) (*model.Point, error) {
	if upd.IsEmpty() {
		return nil, model.NewNoFieldsError()
	}

	ownerID, err := s.points.FindOwnerID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to check point owner: %w", err)
	}
	if ownerID == "" {
		return nil, model.NewNotFoundError("ポイント")
	}
	if !authz.CanMutate(requesterID, requesterRole, ownerID) {
		return nil, model.NewForbiddenError("自分が作成したポイントのみ更新できます。")
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

	point, err := s.points.Update(ctx, id, upd)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NewNotFoundError("ポイント")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update point: %w", err)
	}

	return point, nil
}

// Delete はポイントを削除する。所有者または管理者のみが実行できる。
// 削除成功と同一トランザクションで所有者の投稿数カウンターが1減る。
func (s *Service) Delete(ctx context.Context, requesterID string, requesterRole model.Role, id string) error {
	ownerID, err := s.points.FindOwnerID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to check point owner: %w", err)
	}
	if ownerID == "" {
		return model.NewNotFoundError("ポイント")
	}
	if !authz.CanMutate(requesterID, requesterRole, ownerID) {
		return model.NewForbiddenError("自分が作成したポイントのみ削除できます。")
	}

	err = s.points.Delete(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.NewNotFoundError("ポイント")
	}
	if err != nil {
		return fmt.Errorf("failed to delete point: %w", err)
	}

	slog.Info("point deleted",
		slog.String("point_id", id),
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
