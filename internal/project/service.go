// Package project は収集プロジェクトのドメインロジックを提供する。
package project

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/cropmap/internal/authz"
	"github.com/hitoshi/cropmap/internal/model"
	"github.com/hitoshi/cropmap/internal/repository"
	"github.com/hitoshi/cropmap/internal/security"
)

// CreateInput はプロジェクト作成の入力。
type CreateInput struct {
	Name        string
	Description string
	StartDate   *time.Time
	EndDate     *time.Time
	TargetArea  *float64
	Status      string // 省略時は "active"
}

// Service は収集プロジェクトのサービス層。
type Service struct {
	projects  repository.ProjectRepository
	users     repository.UserRepository
	sanitizer security.TextSanitizerService
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	projects repository.ProjectRepository,
	users repository.UserRepository,
	sanitizer security.TextSanitizerService,
) *Service {
	return &Service{
		projects:  projects,
		users:     users,
		sanitizer: sanitizer,
	}
}

// Create は新しいプロジェクトを作成する。作成者が自動的にCreatedByに設定される。
func (s *Service) Create(ctx context.Context, creatorID string, input CreateInput) (*model.Project, error) {
	name := s.sanitizer.Sanitize(input.Name)
	if name == "" {
		return nil, model.NewBadRequestError("プロジェクト名は必須です。")
	}

	status := model.ProjectStatus(input.Status)
	if input.Status == "" {
		status = model.ProjectStatusActive
	}
	if !status.IsValid() {
		return nil, model.NewBadRequestError(fmt.Sprintf("不正なステータスです: %s", input.Status))
	}

	project := &model.Project{
		ID:          uuid.New().String(),
		Name:        name,
		Description: s.sanitizer.Sanitize(input.Description),
		StartDate:   input.StartDate,
		EndDate:     input.EndDate,
		TargetArea:  input.TargetArea,
		Status:      status,
		CreatedBy:   creatorID,
	}

	if err := s.projects.Create(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	slog.Info("project created",
		slog.String("project_id", project.ID),
		slog.String("creator_id", creatorID),
	)

	return project, nil
}

// Get は指定IDのプロジェクトを作成者情報と参加者一覧付きで返す。
func (s *Service) Get(ctx context.Context, id string) (*model.Project, []model.Contributor, error) {
	project, err := s.projects.FindByID(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get project: %w", err)
	}
	if project == nil {
		return nil, nil, model.NewNotFoundError("プロジェクト")
	}

	contributors, err := s.projects.ListContributors(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list contributors: %w", err)
	}

	return project, contributors, nil
}

// List はフィルタ条件に一致するプロジェクト一覧（導出集計値付き）と総件数を返す。
func (s *Service) List(ctx context.Context, filter model.ProjectFilter) ([]*model.Project, int, error) {
	projects, total, err := s.projects.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list projects: %w", err)
	}
	return projects, total, nil
}

// Update はプロジェクトを部分更新する。作成者または管理者のみが実行できる。
// 作成者（CreatedBy）は変更できない。
func (s *Service) Update(ctx context.Context, requesterID string, requesterRole model.Role, id string, upd model.ProjectUpdate) (*model.Project, error) {
	if upd.IsEmpty() {
		return nil, model.NewNoFieldsError()
	}

	creatorID, err := s.projects.FindCreatorID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to check project creator: %w", err)
	}
	if creatorID == "" {
		return nil, model.NewNotFoundError("プロジェクト")
	}
	if !authz.CanMutate(requesterID, requesterRole, creatorID) {
		return nil, model.NewForbiddenError("プロジェクトの作成者または管理者のみ更新できます。")
	}

	if upd.Status != nil && !model.ProjectStatus(*upd.Status).IsValid() {
		return nil, model.NewBadRequestError(fmt.Sprintf("不正なステータスです: %s", *upd.Status))
	}
	if upd.Name != nil {
		name := s.sanitizer.Sanitize(*upd.Name)
		if name == "" {
			return nil, model.NewBadRequestError("プロジェクト名を空にはできません。")
		}
		upd.Name = &name
	}
	if upd.Description != nil {
		description := s.sanitizer.Sanitize(*upd.Description)
		upd.Description = &description
	}

	project, err := s.projects.Update(ctx, id, upd)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NewNotFoundError("プロジェクト")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}

	return project, nil
}

// Delete はプロジェクトを削除する。作成者または管理者のみが実行できる。
// 関連ポイント・ポリゴンは削除されず、プロジェクトへの参照のみ外れる。
func (s *Service) Delete(ctx context.Context, requesterID string, requesterRole model.Role, id string) error {
	creatorID, err := s.projects.FindCreatorID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to check project creator: %w", err)
	}
	if creatorID == "" {
		return model.NewNotFoundError("プロジェクト")
	}
	if !authz.CanMutate(requesterID, requesterRole, creatorID) {
		return model.NewForbiddenError("プロジェクトの作成者または管理者のみ削除できます。")
	}

	err = s.projects.DeleteByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.NewNotFoundError("プロジェクト")
	}
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	slog.Info("project deleted",
		slog.String("project_id", id),
		slog.String("requester_id", requesterID),
	)

	return nil
}

// AddContributor はプロジェクトに参加者を追加する。
// プロジェクト・ユーザーの存在を確認し、重複追加は競合エラーになる。
func (s *Service) AddContributor(ctx context.Context, projectID, userID string) error {
	creatorID, err := s.projects.FindCreatorID(ctx, projectID)
	if err != nil {
		return fmt.Errorf("failed to check project: %w", err)
	}
	if creatorID == "" {
		return model.NewNotFoundError("プロジェクト")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to check user: %w", err)
	}
	if user == nil {
		return model.NewNotFoundError("ユーザー")
	}

	already, err := s.projects.IsContributor(ctx, projectID, userID)
	if err != nil {
		return fmt.Errorf("failed to check contributor: %w", err)
	}
	if already {
		return model.NewDuplicateContributorError()
	}

	if err := s.projects.AddContributor(ctx, projectID, userID); err != nil {
		return fmt.Errorf("failed to add contributor: %w", err)
	}

	slog.Info("contributor added",
		slog.String("project_id", projectID),
		slog.String("user_id", userID),
	)

	return nil
}

// RemoveContributor はプロジェクトから参加者を外す。
func (s *Service) RemoveContributor(ctx context.Context, projectID, userID string) error {
	err := s.projects.RemoveContributor(ctx, projectID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.NewNotFoundError("参加者")
	}
	if err != nil {
		return fmt.Errorf("failed to remove contributor: %w", err)
	}

	slog.Info("contributor removed",
		slog.String("project_id", projectID),
		slog.String("user_id", userID),
	)

	return nil
}
