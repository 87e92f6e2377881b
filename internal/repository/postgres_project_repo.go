package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hitoshi/cropmap/internal/model"
	"github.com/hitoshi/cropmap/internal/query"
)

// PostgresProjectRepo はPostgreSQLを使用した収集プロジェクトリポジトリ。
type PostgresProjectRepo struct {
	db DBTX
}

// NewPostgresProjectRepo はPostgresProjectRepoを生成する。
func NewPostgresProjectRepo(db DBTX) *PostgresProjectRepo {
	return &PostgresProjectRepo{db: db}
}

// FindByID は指定IDのプロジェクトを作成者情報付きで取得する。見つからない場合はnilを返す。
// 導出集計値は含まない。参加者一覧はListContributorsで別途取得する。
func (r *PostgresProjectRepo) FindByID(ctx context.Context, id string) (*model.Project, error) {
	project := &model.Project{}
	creator := &model.OwnerInfo{}
	var startDate, endDate sql.NullTime
	var targetArea sql.NullFloat64

	err := r.db.QueryRowContext(ctx,
		`SELECT
			p.id, p.name, p.description, p.start_date, p.end_date,
			p.target_area, p.status, p.created_by, p.created_at,
			u.first_name, u.last_name, u.email
		 FROM projects p
		 JOIN users u ON p.created_by = u.id
		 WHERE p.id = $1`,
		id,
	).Scan(&project.ID, &project.Name, &project.Description, &startDate, &endDate,
		&targetArea, &project.Status, &project.CreatedBy, &project.CreatedAt,
		&creator.FirstName, &creator.LastName, &creator.Email)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find project by ID: %w", err)
	}

	applyProjectNullables(project, startDate, endDate, targetArea)
	project.Creator = creator

	return project, nil
}

// FindCreatorID は指定IDのプロジェクトの作成者IDを返す。見つからない場合は空文字列を返す。
func (r *PostgresProjectRepo) FindCreatorID(ctx context.Context, id string) (string, error) {
	var creatorID string
	err := r.db.QueryRowContext(ctx,
		`SELECT created_by FROM projects WHERE id = $1`,
		id,
	).Scan(&creatorID)

	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to find project creator: %w", err)
	}

	return creatorID, nil
}

// List はフィルタ条件に一致するプロジェクト一覧と総件数を返す。
// 各行に作成者情報と導出集計値を含む。集計値は保存せず常に読み取り時に計算する。
func (r *PostgresProjectRepo) List(ctx context.Context, filter model.ProjectFilter) ([]*model.Project, int, error) {
	page, limit := query.NormalizePage(filter.Page, filter.Limit, query.DefaultListLimit)

	b := query.NewBuilder()
	if filter.Status != "" {
		b.Equal("p.status", filter.Status)
	}
	if filter.Search != "" {
		b.Search(filter.Search, "p.name", "p.description")
	}

	q, args := b.SelectQuery(
		`SELECT
			p.id, p.name, p.description, p.start_date, p.end_date,
			p.target_area, p.status, p.created_by, p.created_at,
			u.first_name, u.last_name, u.email,
			COUNT(DISTINCT pc.user_id) AS contributor_count,
			COUNT(DISTINCT poly.id) AS polygon_count,
			COUNT(DISTINCT pt.id) AS point_count
		 FROM projects p
		 JOIN users u ON p.created_by = u.id
		 LEFT JOIN project_contributors pc ON p.id = pc.project_id
		 LEFT JOIN polygones poly ON p.id = poly.project_id
		 LEFT JOIN points pt ON p.id = pt.project_id`,
		`GROUP BY p.id, u.id ORDER BY p.created_at DESC`,
		page, limit,
	)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*model.Project
	for rows.Next() {
		project := &model.Project{}
		creator := &model.OwnerInfo{}
		stats := &model.ProjectStats{}
		var startDate, endDate sql.NullTime
		var targetArea sql.NullFloat64

		err := rows.Scan(&project.ID, &project.Name, &project.Description, &startDate, &endDate,
			&targetArea, &project.Status, &project.CreatedBy, &project.CreatedAt,
			&creator.FirstName, &creator.LastName, &creator.Email,
			&stats.ContributorCount, &stats.PolygonCount, &stats.PointCount)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan project: %w", err)
		}

		applyProjectNullables(project, startDate, endDate, targetArea)
		project.Creator = creator
		project.Stats = stats
		projects = append(projects, project)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate projects: %w", err)
	}

	countQ, countArgs := b.CountQuery(`SELECT COUNT(*) FROM projects p`)
	var total int
	if err := r.db.QueryRowContext(ctx, countQ, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count projects: %w", err)
	}

	return projects, total, nil
}

// Create はプロジェクトを作成する。
func (r *PostgresProjectRepo) Create(ctx context.Context, project *model.Project) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO projects (id, name, description, start_date, end_date, target_area, status, created_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		 RETURNING created_at`,
		project.ID, project.Name, project.Description, project.StartDate, project.EndDate,
		project.TargetArea, project.Status, project.CreatedBy,
	).Scan(&project.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert project: %w", err)
	}
	return nil
}

// Update はプロジェクトを部分更新し、更新後のプロジェクトを返す。
func (r *PostgresProjectRepo) Update(ctx context.Context, id string, upd model.ProjectUpdate) (*model.Project, error) {
	var sets []string
	var args []any

	if upd.Name != nil {
		sets = append(sets, fmt.Sprintf("name = $%d", len(args)+1))
		args = append(args, *upd.Name)
	}
	if upd.Description != nil {
		sets = append(sets, fmt.Sprintf("description = $%d", len(args)+1))
		args = append(args, *upd.Description)
	}
	if upd.StartDate != nil {
		sets = append(sets, fmt.Sprintf("start_date = $%d", len(args)+1))
		args = append(args, *upd.StartDate)
	}
	if upd.EndDate != nil {
		sets = append(sets, fmt.Sprintf("end_date = $%d", len(args)+1))
		args = append(args, *upd.EndDate)
	}
	if upd.TargetArea != nil {
		sets = append(sets, fmt.Sprintf("target_area = $%d", len(args)+1))
		args = append(args, *upd.TargetArea)
	}
	if upd.Status != nil {
		sets = append(sets, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *upd.Status)
	}

	args = append(args, id)
	q := fmt.Sprintf(
		`UPDATE projects SET %s WHERE id = $%d
		 RETURNING id, name, description, start_date, end_date, target_area, status, created_by, created_at`,
		strings.Join(sets, ", "), len(args),
	)

	project := &model.Project{}
	var startDate, endDate sql.NullTime
	var targetArea sql.NullFloat64
	err := r.db.QueryRowContext(ctx, q, args...).Scan(
		&project.ID, &project.Name, &project.Description, &startDate, &endDate,
		&targetArea, &project.Status, &project.CreatedBy, &project.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}

	applyProjectNullables(project, startDate, endDate, targetArea)

	return project, nil
}

// DeleteByID は指定IDのプロジェクトを削除する。
func (r *PostgresProjectRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM projects WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListContributors はプロジェクトの参加者一覧をjoined_at降順で返す。
func (r *PostgresProjectRepo) ListContributors(ctx context.Context, projectID string) ([]model.Contributor, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT u.id, u.email, u.first_name, u.last_name, pc.joined_at
		 FROM project_contributors pc
		 JOIN users u ON pc.user_id = u.id
		 WHERE pc.project_id = $1
		 ORDER BY pc.joined_at DESC`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list contributors: %w", err)
	}
	defer rows.Close()

	var contributors []model.Contributor
	for rows.Next() {
		var c model.Contributor
		if err := rows.Scan(&c.UserID, &c.Email, &c.FirstName, &c.LastName, &c.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan contributor: %w", err)
		}
		contributors = append(contributors, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate contributors: %w", err)
	}

	return contributors, nil
}

// IsContributor はユーザーがプロジェクトの参加者であるかを返す。
func (r *PostgresProjectRepo) IsContributor(ctx context.Context, projectID, userID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM project_contributors WHERE project_id = $1 AND user_id = $2)`,
		projectID, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check contributor: %w", err)
	}
	return exists, nil
}

// AddContributor はプロジェクトに参加者を追加する。
func (r *PostgresProjectRepo) AddContributor(ctx context.Context, projectID, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO project_contributors (project_id, user_id, joined_at) VALUES ($1, $2, NOW())`,
		projectID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to add contributor: %w", err)
	}
	return nil
}

// RemoveContributor はプロジェクトから参加者を外す。
func (r *PostgresProjectRepo) RemoveContributor(ctx context.Context, projectID, userID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM project_contributors WHERE project_id = $1 AND user_id = $2`,
		projectID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove contributor: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// applyProjectNullables はNULL許容カラムをポインタフィールドに反映する。
func applyProjectNullables(project *model.Project, startDate, endDate sql.NullTime, targetArea sql.NullFloat64) {
	if startDate.Valid {
		project.StartDate = &startDate.Time
	}
	if endDate.Valid {
		project.EndDate = &endDate.Time
	}
	if targetArea.Valid {
		project.TargetArea = &targetArea.Float64
	}
}

// compile-time interface check
var _ ProjectRepository = (*PostgresProjectRepo)(nil)
