package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hitoshi/cropmap/internal/model"
	"github.com/hitoshi/cropmap/internal/query"
)

// userColumns はユーザー取得で選択する公開カラム。パスワードハッシュは含まない。
const userColumns = `id, email, first_name, last_name, role,
	points_contributed, polygones_contributed, created_at, last_login`

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db DBTX
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db DBTX) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	)

	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}

	return user, nil
}

// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
// ログイン時の資格情報検証に使用するため、パスワードハッシュを含む。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	user := &model.User{}
	var lastLogin sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, first_name, last_name, role,
		        points_contributed, polygones_contributed, created_at, last_login
		 FROM users WHERE email = $1`,
		email,
	).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.FirstName, &user.LastName,
		&user.Role, &user.PointsContributed, &user.PolygonesContributed,
		&user.CreatedAt, &lastLogin)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}

	if lastLogin.Valid {
		user.LastLogin = &lastLogin.Time
	}
	return user, nil
}

// Create はユーザーを作成する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (id, email, password_hash, first_name, last_name, role, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW())
		 RETURNING created_at`,
		user.ID, user.Email, user.PasswordHash, user.FirstName, user.LastName, user.Role,
	).Scan(&user.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// List はフィルタ条件に一致するユーザー一覧と総件数を返す。
func (r *PostgresUserRepo) List(ctx context.Context, filter model.UserFilter) ([]*model.User, int, error) {
	page, limit := query.NormalizePage(filter.Page, filter.Limit, query.DefaultListLimit)

	b := query.NewBuilder()
	if filter.Role != "" {
		b.Equal("role", filter.Role)
	}
	if filter.Search != "" {
		b.Search(filter.Search, "email", "first_name", "last_name")
	}

	q, args := b.SelectQuery(
		`SELECT `+userColumns+` FROM users`,
		`ORDER BY created_at DESC`,
		page, limit,
	)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate users: %w", err)
	}

	countQ, countArgs := b.CountQuery(`SELECT COUNT(*) FROM users`)
	var total int
	if err := r.db.QueryRowContext(ctx, countQ, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	return users, total, nil
}

// Update はユーザーを部分更新し、更新後のユーザーを返す。
// Passwordにはハッシュ済みの値を渡すこと。
func (r *PostgresUserRepo) Update(ctx context.Context, id string, upd model.UserUpdate) (*model.User, error) {
	var sets []string
	var args []any

	if upd.FirstName != nil {
		sets = append(sets, fmt.Sprintf("first_name = $%d", len(args)+1))
		args = append(args, *upd.FirstName)
	}
	if upd.LastName != nil {
		sets = append(sets, fmt.Sprintf("last_name = $%d", len(args)+1))
		args = append(args, *upd.LastName)
	}
	if upd.Email != nil {
		sets = append(sets, fmt.Sprintf("email = $%d", len(args)+1))
		args = append(args, *upd.Email)
	}
	if upd.Role != nil {
		sets = append(sets, fmt.Sprintf("role = $%d", len(args)+1))
		args = append(args, *upd.Role)
	}
	if upd.Password != nil {
		sets = append(sets, fmt.Sprintf("password_hash = $%d", len(args)+1))
		args = append(args, *upd.Password)
	}

	if len(sets) == 0 {
		// 更新対象がない場合は現在の行をそのまま返す
		user, err := r.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if user == nil {
			return nil, sql.ErrNoRows
		}
		return user, nil
	}

	args = append(args, id)
	q := fmt.Sprintf(
		`UPDATE users SET %s WHERE id = $%d RETURNING `+userColumns,
		strings.Join(sets, ", "), len(args),
	)

	user, err := scanUser(r.db.QueryRowContext(ctx, q, args...))
	if err == sql.ErrNoRows {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	return user, nil
}

// DeleteByID は指定IDのユーザーを削除する。
func (r *PostgresUserRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM users WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
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

// UpdateLastLogin はログイン成功時に最終ログイン日時を更新する。
func (r *PostgresUserRepo) UpdateLastLogin(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET last_login = NOW() WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

// Stats はユーザーの投稿統計を返す。見つからない場合はnilを返す。
func (r *PostgresUserRepo) Stats(ctx context.Context, id string) (*model.UserStats, error) {
	stats := &model.UserStats{}
	err := r.db.QueryRowContext(ctx,
		`SELECT
			u.id,
			u.email,
			u.first_name,
			u.last_name,
			u.points_contributed,
			u.polygones_contributed,
			COUNT(DISTINCT pc.project_id) AS projects_count
		 FROM users u
		 LEFT JOIN project_contributors pc ON u.id = pc.user_id
		 WHERE u.id = $1
		 GROUP BY u.id`,
		id,
	).Scan(&stats.UserID, &stats.Email, &stats.FirstName, &stats.LastName,
		&stats.PointsContributed, &stats.PolygonesContributed, &stats.ProjectsCount)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user stats: %w", err)
	}

	return stats, nil
}

// rowScanner は*sql.Rowと*sql.Rowsの共通Scanインターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanUser はuserColumnsの並びでユーザー1行をスキャンする。
func scanUser(row rowScanner) (*model.User, error) {
	user := &model.User{}
	var lastLogin sql.NullTime
	err := row.Scan(&user.ID, &user.Email, &user.FirstName, &user.LastName, &user.Role,
		&user.PointsContributed, &user.PolygonesContributed, &user.CreatedAt, &lastLogin)
	if err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		user.LastLogin = &lastLogin.Time
	}
	return user, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
