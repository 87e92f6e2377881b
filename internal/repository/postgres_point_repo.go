package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hitoshi/cropmap/internal/ledger"
	"github.com/hitoshi/cropmap/internal/model"
	"github.com/hitoshi/cropmap/internal/query"
)

// PostgresPointRepo はPostgreSQL（PostGIS）を使用した観測ポイントリポジトリ。
// 作成・削除は投稿数カウンターの増減と同一トランザクションで実行する。
type PostgresPointRepo struct {
	db     DBTX
	ledger *ledger.Ledger
}

// NewPostgresPointRepo はPostgresPointRepoを生成する。
func NewPostgresPointRepo(db DBTX, ledger *ledger.Ledger) *PostgresPointRepo {
	return &PostgresPointRepo{db: db, ledger: ledger}
}

// FindByID は指定IDのポイントを所有者情報付きで取得する。見つからない場合はnilを返す。
func (r *PostgresPointRepo) FindByID(ctx context.Context, id string) (*model.Point, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT
			p.id, p.user_id, p.crop_type, p.notes, p.project_id, p.images,
			ST_AsGeoJSON(p.geometry), p.created_at,
			u.first_name, u.last_name, u.email
		 FROM points p
		 JOIN users u ON p.user_id = u.id
		 WHERE p.id = $1`,
		id,
	)

	point, err := scanPointWithOwner(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find point by ID: %w", err)
	}

	return point, nil
}

// FindOwnerID は指定IDのポイントの所有者IDを返す。見つからない場合は空文字列を返す。
func (r *PostgresPointRepo) FindOwnerID(ctx context.Context, id string) (string, error) {
	var ownerID string
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id FROM points WHERE id = $1`,
		id,
	).Scan(&ownerID)

	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to find point owner: %w", err)
	}

	return ownerID, nil
}

// List はフィルタ条件に一致するポイント一覧と総件数を返す。
func (r *PostgresPointRepo) List(ctx context.Context, filter model.PointFilter) ([]*model.Point, int, error) {
	page, limit := query.NormalizePage(filter.Page, filter.Limit, query.DefaultGeometryLimit)

	// フィルタは宣言順に追加する。件数クエリが同一の述語と引数を共有するため、
	// パラメータ番号のずれは発生しない。
	b := query.NewBuilder()
	if filter.CropType != "" {
		b.Equal("p.crop_type", filter.CropType)
	}
	if filter.ProjectID != "" {
		b.Equal("p.project_id", filter.ProjectID)
	}
	if filter.UserID != "" {
		b.Equal("p.user_id", filter.UserID)
	}

	q, args := b.SelectQuery(
		`SELECT
			p.id, p.user_id, p.crop_type, p.notes, p.project_id, p.images,
			ST_AsGeoJSON(p.geometry), p.created_at,
			u.first_name, u.last_name, u.email
		 FROM points p
		 JOIN users u ON p.user_id = u.id`,
		`ORDER BY p.created_at DESC`,
		page, limit,
	)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list points: %w", err)
	}
	defer rows.Close()

	var points []*model.Point
	for rows.Next() {
		point, err := scanPointWithOwner(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan point: %w", err)
		}
		points = append(points, point)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate points: %w", err)
	}

	countQ, countArgs := b.CountQuery(`SELECT COUNT(*) FROM points p`)
	var total int
	if err := r.db.QueryRowContext(ctx, countQ, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count points: %w", err)
	}

	return points, total, nil
}

// ListWithinBounds は境界矩形に厳密に包含されるポイントを返す。
func (r *PostgresPointRepo) ListWithinBounds(ctx context.Context, boundsWKT string) ([]*model.Point, error) {
	b := query.NewBuilder()
	b.Within("p.geometry", boundsWKT)

	q := `SELECT
			p.id, p.user_id, p.crop_type, p.notes, p.project_id, p.images,
			ST_AsGeoJSON(p.geometry), p.created_at
		 FROM points p ` + b.Predicate() + ` ORDER BY p.created_at DESC`

	rows, err := r.db.QueryContext(ctx, q, b.Args()...)
	if err != nil {
		return nil, fmt.Errorf("failed to list points within bounds: %w", err)
	}
	defer rows.Close()

	var points []*model.Point
	for rows.Next() {
		point, err := scanPoint(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan point: %w", err)
		}
		points = append(points, point)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate points: %w", err)
	}

	return points, nil
}

// Create はポイントを作成し、同一トランザクションで投稿数カウンターを1増やす。
func (r *PostgresPointRepo) Create(ctx context.Context, point *model.Point, geometryWKT string) error {
	imagesJSON, err := marshalImages(point.Images)
	if err != nil {
		return fmt.Errorf("failed to marshal images: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var geometry []byte
	err = tx.QueryRowContext(ctx,
		`INSERT INTO points (id, user_id, crop_type, notes, project_id, images, geometry, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, ST_GeomFromText($7, 4326), NOW())
		 RETURNING ST_AsGeoJSON(geometry), created_at`,
		point.ID, point.UserID, point.CropType, point.Notes, point.ProjectID, imagesJSON, geometryWKT,
	).Scan(&geometry, &point.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert point: %w", err)
	}
	point.Geometry = geometry

	if err := r.ledger.RecordPointCreated(ctx, tx, point.UserID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Update はポイントを部分更新し、更新後のポイントを返す。
func (r *PostgresPointRepo) Update(ctx context.Context, id string, upd model.PointUpdate) (*model.Point, error) {
	var sets []string
	var args []any

	if upd.CropType != nil {
		sets = append(sets, fmt.Sprintf("crop_type = $%d", len(args)+1))
		args = append(args, *upd.CropType)
	}
	if upd.Notes != nil {
		sets = append(sets, fmt.Sprintf("notes = $%d", len(args)+1))
		args = append(args, *upd.Notes)
	}
	if upd.Images != nil {
		imagesJSON, err := marshalImages(*upd.Images)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal images: %w", err)
		}
		sets = append(sets, fmt.Sprintf("images = $%d", len(args)+1))
		args = append(args, imagesJSON)
	}

	args = append(args, id)
	q := fmt.Sprintf(
		`UPDATE points SET %s WHERE id = $%d
		 RETURNING id, user_id, crop_type, notes, project_id, images,
		           ST_AsGeoJSON(geometry), created_at`,
		strings.Join(sets, ", "), len(args),
	)

	point, err := scanPoint(r.db.QueryRowContext(ctx, q, args...))
	if err == sql.ErrNoRows {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update point: %w", err)
	}

	return point, nil
}

// Delete はポイントを削除し、同一トランザクションで投稿数カウンターを1減らす。
// 所有者IDは行ロック付きで再取得するため、並行する削除とカウンター減算が競合しない。
func (r *PostgresPointRepo) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var ownerID string
	err = tx.QueryRowContext(ctx,
		`SELECT user_id FROM points WHERE id = $1 FOR UPDATE`,
		id,
	).Scan(&ownerID)
	if err == sql.ErrNoRows {
		return sql.ErrNoRows
	}
	if err != nil {
		return fmt.Errorf("failed to lock point for delete: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM points WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete point: %w", err)
	}

	if err := r.ledger.RecordPointDeleted(ctx, tx, ownerID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// scanPoint は所有者情報なしでポイント1行をスキャンする。
func scanPoint(row rowScanner) (*model.Point, error) {
	point := &model.Point{}
	var projectID sql.NullString
	var imagesJSON []byte
	var geometry []byte

	err := row.Scan(&point.ID, &point.UserID, &point.CropType, &point.Notes,
		&projectID, &imagesJSON, &geometry, &point.CreatedAt)
	if err != nil {
		return nil, err
	}

	if projectID.Valid {
		point.ProjectID = &projectID.String
	}
	point.Geometry = geometry

	images, err := unmarshalImages(imagesJSON)
	if err != nil {
		return nil, err
	}
	point.Images = images

	return point, nil
}

// scanPointWithOwner は所有者情報付きでポイント1行をスキャンする。
func scanPointWithOwner(row rowScanner) (*model.Point, error) {
	point := &model.Point{}
	owner := &model.OwnerInfo{}
	var projectID sql.NullString
	var imagesJSON []byte
	var geometry []byte

	err := row.Scan(&point.ID, &point.UserID, &point.CropType, &point.Notes,
		&projectID, &imagesJSON, &geometry, &point.CreatedAt,
		&owner.FirstName, &owner.LastName, &owner.Email)
	if err != nil {
		return nil, err
	}

	if projectID.Valid {
		point.ProjectID = &projectID.String
	}
	point.Geometry = geometry
	point.User = owner

	images, err := unmarshalImages(imagesJSON)
	if err != nil {
		return nil, err
	}
	point.Images = images

	return point, nil
}

// marshalImages は画像URL配列をJSONB格納用にシリアライズする。nilは空配列になる。
func marshalImages(images []string) ([]byte, error) {
	if images == nil {
		images = []string{}
	}
	return json.Marshal(images)
}

// unmarshalImages はJSONBカラムの画像URL配列を復元する。
func unmarshalImages(data []byte) ([]string, error) {
	if len(data) == 0 {
		return []string{}, nil
	}
	var images []string
	if err := json.Unmarshal(data, &images); err != nil {
		return nil, fmt.Errorf("failed to unmarshal images: %w", err)
	}
	return images, nil
}

// compile-time interface check
var _ PointRepository = (*PostgresPointRepo)(nil)
