package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hitoshi/cropmap/internal/ledger"
	"github.com/hitoshi/cropmap/internal/model"
	"github.com/hitoshi/cropmap/internal/query"
)

// PostgresPolygonRepo はPostgreSQL（PostGIS）を使用した観測ポリゴンリポジトリ。
// テーブル名 "polygones" の綴りは既存スキーマをそのまま踏襲している。
// 作成・削除は投稿数カウンターの増減と同一トランザクションで実行する。
type PostgresPolygonRepo struct {
	db     DBTX
	ledger *ledger.Ledger
}

// NewPostgresPolygonRepo はPostgresPolygonRepoを生成する。
func NewPostgresPolygonRepo(db DBTX, ledger *ledger.Ledger) *PostgresPolygonRepo {
	return &PostgresPolygonRepo{db: db, ledger: ledger}
}

// FindByID は指定IDのポリゴンを所有者情報付きで取得する。見つからない場合はnilを返す。
func (r *PostgresPolygonRepo) FindByID(ctx context.Context, id string) (*model.Polygon, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT
			p.id, p.user_id, p.crop_type, p.area, p.perimeter, p.notes,
			p.project_id, p.images, ST_AsGeoJSON(p.geometry), p.created_at,
			u.first_name, u.last_name, u.email
		 FROM polygones p
		 JOIN users u ON p.user_id = u.id
		 WHERE p.id = $1`,
		id,
	)

	polygon, err := scanPolygonWithOwner(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find polygon by ID: %w", err)
	}

	return polygon, nil
}

// FindOwnerID は指定IDのポリゴンの所有者IDを返す。見つからない場合は空文字列を返す。
func (r *PostgresPolygonRepo) FindOwnerID(ctx context.Context, id string) (string, error) {
	var ownerID string
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id FROM polygones WHERE id = $1`,
		id,
	).Scan(&ownerID)

	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to find polygon owner: %w", err)
	}

	return ownerID, nil
}

// List はフィルタ条件に一致するポリゴン一覧と総件数を返す。
func (r *PostgresPolygonRepo) List(ctx context.Context, filter model.PolygonFilter) ([]*model.Polygon, int, error) {
	page, limit := query.NormalizePage(filter.Page, filter.Limit, query.DefaultGeometryLimit)

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
	if filter.MinArea != nil {
		b.GreaterOrEqual("p.area", *filter.MinArea)
	}
	if filter.MaxArea != nil {
		b.LessOrEqual("p.area", *filter.MaxArea)
	}

	q, args := b.SelectQuery(
		`SELECT
			p.id, p.user_id, p.crop_type, p.area, p.perimeter, p.notes,
			p.project_id, p.images, ST_AsGeoJSON(p.geometry), p.created_at,
			u.first_name, u.last_name, u.email
		 FROM polygones p
		 JOIN users u ON p.user_id = u.id`,
		`ORDER BY p.created_at DESC`,
		page, limit,
	)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list polygons: %w", err)
	}
	defer rows.Close()

	var polygons []*model.Polygon
	for rows.Next() {
		polygon, err := scanPolygonWithOwner(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan polygon: %w", err)
		}
		polygons = append(polygons, polygon)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate polygons: %w", err)
	}

	countQ, countArgs := b.CountQuery(`SELECT COUNT(*) FROM polygones p`)
	var total int
	if err := r.db.QueryRowContext(ctx, countQ, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count polygons: %w", err)
	}

	return polygons, total, nil
}

// ListWithinBounds は境界矩形と交差するポリゴンを返す。
// ポイントの厳密包含と異なり、ビューポートに一部でも重なるものを対象とする。
func (r *PostgresPolygonRepo) ListWithinBounds(ctx context.Context, boundsWKT string) ([]*model.Polygon, error) {
	b := query.NewBuilder()
	b.Intersects("p.geometry", boundsWKT)

	q := `SELECT
			p.id, p.user_id, p.crop_type, p.area, p.perimeter, p.notes,
			p.project_id, p.images, ST_AsGeoJSON(p.geometry), p.created_at
		 FROM polygones p ` + b.Predicate() + ` ORDER BY p.created_at DESC`

	rows, err := r.db.QueryContext(ctx, q, b.Args()...)
	if err != nil {
		return nil, fmt.Errorf("failed to list polygons within bounds: %w", err)
	}
	defer rows.Close()

	var polygons []*model.Polygon
	for rows.Next() {
		polygon, err := scanPolygon(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan polygon: %w", err)
		}
		polygons = append(polygons, polygon)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate polygons: %w", err)
	}

	return polygons, nil
}

// Create はポリゴンを作成し、同一トランザクションで投稿数カウンターを1増やす。
func (r *PostgresPolygonRepo) Create(ctx context.Context, polygon *model.Polygon, geometryWKT string) error {
	imagesJSON, err := marshalImages(polygon.Images)
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
		`INSERT INTO polygones (id, user_id, crop_type, area, perimeter, notes, project_id, images, geometry, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, ST_GeomFromText($9, 4326), NOW())
		 RETURNING ST_AsGeoJSON(geometry), created_at`,
		polygon.ID, polygon.UserID, polygon.CropType, polygon.Area, polygon.Perimeter,
		polygon.Notes, polygon.ProjectID, imagesJSON, geometryWKT,
	).Scan(&geometry, &polygon.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert polygon: %w", err)
	}
	polygon.Geometry = geometry

	if err := r.ledger.RecordPolygonCreated(ctx, tx, polygon.UserID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Update はポリゴンを部分更新し、更新後のポリゴンを返す。
// 面積・周長・ジオメトリは作成後に変更できない。
func (r *PostgresPolygonRepo) Update(ctx context.Context, id string, upd model.PolygonUpdate) (*model.Polygon, error) {
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
		`UPDATE polygones SET %s WHERE id = $%d
		 RETURNING id, user_id, crop_type, area, perimeter, notes, project_id,
		           images, ST_AsGeoJSON(geometry), created_at`,
		strings.Join(sets, ", "), len(args),
	)

	polygon, err := scanPolygon(r.db.QueryRowContext(ctx, q, args...))
	if err == sql.ErrNoRows {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update polygon: %w", err)
	}

	return polygon, nil
}

// Delete はポリゴンを削除し、同一トランザクションで投稿数カウンターを1減らす。
// 所有者IDは行ロック付きで再取得するため、並行する削除とカウンター減算が競合しない。
func (r *PostgresPolygonRepo) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var ownerID string
	err = tx.QueryRowContext(ctx,
		`SELECT user_id FROM polygones WHERE id = $1 FOR UPDATE`,
		id,
	).Scan(&ownerID)
	if err == sql.ErrNoRows {
		return sql.ErrNoRows
	}
	if err != nil {
		return fmt.Errorf("failed to lock polygon for delete: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM polygones WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete polygon: %w", err)
	}

	if err := r.ledger.RecordPolygonDeleted(ctx, tx, ownerID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// scanPolygon は所有者情報なしでポリゴン1行をスキャンする。
func scanPolygon(row rowScanner) (*model.Polygon, error) {
	polygon := &model.Polygon{}
	var projectID sql.NullString
	var imagesJSON []byte
	var geometry []byte

	err := row.Scan(&polygon.ID, &polygon.UserID, &polygon.CropType, &polygon.Area,
		&polygon.Perimeter, &polygon.Notes, &projectID, &imagesJSON, &geometry, &polygon.CreatedAt)
	if err != nil {
		return nil, err
	}

	if projectID.Valid {
		polygon.ProjectID = &projectID.String
	}
	polygon.Geometry = geometry

	images, err := unmarshalImages(imagesJSON)
	if err != nil {
		return nil, err
	}
	polygon.Images = images

	return polygon, nil
}

// scanPolygonWithOwner は所有者情報付きでポリゴン1行をスキャンする。
func scanPolygonWithOwner(row rowScanner) (*model.Polygon, error) {
	polygon := &model.Polygon{}
	owner := &model.OwnerInfo{}
	var projectID sql.NullString
	var imagesJSON []byte
	var geometry []byte

	err := row.Scan(&polygon.ID, &polygon.UserID, &polygon.CropType, &polygon.Area,
		&polygon.Perimeter, &polygon.Notes, &projectID, &imagesJSON, &geometry, &polygon.CreatedAt,
		&owner.FirstName, &owner.LastName, &owner.Email)
	if err != nil {
		return nil, err
	}

	if projectID.Valid {
		polygon.ProjectID = &projectID.String
	}
	polygon.Geometry = geometry
	polygon.User = owner

	images, err := unmarshalImages(imagesJSON)
	if err != nil {
		return nil, err
	}
	polygon.Images = images

	return polygon, nil
}

// compile-time interface check
var _ PolygonRepository = (*PostgresPolygonRepo)(nil)
