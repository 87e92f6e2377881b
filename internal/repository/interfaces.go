// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"

	"github.com/hitoshi/cropmap/internal/model"
)

// DBTX はリポジトリが使用するデータベース操作のインターフェース。
// *sql.DB および計測ラッパー（database.DB）が満たす。
type DBTX interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	// パスワードハッシュを含むため、結果をそのままAPIレスポンスに使ってはならない。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。CreatedAtはデータベース側のNOW()で設定され、
	// user.CreatedAtに書き戻される。
	Create(ctx context.Context, user *model.User) error

	// List はフィルタ条件に一致するユーザー一覧と総件数を返す。
	// created_at降順。ページネーションはデータクエリのみに適用される。
	List(ctx context.Context, filter model.UserFilter) ([]*model.User, int, error)

	// Update はユーザーを部分更新し、更新後のユーザーを返す。
	// nilのフィールドは変更しない。Passwordにはハッシュ済みの値を渡すこと。
	// 対象が存在しない場合はsql.ErrNoRowsを返す。
	Update(ctx context.Context, id string, upd model.UserUpdate) (*model.User, error)

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するポイント・ポリゴン・プロジェクト参加はCASCADE削除される。
	// 対象が存在しない場合はsql.ErrNoRowsを返す。
	DeleteByID(ctx context.Context, id string) error

	// UpdateLastLogin はログイン成功時に最終ログイン日時をNOW()に更新する。
	UpdateLastLogin(ctx context.Context, id string) error

	// Stats はユーザーの投稿統計（参加プロジェクト数を含む）を返す。
	// 見つからない場合はnilを返す。
	Stats(ctx context.Context, id string) (*model.UserStats, error)
}

// PointRepository は観測ポイントの永続化インターフェース。
type PointRepository interface {
	// FindByID は指定IDのポイントを所有者情報付きで取得する。
	// 見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Point, error)

	// FindOwnerID は指定IDのポイントの所有者IDを返す。
	// 見つからない場合は空文字列を返す。
	FindOwnerID(ctx context.Context, id string) (string, error)

	// List はフィルタ条件に一致するポイント一覧（所有者情報付き）と総件数を返す。
	// created_at降順。件数クエリはデータクエリと同一の述語・引数を共有する。
	List(ctx context.Context, filter model.PointFilter) ([]*model.Point, int, error)

	// ListWithinBounds は境界矩形に厳密に包含されるポイントを返す。
	// 所有者情報のJOINもページネーションも行わない。created_at降順。
	ListWithinBounds(ctx context.Context, boundsWKT string) ([]*model.Point, error)

	// Create はポイントを作成し、同一トランザクションで所有者の投稿数カウンターを
	// 1増やす。geometryWKTはWKT形式のPOINT。作成後のGeometry（GeoJSON）と
	// CreatedAtがpointに書き戻される。
	Create(ctx context.Context, point *model.Point, geometryWKT string) error

	// Update はポイントを部分更新し、更新後のポイントを返す。
	// nilのフィールドは変更しない。所有権の検証は呼び出し側の責任。
	// 対象が存在しない場合はsql.ErrNoRowsを返す。
	Update(ctx context.Context, id string, upd model.PointUpdate) (*model.Point, error)

	// Delete はポイントを削除し、同一トランザクションで所有者の投稿数カウンターを
	// 1減らす。所有者IDはトランザクション内で行ロック付きで再取得する。
	// 対象が存在しない場合はsql.ErrNoRowsを返す。
	Delete(ctx context.Context, id string) error
}

// PolygonRepository は観測ポリゴンの永続化インターフェース。
type PolygonRepository interface {
	// FindByID は指定IDのポリゴンを所有者情報付きで取得する。
	// 見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Polygon, error)

	// FindOwnerID は指定IDのポリゴンの所有者IDを返す。
	// 見つからない場合は空文字列を返す。
	FindOwnerID(ctx context.Context, id string) (string, error)

	// List はフィルタ条件に一致するポリゴン一覧（所有者情報付き）と総件数を返す。
	// created_at降順。件数クエリはデータクエリと同一の述語・引数を共有する。
	List(ctx context.Context, filter model.PolygonFilter) ([]*model.Polygon, int, error)

	// ListWithinBounds は境界矩形と交差するポリゴンを返す。
	// ポイントの厳密包含と異なり、一部でも重なれば対象となる。
	// 所有者情報のJOINもページネーションも行わない。created_at降順。
	ListWithinBounds(ctx context.Context, boundsWKT string) ([]*model.Polygon, error)

	// Create はポリゴンを作成し、同一トランザクションで所有者の投稿数カウンターを
	// 1増やす。geometryWKTはWKT形式の閉じたPOLYGON。
	Create(ctx context.Context, polygon *model.Polygon, geometryWKT string) error

	// Update はポリゴンを部分更新し、更新後のポリゴンを返す。
	// nilのフィールドは変更しない。対象が存在しない場合はsql.ErrNoRowsを返す。
	Update(ctx context.Context, id string, upd model.PolygonUpdate) (*model.Polygon, error)

	// Delete はポリゴンを削除し、同一トランザクションで所有者の投稿数カウンターを
	// 1減らす。対象が存在しない場合はsql.ErrNoRowsを返す。
	Delete(ctx context.Context, id string) error
}

// ProjectRepository は収集プロジェクトの永続化インターフェース。
type ProjectRepository interface {
	// FindByID は指定IDのプロジェクトを作成者情報付きで取得する。
	// 見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Project, error)

	// FindCreatorID は指定IDのプロジェクトの作成者IDを返す。
	// 見つからない場合は空文字列を返す。
	FindCreatorID(ctx context.Context, id string) (string, error)

	// List はフィルタ条件に一致するプロジェクト一覧と総件数を返す。
	// 各行に作成者情報と導出集計値（参加者数・ポリゴン数・ポイント数）を含む。
	// created_at降順。
	List(ctx context.Context, filter model.ProjectFilter) ([]*model.Project, int, error)

	// Create はプロジェクトを作成する。CreatedAtはデータベース側のNOW()で設定され、
	// project.CreatedAtに書き戻される。
	Create(ctx context.Context, project *model.Project) error

	// Update はプロジェクトを部分更新し、更新後のプロジェクトを返す。
	// nilのフィールドは変更しない。対象が存在しない場合はsql.ErrNoRowsを返す。
	Update(ctx context.Context, id string, upd model.ProjectUpdate) (*model.Project, error)

	// DeleteByID は指定IDのプロジェクトを削除する。
	// 参加者はCASCADE削除、関連ポイント・ポリゴンのproject_idはNULLになる。
	// 対象が存在しない場合はsql.ErrNoRowsを返す。
	DeleteByID(ctx context.Context, id string) error

	// ListContributors はプロジェクトの参加者一覧をjoined_at降順で返す。
	ListContributors(ctx context.Context, projectID string) ([]model.Contributor, error)

	// IsContributor はユーザーがプロジェクトの参加者であるかを返す。
	IsContributor(ctx context.Context, projectID, userID string) (bool, error)

	// AddContributor はプロジェクトに参加者を追加する。
	// 存在確認と重複チェックは呼び出し側の責任。
	AddContributor(ctx context.Context, projectID, userID string) error

	// RemoveContributor はプロジェクトから参加者を外す。
	// 参加していない場合はsql.ErrNoRowsを返す。
	RemoveContributor(ctx context.Context, projectID, userID string) error
}
