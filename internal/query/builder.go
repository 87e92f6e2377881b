// Package query は位置パラメータ付きSQL述語の動的組み立てを提供する。
//
// 4つのリソース（ポイント・ポリゴン・プロジェクト・ユーザー）の一覧取得で
// 共通のフィルタ組み立てを行う。データ取得クエリと件数取得クエリは
// 同一の述語文字列と同一の引数スライスを共有するため、
// パラメータ番号のずれが構造的に発生しない。
package query

import (
	"fmt"
	"strings"
)

// デフォルトのページサイズ。ポイント・ポリゴンは50件、プロジェクト・ユーザーは10件。
const (
	DefaultGeometryLimit = 50
	DefaultListLimit     = 10
)

// Builder はWHERE述語を宣言順に組み立てる。
// 各フィルタは独立に合成可能で、未指定フィールドは呼び出し側が追加しないことで
// 述語から完全に除外される（NULL比較は発生しない）。
type Builder struct {
	conds []string
	args  []any
}

// NewBuilder は空のBuilderを生成する。
func NewBuilder() *Builder {
	return &Builder{}
}

// Equal は等値条件を追加する。
func (b *Builder) Equal(column string, value any) {
	b.conds = append(b.conds, fmt.Sprintf("%s = $%d", column, b.next()))
	b.args = append(b.args, value)
}

// GreaterOrEqual は下限（両端含む）条件を追加する。
func (b *Builder) GreaterOrEqual(column string, value any) {
	b.conds = append(b.conds, fmt.Sprintf("%s >= $%d", column, b.next()))
	b.args = append(b.args, value)
}

// LessOrEqual は上限（両端含む）条件を追加する。
func (b *Builder) LessOrEqual(column string, value any) {
	b.conds = append(b.conds, fmt.Sprintf("%s <= $%d", column, b.next()))
	b.args = append(b.args, value)
}

// Search は複数カラムに対する大文字小文字を区別しない部分一致条件を追加する。
// 1つのパラメータ位置を全カラムのILIKEで再利用するため、引数は1つだけ増える。
func (b *Builder) Search(term string, columns ...string) {
	n := b.next()
	alts := make([]string, len(columns))
	for i, col := range columns {
		alts[i] = fmt.Sprintf("%s ILIKE $%d", col, n)
	}
	b.conds = append(b.conds, "("+strings.Join(alts, " OR ")+")")
	b.args = append(b.args, "%"+term+"%")
}

// Within はジオメトリの厳密な包含条件を追加する（ポイント用）。
// 矩形の境界上にあるジオメトリは空間エンジンの包含定義に従い除外される。
func (b *Builder) Within(column, boundsWKT string) {
	b.conds = append(b.conds, fmt.Sprintf("ST_Within(%s, ST_GeomFromText($%d, 4326))", column, b.next()))
	b.args = append(b.args, boundsWKT)
}

// Intersects はジオメトリの交差条件を追加する（ポリゴン用）。
// ビューポートに一部でも重なるポリゴンを対象とする。ポイントの包含と
// 意図的に非対称な判定を使う。
func (b *Builder) Intersects(column, boundsWKT string) {
	b.conds = append(b.conds, fmt.Sprintf("ST_Intersects(%s, ST_GeomFromText($%d, 4326))", column, b.next()))
	b.args = append(b.args, boundsWKT)
}

// Predicate は "WHERE 1=1 AND ..." 形式の述語文字列を返す。
// 条件が1つもない場合は "WHERE 1=1" のみを返す。
func (b *Builder) Predicate() string {
	var sb strings.Builder
	sb.WriteString("WHERE 1=1")
	for _, c := range b.conds {
		sb.WriteString(" AND ")
		sb.WriteString(c)
	}
	return sb.String()
}

// Args は述語に対応する引数スライスを返す。
func (b *Builder) Args() []any {
	return b.args
}

// SelectQuery はデータ取得クエリと引数を返す。
// baseはSELECT ... FROM ...（WHEREの直前まで）、tailはGROUP BYやORDER BYなど
// 述語の後に置く句。ページネーションは1始まりのページ番号から
// LIMIT/OFFSETを計算して末尾に追加する。
func (b *Builder) SelectQuery(base, tail string, page, limit int) (string, []any) {
	offset := (page - 1) * limit

	n := len(b.args)
	q := fmt.Sprintf("%s %s %s LIMIT $%d OFFSET $%d", base, b.Predicate(), tail, n+1, n+2)

	args := make([]any, 0, n+2)
	args = append(args, b.args...)
	args = append(args, limit, offset)
	return q, args
}

// CountQuery は件数取得クエリと引数を返す。
// データ取得クエリと同一の述語・同一の引数を共有し、ページネーションと
// 並び順は含まない。
func (b *Builder) CountQuery(base string) (string, []any) {
	return base + " " + b.Predicate(), b.args
}

// next は次のパラメータ位置（1始まり）を返す。
func (b *Builder) next() int {
	return len(b.args) + 1
}

// NormalizePage はページ番号とページサイズをデフォルト値で正規化する。
// page < 1 は1に、limit < 1 はdefaultLimitに丸める。
func NormalizePage(page, limit, defaultLimit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultLimit
	}
	return page, limit
}

// TotalPages は総件数とページサイズから総ページ数（切り上げ）を計算する。
func TotalPages(total, limit int) int {
	if limit < 1 {
		return 0
	}
	return (total + limit - 1) / limit
}
