// Package model はドメインモデルを定義する。
package model

import (
	"encoding/json"
	"time"
)

// Point は地図上の単一地点の作物観測を表す。
// Geometry はPostGISのST_AsGeoJSONが返すGeoJSONオブジェクトをそのまま保持する
// （経度が先の interchange 形式。APIレスポンスに無変換で転送する）。
type Point struct {
	ID        string
	UserID    string // 作成者。作成後は不変で、更新・削除の所有権判定に使う。
	CropType  string
	Notes     string
	ProjectID *string
	Images    []string
	Geometry  json.RawMessage
	CreatedAt time.Time
	User      *OwnerInfo // 一覧・詳細取得時にJOINで埋める。作成直後はnil。
}

// OwnerInfo はリソースにJOINして返す所有者の公開情報。
type OwnerInfo struct {
	FirstName string
	LastName  string
	Email     string
}

// PointFilter はポイント一覧のフィルタ条件。未指定フィールドは条件に含めない。
type PointFilter struct {
	CropType  string
	ProjectID string
	UserID    string
	Page      int
	Limit     int
}

// PointUpdate はポイントの部分更新リクエストを表す。
// nilのフィールドは変更せず、既存の値を維持する。
type PointUpdate struct {
	CropType *string
	Notes    *string
	Images   *[]string
}

// IsEmpty は更新対象のフィールドが1つも指定されていないことを返す。
func (u *PointUpdate) IsEmpty() bool {
	return u.CropType == nil && u.Notes == nil && u.Images == nil
}

// LatLng は緯度経度の組（入力規約: 緯度が先）。
type LatLng struct {
	Lat float64
	Lng float64
}
