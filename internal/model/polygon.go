// Package model はドメインモデルを定義する。
package model

import (
	"encoding/json"
	"time"
)

// Polygon は地図上の閉じた領域の作物観測を表す。
// テーブル名・カウンター名の "polygones" 綴りは既存スキーマをそのまま踏襲している。
type Polygon struct {
	ID        string
	UserID    string
	CropType  string
	Area      float64
	Perimeter float64
	Notes     string
	ProjectID *string
	Images    []string
	Geometry  json.RawMessage
	CreatedAt time.Time
	User      *OwnerInfo
}

// PolygonFilter はポリゴン一覧のフィルタ条件。未指定フィールドは条件に含めない。
// MinArea/MaxAreaは両端を含む面積レンジ。
type PolygonFilter struct {
	CropType  string
	ProjectID string
	UserID    string
	MinArea   *float64
	MaxArea   *float64
	Page      int
	Limit     int
}

// PolygonUpdate はポリゴンの部分更新リクエストを表す。
// nilのフィールドは変更せず、既存の値を維持する。
type PolygonUpdate struct {
	CropType *string
	Notes    *string
	Images   *[]string
}

// IsEmpty は更新対象のフィールドが1つも指定されていないことを返す。
func (u *PolygonUpdate) IsEmpty() bool {
	return u.CropType == nil && u.Notes == nil && u.Images == nil
}

// Bounds は地図ビューポートの矩形領域を北東・南西の角で表す。
type Bounds struct {
	NorthEast LatLng
	SouthWest LatLng
}
