// Package geometry は座標表現とPostGISのジオメトリテキスト表現の相互変換を提供する。
//
// 入力規約は緯度が先（lat, lng）、PostGISの保存規約は経度が先（lng, lat）のため、
// エンコード時に軸順を入れ替える。デコード側はST_AsGeoJSONが出力する
// GeoJSON（経度が先）を無変換でAPIクライアントに転送するパススルーであり、
// エンコードと非対称になっている。これは既存APIの互換性として意図的に維持する挙動で、
// 逆方向の軸入れ替えを追加してはならない。
package geometry

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"

	"github.com/hitoshi/cropmap/internal/model"
)

// SRID はWGS84のSRID。保存時のST_GeomFromText呼び出しで使用する。
const SRID = 4326

// ValidateLatLng は座標の値域を検証する。
func ValidateLatLng(ll model.LatLng) error {
	if ll.Lat < -90 || ll.Lat > 90 {
		return model.NewBadRequestError("緯度は-90から90の範囲で指定してください。")
	}
	if ll.Lng < -180 || ll.Lng > 180 {
		return model.NewBadRequestError("経度は-180から180の範囲で指定してください。")
	}
	return nil
}

// ValidateBounds は境界矩形の両角の座標を検証する。
func ValidateBounds(b model.Bounds) error {
	if err := ValidateLatLng(b.NorthEast); err != nil {
		return err
	}
	return ValidateLatLng(b.SouthWest)
}

// EncodePoint は緯度経度の組からWKT POINT表現を生成する。
func EncodePoint(ll model.LatLng) string {
	return wkt.MarshalString(orb.Point{ll.Lng, ll.Lat})
}

// EncodePolygon は頂点列からWKT POLYGON表現を生成する。
// 先頭と末尾の頂点が一致しない場合は先頭の頂点を末尾に追加してリングを閉じる。
// 閉じる前の時点で異なる頂点が3つ未満の場合はエラーを返す。
// 同一直線上の点の重複排除や自己交差の検証は行わない（空間エンジンに委譲する）。
func EncodePolygon(vertices []model.LatLng) (string, error) {
	distinct := distinctVertexCount(vertices)
	if distinct < 3 {
		return "", model.NewInvalidRingError(distinct)
	}

	ring := make(orb.Ring, 0, len(vertices)+1)
	for _, v := range vertices {
		ring = append(ring, orb.Point{v.Lng, v.Lat})
	}
	if !ring.Closed() {
		ring = append(ring, ring[0])
	}

	return wkt.MarshalString(orb.Polygon{ring}), nil
}

// EncodeBounds は北東・南西の角からビューポート矩形の閉じたリング（5頂点）の
// WKT POLYGON表現を生成する。頂点順はSW→SE→NE→NW→SW。
func EncodeBounds(b model.Bounds) string {
	ring := orb.Ring{
		orb.Point{b.SouthWest.Lng, b.SouthWest.Lat},
		orb.Point{b.NorthEast.Lng, b.SouthWest.Lat},
		orb.Point{b.NorthEast.Lng, b.NorthEast.Lat},
		orb.Point{b.SouthWest.Lng, b.NorthEast.Lat},
		orb.Point{b.SouthWest.Lng, b.SouthWest.Lat},
	}
	return wkt.MarshalString(orb.Polygon{ring})
}

// Decode はST_AsGeoJSONが返したGeoJSONテキストを構造化して返す。
// 軸順の入れ替えは行わないパススルー（パッケージコメント参照）。
func Decode(raw json.RawMessage) (*geojson.Geometry, error) {
	geom, err := geojson.UnmarshalGeometry(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode geometry: %w", err)
	}
	return geom, nil
}

// distinctVertexCount はリングを閉じるための末尾の重複を無視した
// 異なる頂点の数を返す。
func distinctVertexCount(vertices []model.LatLng) int {
	seen := make(map[model.LatLng]struct{}, len(vertices))
	for _, v := range vertices {
		seen[v] = struct{}{}
	}
	return len(seen)
}
