// Package model はドメインモデルを定義する。
package model

import "time"

// ProjectStatus はプロジェクトの状態を表す。
// 状態遷移グラフは意図的に持たない。権限さえあればどの状態からどの状態にも変更できる。
type ProjectStatus string

const (
	// ProjectStatusActive は進行中のプロジェクト。
	ProjectStatusActive ProjectStatus = "active"
	// ProjectStatusCompleted は完了したプロジェクト。
	ProjectStatusCompleted ProjectStatus = "completed"
	// ProjectStatusCancelled は中止されたプロジェクト。
	ProjectStatusCancelled ProjectStatus = "cancelled"
)

// IsValid はステータスが定義済みのいずれかであることを検証する。
func (s ProjectStatus) IsValid() bool {
	return s == ProjectStatusActive || s == ProjectStatusCompleted || s == ProjectStatusCancelled
}

// Project は観測データを束ねる収集プロジェクトを表す。
// Stats は保存せず、取得時に集計する。
type Project struct {
	ID          string
	Name        string
	Description string
	StartDate   *time.Time
	EndDate     *time.Time
	TargetArea  *float64
	Status      ProjectStatus
	CreatedBy   string // 作成者。作成後は不変で、更新・削除の権限判定に使う。
	CreatedAt   time.Time
	Creator     *OwnerInfo
	Stats       *ProjectStats
}

// ProjectStats はプロジェクトの導出集計値。常に読み取り時に計算する。
type ProjectStats struct {
	ContributorCount int
	PolygonCount     int
	PointCount       int
}

// Contributor はプロジェクト参加者（User との多対多）を表す。
type Contributor struct {
	UserID    string
	Email     string
	FirstName string
	LastName  string
	JoinedAt  time.Time
}

// ProjectFilter はプロジェクト一覧のフィルタ条件。未指定フィールドは条件に含めない。
type ProjectFilter struct {
	Status string
	Search string // name / description の部分一致（大文字小文字無視）
	Page   int
	Limit  int
}

// ProjectUpdate はプロジェクトの部分更新リクエストを表す。
// nilのフィールドは変更せず、既存の値を維持する。
type ProjectUpdate struct {
	Name        *string
	Description *string
	StartDate   *time.Time
	EndDate     *time.Time
	TargetArea  *float64
	Status      *string
}

// IsEmpty は更新対象のフィールドが1つも指定されていないことを返す。
func (u *ProjectUpdate) IsEmpty() bool {
	return u.Name == nil && u.Description == nil && u.StartDate == nil &&
		u.EndDate == nil && u.TargetArea == nil && u.Status == nil
}
