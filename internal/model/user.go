// Package model はドメインモデルを定義する。
package model

import "time"

// Role はユーザーの権限ロールを表す。
type Role string

const (
	// RoleUser は一般ユーザーロール。
	RoleUser Role = "user"
	// RoleAdmin は管理者ロール。所有権チェックをバイパスできる唯一のロール。
	RoleAdmin Role = "admin"
)

// IsValid はロールが定義済みのいずれかであることを検証する。
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User はサービス利用ユーザーを表す。
// PasswordHashはAPIレスポンスに含めてはならない。
type User struct {
	ID           string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Role         Role
	// PointsContributed / PolygonesContributed は投稿数カウンター。
	// ポイント/ポリゴンの作成・削除の副作用としてのみ増減し、0未満にはならない。
	PointsContributed    int
	PolygonesContributed int
	CreatedAt            time.Time
	LastLogin            *time.Time
}

// UserStats はユーザーの投稿統計を表す。
type UserStats struct {
	UserID               string
	Email                string
	FirstName            string
	LastName             string
	PointsContributed    int
	PolygonesContributed int
	ProjectsCount        int
}

// UserFilter はユーザー一覧のフィルタ条件。未指定フィールドは条件に含めない。
type UserFilter struct {
	Role   string
	Search string // email / first_name / last_name の部分一致（大文字小文字無視）
	Page   int
	Limit  int
}

// UserUpdate はユーザーの部分更新リクエストを表す。
// nilのフィールドは変更せず、既存の値を維持する。
type UserUpdate struct {
	FirstName *string
	LastName  *string
	Email     *string
	Role      *string // 管理者のみ反映される。非管理者の指定は黙って無視する。
	Password  *string
}

// IsEmpty は更新対象のフィールドが1つも指定されていないことを返す。
// roleOnlyでも「認識されたフィールドなし」とは扱わない点に注意
// （非管理者のrole指定は成功レスポンスのままroleを据え置く）。
func (u *UserUpdate) IsEmpty() bool {
	return u.FirstName == nil && u.LastName == nil && u.Email == nil &&
		u.Role == nil && u.Password == nil
}
