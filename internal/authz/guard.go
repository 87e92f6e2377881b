// Package authz はリソース変更の所有権チェックを提供する。
package authz

import "github.com/hitoshi/cropmap/internal/model"

// CanMutate はリクエスト元がリソースを変更できるかを判定する。
// 所有者本人、または管理者ロールの場合のみ許可する。
// ポイント・ポリゴンでは作成者ID、プロジェクトでは作成者IDを
// ownerIDとして同一のルールを適用する。
func CanMutate(requesterID string, requesterRole model.Role, ownerID string) bool {
	return requesterID == ownerID || requesterRole == model.RoleAdmin
}

// CanChangeRole はroleフィールドの変更を反映してよいかを判定する。
// 管理者のみ許可する。非管理者の指定はエラーにせず黙って無視するのが
// 呼び出し側の規約（user.Service.Update参照）。
func CanChangeRole(requesterRole model.Role) bool {
	return requesterRole == model.RoleAdmin
}
