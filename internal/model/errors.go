// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, permission, resource, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード。ハンドラー層でHTTPステータスへ一元的にマッピングされる。
const (
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeForbidden      = "FORBIDDEN"
	ErrCodeConflict       = "CONFLICT"
	ErrCodeBadRequest     = "BAD_REQUEST"
	ErrCodeUnauthorized   = "UNAUTHORIZED"
	ErrCodeInvalidRing    = "INVALID_RING"
	ErrCodeNoFields       = "NO_FIELDS"
	ErrCodeDuplicateEmail = "DUPLICATE_EMAIL"
	ErrCodeSelfDelete     = "SELF_DELETE"
)

// NewNotFoundError はリソース未検出エラーを生成する。
func NewNotFoundError(resource string) *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  fmt.Sprintf("指定された%sが見つかりません。", resource),
		Category: "resource",
		Action:   "IDを確認してください。",
	}
}

// NewForbiddenError は所有権・ロールチェック失敗のエラーを生成する。
func NewForbiddenError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  message,
		Category: "permission",
		Action:   "自分が作成したリソースのみ変更できます。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewInvalidTokenError はトークン検証失敗のエラーを生成する。
// 期限切れ・署名不正・形式不正は区別して返さない。
func NewInvalidTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "トークンが無効か期限切れです。",
		Category: "auth",
		Action:   "再度ログインしてください。",
	}
}

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
// メールアドレス・パスワードのどちらが誤っているかは区別して返さない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewBadRequestError は不正な入力のエラーを生成する。
func NewBadRequestError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeBadRequest,
		Message:  message,
		Category: "validation",
		Action:   "リクエスト内容を確認してください。",
	}
}

// NewNoFieldsError は更新対象フィールドが1つもないエラーを生成する。
func NewNoFieldsError() *APIError {
	return &APIError{
		Code:     ErrCodeNoFields,
		Message:  "更新するフィールドが指定されていません。",
		Category: "validation",
		Action:   "更新したいフィールドを1つ以上指定してください。",
	}
}

// NewInvalidRingError は頂点数が不足したポリゴンのエラーを生成する。
func NewInvalidRingError(count int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRing,
		Message:  fmt.Sprintf("ポリゴンには3つ以上の異なる頂点が必要です（指定: %d）。", count),
		Category: "validation",
		Action:   "頂点を3つ以上指定してください。",
	}
}

// NewDuplicateEmailError はメールアドレス重複エラーを生成する。
func NewDuplicateEmailError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateEmail,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "validation",
		Action:   "別のメールアドレスを使用するか、ログインしてください。",
	}
}

// NewDuplicateContributorError は参加者重複エラーを生成する。
func NewDuplicateContributorError() *APIError {
	return &APIError{
		Code:     ErrCodeConflict,
		Message:  "このユーザーは既にプロジェクトの参加者です。",
		Category: "resource",
		Action:   "参加者一覧を確認してください。",
	}
}

// NewSelfDeleteError は自アカウント削除禁止のエラーを生成する。
func NewSelfDeleteError() *APIError {
	return &APIError{
		Code:     ErrCodeSelfDelete,
		Message:  "自分自身のアカウントは削除できません。",
		Category: "validation",
		Action:   "他の管理者に削除を依頼してください。",
	}
}
