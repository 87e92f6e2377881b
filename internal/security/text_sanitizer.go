// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizerService は観測メモやプロジェクト説明などの自由入力テキストを
// サニタイズし、XSS攻撃などのセキュリティリスクからユーザーを保護する。
// これらのフィールドはプレーンテキストとして扱うため、bluemondayの
// StrictPolicyですべてのHTMLタグを除去する。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService は自由入力テキストのサニタイズ機能のインターフェースを定義する。
// 観測ポイント・ポリゴンのメモ、プロジェクトの名前・説明の保存前に使用される。
type TextSanitizerService interface {
	// Sanitize はテキストからすべてのHTMLタグを除去して返す。
	// タグの中身のテキストは保持される（例: "<b>小麦</b>" → "小麦"）。
	// 前後の空白は除去される。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// textSanitizer はTextSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicyはいかなるタグも属性も許可しないため、
// script, iframe, style および全てのon*イベント属性は自動的に除去される。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はテキストからすべてのHTMLタグを除去して返す。
func (s *textSanitizer) Sanitize(raw string) string {
	return strings.TrimSpace(s.policy.Sanitize(raw))
}
