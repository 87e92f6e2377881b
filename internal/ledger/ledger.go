// Package ledger はユーザーごとの投稿数カウンターの増減を提供する。
//
// カウンター更新は対になる行の挿入・削除と同一トランザクション内で
// 実行されることを前提とする。呼び出し側（各リポジトリ）がトランザクションを
// 張り、そのトランザクションをExecerとして渡す。トランザクションが
// アボートした場合は行の変更ごとロールバックされ、カウンターの不整合は
// 発生しない。
package ledger

import (
	"context"
	"database/sql"
	"fmt"
)

// Execer はカウンター更新の実行先。*sql.Txおよび*sql.DBが満たす。
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Ledger は投稿数カウンターの操作を提供する。
// ポイントとポリゴンのカウンターは独立しており、互いに影響しない。
type Ledger struct{}

// New はLedgerを生成する。
func New() *Ledger {
	return &Ledger{}
}

// RecordPointCreated はポイント作成時にカウンターを1増やす。
func (l *Ledger) RecordPointCreated(ctx context.Context, ex Execer, userID string) error {
	_, err := ex.ExecContext(ctx,
		`UPDATE users SET points_contributed = points_contributed + 1 WHERE id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to increment points counter: %w", err)
	}
	return nil
}

// RecordPointDeleted はポイント削除時にカウンターを1減らす。0未満にはならない。
func (l *Ledger) RecordPointDeleted(ctx context.Context, ex Execer, userID string) error {
	_, err := ex.ExecContext(ctx,
		`UPDATE users SET points_contributed = GREATEST(0, points_contributed - 1) WHERE id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to decrement points counter: %w", err)
	}
	return nil
}

// RecordPolygonCreated はポリゴン作成時にカウンターを1増やす。
func (l *Ledger) RecordPolygonCreated(ctx context.Context, ex Execer, userID string) error {
	_, err := ex.ExecContext(ctx,
		`UPDATE users SET polygones_contributed = polygones_contributed + 1 WHERE id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to increment polygons counter: %w", err)
	}
	return nil
}

// RecordPolygonDeleted はポリゴン削除時にカウンターを1減らす。0未満にはならない。
func (l *Ledger) RecordPolygonDeleted(ctx context.Context, ex Execer, userID string) error {
	_, err := ex.ExecContext(ctx,
		`UPDATE users SET polygones_contributed = GREATEST(0, polygones_contributed - 1) WHERE id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to decrement polygons counter: %w", err)
	}
	return nil
}
