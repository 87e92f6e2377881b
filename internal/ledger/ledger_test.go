package ledger

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
)

// --- モック ---

type recordingExecer struct {
	queries []string
	args    [][]any
	err     error
}

func (r *recordingExecer) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	r.queries = append(r.queries, query)
	r.args = append(r.args, args)
	return nil, r.err
}

// --- テスト ---

// 増加側のクエリがGREATESTを含まないことを検証（上限なし）
func TestLedger_Increments(t *testing.T) {
	tests := []struct {
		name   string
		record func(l *Ledger, ex Execer) error
		column string
	}{
		{
			name: "ポイント作成",
			record: func(l *Ledger, ex Execer) error {
				return l.RecordPointCreated(context.Background(), ex, "user-1")
			},
			column: "points_contributed",
		},
		{
			name: "ポリゴン作成",
			record: func(l *Ledger, ex Execer) error {
				return l.RecordPolygonCreated(context.Background(), ex, "user-1")
			},
			column: "polygones_contributed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := &recordingExecer{}
			if err := tt.record(New(), ex); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(ex.queries) != 1 {
				t.Fatalf("query count = %d, want 1", len(ex.queries))
			}
			q := ex.queries[0]
			if !strings.Contains(q, tt.column+" = "+tt.column+" + 1") {
				t.Errorf("query should increment %s: %q", tt.column, q)
			}
			if strings.Contains(q, "GREATEST") {
				t.Errorf("increment should not be floored: %q", q)
			}
			if ex.args[0][0] != "user-1" {
				t.Errorf("args = %v, want [user-1]", ex.args[0])
			}
		})
	}
}

// 減少側のクエリがGREATEST(0, ...)で0に床置きされることを検証
func TestLedger_DecrementsAreFlooredAtZero(t *testing.T) {
	tests := []struct {
		name   string
		record func(l *Ledger, ex Execer) error
		column string
	}{
		{
			name: "ポイント削除",
			record: func(l *Ledger, ex Execer) error {
				return l.RecordPointDeleted(context.Background(), ex, "user-1")
			},
			column: "points_contributed",
		},
		{
			name: "ポリゴン削除",
			record: func(l *Ledger, ex Execer) error {
				return l.RecordPolygonDeleted(context.Background(), ex, "user-1")
			},
			column: "polygones_contributed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := &recordingExecer{}
			if err := tt.record(New(), ex); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			q := ex.queries[0]
			want := "GREATEST(0, " + tt.column + " - 1)"
			if !strings.Contains(q, want) {
				t.Errorf("query should floor at zero with %q: %q", want, q)
			}
		})
	}
}

// Execer失敗時にエラーがラップされて返ることを検証
func TestLedger_PropagatesExecError(t *testing.T) {
	ex := &recordingExecer{err: errors.New("connection reset")}

	err := New().RecordPointCreated(context.Background(), ex, "user-1")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "failed to increment points counter") {
		t.Errorf("error = %v", err)
	}
}
