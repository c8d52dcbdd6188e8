// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/jovenes/internal/model"
)

// ContentRepository は日別コンテンツ（daily_content）の永続化インターフェース。
type ContentRepository interface {
	// FindByKey は (week, day) のコンテンツを取得する。行が存在しない場合はnilを返す。
	FindByKey(ctx context.Context, week, day int) (*model.ContentRecord, error)

	// Upsert はコンテンツを (week, day) をキーとして挿入または全項目置換する。
	// 部分更新は行わず、常に全カラムを書き込む。
	Upsert(ctx context.Context, record *model.ContentRecord) error

	// ListStoredNames は全レコードの files と evidence から参照されている保存名を返す。
	ListStoredNames(ctx context.Context) ([]string, error)
}

// SessionRepository は管理者セッションの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteExpired は期限切れのセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}
