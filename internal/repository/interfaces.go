// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/hitoshi/digestman/internal/model"
)

// SourceRepository はソースデータの永続化インターフェース。
// ソースの作成・削除は外部のCRUD層が行い、パイプラインは
// ステータスフィールド（取得日時・エラー情報）のみを更新する。
type SourceRepository interface {
	// FindByID は指定IDのソースを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Source, error)

	// ListActiveByUser はユーザーのアクティブなソース一覧を返す。
	ListActiveByUser(ctx context.Context, userID string) ([]*model.Source, error)

	// CountActiveByUser はユーザーのアクティブなソース数を返す。
	CountActiveByUser(ctx context.Context, userID string) (int, error)

	// UpdateFetchSuccess は取得成功を記録する。
	// last_fetched_atを更新し、consecutive_errorsを0にリセットする。
	UpdateFetchSuccess(ctx context.Context, id string, fetchedAt time.Time) error

	// UpdateFetchError は取得失敗を記録する。
	// consecutive_errorsをインクリメントし、last_errorを更新する。
	UpdateFetchError(ctx context.Context, id string, errorMessage string) error
}

// ArticleRepository は記事データの永続化インターフェース。
// (source_id, url) の一意性が重複排除の土台になる。
type ArticleRepository interface {
	// FindByID は指定IDの記事を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Article, error)

	// FindBySourceAndURL はsource_idとurlで記事を検索する。見つからない場合はnilを返す。
	FindBySourceAndURL(ctx context.Context, sourceID, url string) (*model.Article, error)

	// Create は新規記事を作成する。
	Create(ctx context.Context, article *model.Article) error

	// UpdateContent は記事の本文テキストを更新する。再取得後の差し替えに使う。
	UpdateContent(ctx context.Context, id, content string) error

	// MarkProcessed は記事の処理結果を記録する。
	// processingErrorが空なら処理完了、空でなければ失敗として記録し、
	// 失敗した記事は処理済みにならない。
	MarkProcessed(ctx context.Context, id string, processingError string) error
}

// SummaryRepository は要約データの永続化インターフェース。
type SummaryRepository interface {
	// FindByArticleID は記事IDで要約を検索する。見つからない場合はnilを返す。
	// 要約の存在が「処理済み」判定の正であり、重複したAI呼び出しを防ぐ。
	FindByArticleID(ctx context.Context, articleID string) (*model.Summary, error)

	// Create は要約を作成する。article_idの一意制約により記事あたり最大1件が保証される。
	Create(ctx context.Context, summary *model.Summary) error

	// ListRecentByUser はユーザーの時間窓内の要約を新しい順で返す。
	// summary→article→sourceをJOINし、アクティブなソースのみ対象とする。
	ListRecentByUser(ctx context.Context, userID string, since time.Time, limit int) ([]*model.Summary, error)
}

// TaskRepository は処理タスクの永続化インターフェース。
// タスクは永続化された状態機械であり、進捗はJSONBカラムに保存される。
type TaskRepository interface {
	// Create は新規タスクを作成する。
	Create(ctx context.Context, task *model.ProcessingTask) error

	// FindByID は指定IDのタスクを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.ProcessingTask, error)

	// ClaimPending は実行待ちタスクをrunningに遷移させて取得する。
	// 遷移と取得は単一文で行い、複数ワーカーが同じタスクを受け取らない。
	ClaimPending(ctx context.Context, limit int) ([]*model.ProcessingTask, error)

	// MarkRunning はpendingのタスクをrunningに遷移させ、開始時刻を記録する。
	// 遷移できた場合にtrueを返す。falseは別のワーカーが先に取得した印。
	MarkRunning(ctx context.Context, id string, startedAt time.Time) (bool, error)

	// UpdateProgress は進捗構造を書き戻す。ソース1件の完了ごとに呼ばれる。
	UpdateProgress(ctx context.Context, id string, progress *model.TaskProgress) error

	// Complete はタスクをcompletedに遷移させ、集計結果と完了時刻を記録する。
	Complete(ctx context.Context, id string, result *model.TaskResult, completedAt time.Time) error

	// Fail はタスクをfailedに遷移させ、エラーメッセージを記録する。
	Fail(ctx context.Context, id string, errorMessage string, completedAt time.Time) error

	// ForceFailActive は指定ユーザーのpending/runningタスクを全てfailedにする。
	// 新規タスク開始前の競合排除に使う。失敗させた件数を返す。
	ForceFailActive(ctx context.Context, userID, reason string) (int64, error)

	// FailStale は一定時間更新のないpending/runningタスクをfailedにする。
	// 永久にrunningのまま残るタスクを作らないための掃除。失敗させた件数を返す。
	FailStale(ctx context.Context, olderThan time.Time, reason string) (int64, error)
}

// DigestRepository はダイジェストの永続化インターフェース。
type DigestRepository interface {
	// FindByID は指定IDのダイジェストを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Digest, error)

	// ListByUser はユーザーのダイジェスト一覧を生成日の降順で返す。
	ListByUser(ctx context.Context, userID string, limit int) ([]*model.Digest, error)

	// ListEntries はダイジェストの内容をorder_position昇順で返す。
	ListEntries(ctx context.Context, digestID string) ([]model.DigestEntry, error)

	// DeleteByUserAndDate は指定の(ユーザー, 生成日)のダイジェストを削除する。
	// digest_itemsはCASCADE削除される。再生成時の置き換えに使う。
	DeleteByUserAndDate(ctx context.Context, userID string, date time.Time) error

	// CreateWithItems はダイジェストとエントリ一覧を同一トランザクションで作成する。
	CreateWithItems(ctx context.Context, digest *model.Digest, items []*model.DigestItem) error

	// MarkRead はダイジェストを既読にする。
	MarkRead(ctx context.Context, id string) error
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
