package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hitoshi/digestman/internal/model"
)

// PostgresTaskRepo はPostgreSQLを使用した処理タスクリポジトリ。
// progressとresultはJSONBカラムとして保存する。
type PostgresTaskRepo struct {
	db *sql.DB
}

// NewPostgresTaskRepo はPostgresTaskRepoを生成する。
func NewPostgresTaskRepo(db *sql.DB) *PostgresTaskRepo {
	return &PostgresTaskRepo{db: db}
}

// Create は新規タスクを作成する。
func (r *PostgresTaskRepo) Create(ctx context.Context, task *model.ProcessingTask) error {
	progressJSON, err := json.Marshal(task.Progress)
	if err != nil {
		return fmt.Errorf("進捗のシリアライズに失敗しました: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO processing_tasks (id, user_id, status, time_range, progress,
		                               error_message, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		task.ID, task.UserID, string(task.Status), string(task.TimeRange),
		progressJSON, nullString(task.ErrorMessage), task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("タスクの作成に失敗しました: %w", err)
	}
	return nil
}

// FindByID は指定IDのタスクを取得する。見つからない場合はnilを返す。
func (r *PostgresTaskRepo) FindByID(ctx context.Context, id string) (*model.ProcessingTask, error) {
	task, err := scanTask(r.db.QueryRowContext(ctx,
		`SELECT id, user_id, status, time_range, progress, result, error_message,
		        started_at, completed_at, created_at, updated_at
		 FROM processing_tasks WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("タスクの取得に失敗しました: %w", err)
	}
	return task, nil
}

// ClaimPending は実行待ちタスクをrunningに遷移させて取得する。
// FOR UPDATE SKIP LOCKEDを含む単一のUPDATE文で遷移まで行うため、
// 複数ワーカーのレプリカが同じタスクを受け取ることはない。
func (r *PostgresTaskRepo) ClaimPending(ctx context.Context, limit int) ([]*model.ProcessingTask, error) {
	rows, err := r.db.QueryContext(ctx,
		`UPDATE processing_tasks
		 SET status = 'running', started_at = now(), updated_at = now()
		 WHERE id IN (
		     SELECT id FROM processing_tasks
		     WHERE status = 'pending'
		     ORDER BY created_at ASC
		     LIMIT $1
		     FOR UPDATE SKIP LOCKED
		 )
		 RETURNING id, user_id, status, time_range, progress, result, error_message,
		           started_at, completed_at, created_at, updated_at`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("実行待ちタスクの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var tasks []*model.ProcessingTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("タスク行の読み取りに失敗しました: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("実行待ちタスクの走査に失敗しました: %w", err)
	}

	return tasks, nil
}

// MarkRunning はpendingのタスクをrunningに遷移させ、開始時刻を記録する。
// 更新行数で遷移の成否を返す。0行は別のワーカーが先に取得した印。
func (r *PostgresTaskRepo) MarkRunning(ctx context.Context, id string, startedAt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE processing_tasks
		 SET status = 'running', started_at = $2, updated_at = now()
		 WHERE id = $1 AND status = 'pending'`,
		id, startedAt,
	)
	if err != nil {
		return false, fmt.Errorf("タスクの実行開始記録に失敗しました: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("実行開始の更新行数の取得に失敗しました: %w", err)
	}
	return affected > 0, nil
}

// UpdateProgress は進捗構造を書き戻す。ソース1件の完了ごとに呼ばれる。
func (r *PostgresTaskRepo) UpdateProgress(ctx context.Context, id string, progress *model.TaskProgress) error {
	progressJSON, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("進捗のシリアライズに失敗しました: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE processing_tasks SET progress = $2, updated_at = now() WHERE id = $1`,
		id, progressJSON,
	)
	if err != nil {
		return fmt.Errorf("進捗の更新に失敗しました: %w", err)
	}
	return nil
}

// Complete はタスクをcompletedに遷移させ、集計結果と完了時刻を記録する。
// 終端状態のタスクに対しては何もしない。
func (r *PostgresTaskRepo) Complete(ctx context.Context, id string, result *model.TaskResult, completedAt time.Time) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("結果のシリアライズに失敗しました: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE processing_tasks
		 SET status = 'completed', result = $2, completed_at = $3, updated_at = now()
		 WHERE id = $1 AND status IN ('pending', 'running')`,
		id, resultJSON, completedAt,
	)
	if err != nil {
		return fmt.Errorf("タスクの完了記録に失敗しました: %w", err)
	}
	return nil
}

// Fail はタスクをfailedに遷移させ、エラーメッセージを記録する。
// 終端状態のタスクに対しては何もしない。
func (r *PostgresTaskRepo) Fail(ctx context.Context, id string, errorMessage string, completedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE processing_tasks
		 SET status = 'failed', error_message = $2, completed_at = $3, updated_at = now()
		 WHERE id = $1 AND status IN ('pending', 'running')`,
		id, errorMessage, completedAt,
	)
	if err != nil {
		return fmt.Errorf("タスクの失敗記録に失敗しました: %w", err)
	}
	return nil
}

// ForceFailActive は指定ユーザーのpending/runningタスクを全てfailedにする。
// 新規タスク開始前の競合排除に使う。失敗させた件数を返す。
func (r *PostgresTaskRepo) ForceFailActive(ctx context.Context, userID, reason string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE processing_tasks
		 SET status = 'failed', error_message = $2, completed_at = now(), updated_at = now()
		 WHERE user_id = $1 AND status IN ('pending', 'running')`,
		userID, reason,
	)
	if err != nil {
		return 0, fmt.Errorf("既存タスクの強制終了に失敗しました: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("強制終了件数の取得に失敗しました: %w", err)
	}
	return affected, nil
}

// FailStale は一定時間更新のないpending/runningタスクをfailedにする。
// 永久にrunningのまま残るタスクを作らないための掃除。失敗させた件数を返す。
func (r *PostgresTaskRepo) FailStale(ctx context.Context, olderThan time.Time, reason string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE processing_tasks
		 SET status = 'failed', error_message = $2, completed_at = now(), updated_at = now()
		 WHERE status IN ('pending', 'running') AND updated_at < $1`,
		olderThan, reason,
	)
	if err != nil {
		return 0, fmt.Errorf("滞留タスクの掃除に失敗しました: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("掃除件数の取得に失敗しました: %w", err)
	}
	return affected, nil
}

// rowScanner は*sql.Rowと*sql.Rowsの共通Scanインターフェース。
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (*model.ProcessingTask, error) {
	task := &model.ProcessingTask{}
	var status, timeRange string
	var progressJSON []byte
	var resultJSON []byte
	var errorMessage sql.NullString
	var startedAt, completedAt sql.NullTime

	err := row.Scan(
		&task.ID, &task.UserID, &status, &timeRange, &progressJSON, &resultJSON,
		&errorMessage, &startedAt, &completedAt, &task.CreatedAt, &task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	task.Status = model.TaskStatus(status)
	task.TimeRange = model.TimeRange(timeRange)
	task.ErrorMessage = nullStringValue(errorMessage)
	if startedAt.Valid {
		task.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		task.CompletedAt = &completedAt.Time
	}

	if len(progressJSON) > 0 {
		if err := json.Unmarshal(progressJSON, &task.Progress); err != nil {
			return nil, fmt.Errorf("進捗のデシリアライズに失敗しました: %w", err)
		}
	}
	if len(resultJSON) > 0 {
		result := &model.TaskResult{}
		if err := json.Unmarshal(resultJSON, result); err != nil {
			return nil, fmt.Errorf("結果のデシリアライズに失敗しました: %w", err)
		}
		task.Result = result
	}

	return task, nil
}

// compile-time interface check
var _ TaskRepository = (*PostgresTaskRepo)(nil)
