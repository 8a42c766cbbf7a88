// Package cleanup は滞留タスクの後始末ジョブを提供する。
// ワーカーの異常終了などでrunningのまま残ったタスクを定期的に
// failedへ遷移させ、永久に実行中のタスクを作らないことを保証する。
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/digestman/internal/repository"
)

// staleTaskReason は滞留タスクを失敗させる際の理由。
const staleTaskReason = "タスクが一定時間更新されなかったため強制的に失敗扱いにしました"

// Janitor は滞留タスクの定期的な後始末を行う。
// 冪等なジョブとして設計されており、対象がない場合も正常終了する。
type Janitor struct {
	taskRepo   repository.TaskRepository
	logger     *slog.Logger
	staleAfter time.Duration
}

// NewJanitor は新しいJanitorを生成する。
// staleAfterが0以下の場合はデフォルト値30分を使用する。
func NewJanitor(taskRepo repository.TaskRepository, logger *slog.Logger, staleAfter time.Duration) *Janitor {
	if staleAfter <= 0 {
		staleAfter = 30 * time.Minute
	}
	return &Janitor{
		taskRepo:   taskRepo,
		logger:     logger,
		staleAfter: staleAfter,
	}
}

// Run は更新が途絶えたpending/runningタスクをfailedに遷移させる。
func (j *Janitor) Run(ctx context.Context) error {
	start := time.Now()
	olderThan := start.Add(-j.staleAfter)

	failed, err := j.taskRepo.FailStale(ctx, olderThan, staleTaskReason)
	if err != nil {
		j.logger.Error("滞留タスクの後始末に失敗しました",
			slog.String("error", err.Error()),
		)
		return err
	}

	if failed > 0 {
		j.logger.Info("滞留タスクを失敗扱いにしました",
			slog.Int64("failed_count", failed),
			slog.Duration("stale_after", j.staleAfter),
			slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
		)
	}

	return nil
}

// Start は指定間隔のティッカーでジョブを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *Janitor) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("タスク後始末ジョブを開始しました",
		slog.Duration("interval", interval),
		slog.Duration("stale_after", j.staleAfter),
	)

	// 起動直後に1回実行
	if err := j.Run(ctx); err != nil {
		j.logger.Error("タスク後始末ジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("タスク後始末ジョブを停止しました")
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("タスク後始末ジョブの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
