package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/digestman/internal/repository"
)

// TaskExecutor はタスク実行のインターフェース。
type TaskExecutor interface {
	// Execute は指定タスクを実行する。終端状態のタスクに対しては何もしない。
	Execute(ctx context.Context, taskID string) error
}

// Scheduler は実行待ちタスクのポーリングと並列制御を行う。
// ティッカーで実行待ちタスクを取得し、semaphoreパターンで
// 最大並列数を制御しながらオーケストレータに渡す。
type Scheduler struct {
	taskRepo       repository.TaskRepository
	executor       TaskExecutor
	logger         *slog.Logger
	maxConcurrency int
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値5を使用する。
func NewScheduler(
	taskRepo repository.TaskRepository,
	executor TaskExecutor,
	logger *slog.Logger,
	maxConcurrency int,
) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = 5
	}
	return &Scheduler{
		taskRepo:       taskRepo,
		executor:       executor,
		logger:         logger,
		maxConcurrency: maxConcurrency,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("タスクスケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", s.maxConcurrency),
	)

	// 起動直後に1回実行
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("タスクサイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("タスクスケジューラを停止しました")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("タスクサイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は実行待ちタスクを1回取得し、並列で実行する。
// semaphoreパターンで最大並列数を制御する。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()

	// 実行待ちタスクをrunningへ遷移させつつ排他的に取得する
	tasks, err := s.taskRepo.ClaimPending(ctx, s.maxConcurrency)
	if err != nil {
		return err
	}

	if len(tasks) == 0 {
		return nil
	}

	s.logger.Info("タスクサイクルを開始します",
		slog.Int("task_count", len(tasks)),
	)

	// semaphoreパターンで並列数を制御
	sem := make(chan struct{}, s.maxConcurrency)
	var wg sync.WaitGroup

	for _, task := range tasks {
		wg.Add(1)
		sem <- struct{}{} // semaphore取得（ブロック）

		go func(taskID string) {
			defer wg.Done()
			defer func() { <-sem }() // semaphore解放

			if err := s.executor.Execute(ctx, taskID); err != nil {
				s.logger.Error("タスクの実行に失敗しました",
					slog.String("task_id", taskID),
					slog.String("error", err.Error()),
				)
			}
		}(task.ID)
	}

	wg.Wait()

	duration := time.Since(start)
	s.logger.Info("タスクサイクルが完了しました",
		slog.Int("task_count", len(tasks)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
