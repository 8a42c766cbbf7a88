package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/digestman/internal/model"
	"github.com/hitoshi/digestman/internal/repository"
)

// forceCleanReason は新規タスク開始時に既存タスクを強制失敗させる際の理由。
const forceCleanReason = "新しいタスクの開始により強制的に失敗扱いにしました"

// Starter は取り込みタスクの受付を行う。
// ユーザーあたり同時に1タスクのみを許すため、開始前に既存の
// pending/runningタスクを強制的に失敗させてから新規タスクを作る。
type Starter struct {
	taskRepo   repository.TaskRepository
	sourceRepo repository.SourceRepository
	logger     *slog.Logger
}

// NewStarter はStarterの新しいインスタンスを生成する。
func NewStarter(
	taskRepo repository.TaskRepository,
	sourceRepo repository.SourceRepository,
	logger *slog.Logger,
) *Starter {
	return &Starter{
		taskRepo:   taskRepo,
		sourceRepo: sourceRepo,
		logger:     logger,
	}
}

// Start は新規タスクを受け付けてpending状態で永続化する。
// 実際の処理はスケジューラ経由でオーケストレータが行う。
func (s *Starter) Start(ctx context.Context, userID string, timeRange model.TimeRange) (*model.ProcessingTask, error) {
	// 既存のアクティブタスクを排除してから受け付ける
	cleaned, err := s.taskRepo.ForceFailActive(ctx, userID, forceCleanReason)
	if err != nil {
		return nil, fmt.Errorf("既存タスクの整理に失敗: %w", err)
	}
	if cleaned > 0 {
		s.logger.Info("既存のアクティブタスクを強制終了しました",
			slog.String("user_id", userID),
			slog.Int64("count", cleaned),
		)
	}

	total, err := s.sourceRepo.CountActiveByUser(ctx, userID)
	if err != nil {
		return nil, model.NewSourceListFailedError(userID, err)
	}

	now := time.Now()
	task := &model.ProcessingTask{
		ID:        uuid.New().String(),
		UserID:    userID,
		Status:    model.TaskStatusPending,
		TimeRange: timeRange,
		Progress: model.TaskProgress{
			Current:          0,
			Total:            total,
			ProcessedSources: []model.ProcessedSource{},
			SkippedSources:   []model.SkippedSource{},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.taskRepo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("タスクの作成に失敗: %w", err)
	}

	s.logger.Info("タスクを受け付けました",
		slog.String("task_id", task.ID),
		slog.String("user_id", userID),
		slog.String("time_range", string(timeRange)),
		slog.Int("total_sources", total),
	)

	return task, nil
}
