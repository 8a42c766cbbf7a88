package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/hitoshi/digestman/internal/model"
)

func newTestStarter(taskRepo *fakeTaskRepo, sourceRepo *fakeSourceRepo) *Starter {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewStarter(taskRepo, sourceRepo, logger)
}

func TestStart_CreatesPendingTask(t *testing.T) {
	taskRepo := newFakeTaskRepo()
	sourceRepo := newFakeSourceRepo(
		feedSource("src-1", "ブログA", "https://a.example.com/feed"),
		feedSource("src-2", "ブログB", "https://b.example.com/feed"),
	)
	s := newTestStarter(taskRepo, sourceRepo)

	task, err := s.Start(context.Background(), "user-1", model.TimeRangeWeek)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if task.ID == "" {
		t.Error("タスクIDが採番されるべき")
	}
	if task.Status != model.TaskStatusPending {
		t.Errorf("Status = %q, want %q", task.Status, model.TaskStatusPending)
	}
	if task.TimeRange != model.TimeRangeWeek {
		t.Errorf("TimeRange = %q", task.TimeRange)
	}
	if task.Progress.Total != 2 {
		t.Errorf("Progress.Total = %d, want アクティブソース数2", task.Progress.Total)
	}
	// JSONBでnullにならないよう空スライスで初期化される
	if task.Progress.ProcessedSources == nil || task.Progress.SkippedSources == nil {
		t.Error("進捗のスライスは空で初期化されるべき")
	}
	if len(taskRepo.created) != 1 {
		t.Errorf("作成されたタスク数 = %d, want 1", len(taskRepo.created))
	}
}

// TestStart_ForceFailsActiveTasks は新規受付前に既存のアクティブタスクを
// 強制終了することを検証する。
func TestStart_ForceFailsActiveTasks(t *testing.T) {
	taskRepo := newFakeTaskRepo()
	taskRepo.forceFailCount = 2
	s := newTestStarter(taskRepo, newFakeSourceRepo())

	if _, err := s.Start(context.Background(), "user-1", model.TimeRangeDay); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if taskRepo.forceFailedUser != "user-1" {
		t.Errorf("ForceFailActiveの対象 = %q, want %q", taskRepo.forceFailedUser, "user-1")
	}
}

func TestStart_ForceFailError(t *testing.T) {
	taskRepo := newFakeTaskRepo()
	taskRepo.forceFailErr = errors.New("db down")
	s := newTestStarter(taskRepo, newFakeSourceRepo())

	if _, err := s.Start(context.Background(), "user-1", model.TimeRangeWeek); err == nil {
		t.Error("既存タスクの整理失敗はエラーを返すべき")
	}
	if len(taskRepo.created) != 0 {
		t.Error("整理に失敗した場合はタスクを作らない")
	}
}

func TestStart_SourceCountError(t *testing.T) {
	sourceRepo := newFakeSourceRepo()
	sourceRepo.countErr = errors.New("db down")
	s := newTestStarter(newFakeTaskRepo(), sourceRepo)

	_, err := s.Start(context.Background(), "user-1", model.TimeRangeWeek)
	var perr *model.PipelineError
	if !errors.As(err, &perr) || perr.Code != model.ErrCodeSourceListFailed {
		t.Fatalf("expected %s, got %v", model.ErrCodeSourceListFailed, err)
	}
}

func TestStart_CreateError(t *testing.T) {
	taskRepo := newFakeTaskRepo()
	taskRepo.createErr = errors.New("db down")
	s := newTestStarter(taskRepo, newFakeSourceRepo())

	if _, err := s.Start(context.Background(), "user-1", model.TimeRangeWeek); err == nil {
		t.Error("タスク作成の失敗はエラーを返すべき")
	}
}
