package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"

	"github.com/hitoshi/digestman/internal/model"
)

// recordingExecutor は実行されたタスクIDを記録するTaskExecutor。
type recordingExecutor struct {
	mu       sync.Mutex
	executed []string
	err      error
}

func (r *recordingExecutor) Execute(ctx context.Context, taskID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executed = append(r.executed, taskID)
	return r.err
}

func newTestScheduler(taskRepo *fakeTaskRepo, executor TaskExecutor, maxConcurrency int) *Scheduler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewScheduler(taskRepo, executor, logger, maxConcurrency)
}

func TestRunOnce_NoPendingTasks(t *testing.T) {
	taskRepo := newFakeTaskRepo()
	executor := &recordingExecutor{}
	s := newTestScheduler(taskRepo, executor, 3)

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(executor.executed) != 0 {
		t.Errorf("実行待ちタスクがなければ実行しない: %v", executor.executed)
	}
}

func TestRunOnce_ExecutesAllPendingTasks(t *testing.T) {
	taskRepo := newFakeTaskRepo()
	taskRepo.pending = []*model.ProcessingTask{
		pendingTask("task-1", "user-1"),
		pendingTask("task-2", "user-2"),
		pendingTask("task-3", "user-3"),
	}
	executor := &recordingExecutor{}
	s := newTestScheduler(taskRepo, executor, 2)

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	sort.Strings(executor.executed)
	want := []string{"task-1", "task-2", "task-3"}
	if len(executor.executed) != len(want) {
		t.Fatalf("実行されたタスク数 = %d, want %d", len(executor.executed), len(want))
	}
	for i, id := range want {
		if executor.executed[i] != id {
			t.Errorf("executed[%d] = %q, want %q", i, executor.executed[i], id)
		}
	}
}

// TestRunOnce_ListLimitMatchesConcurrency は取得件数の上限が
// 最大並列数と一致することを検証する。
func TestRunOnce_ListLimitMatchesConcurrency(t *testing.T) {
	taskRepo := newFakeTaskRepo()
	s := newTestScheduler(taskRepo, &recordingExecutor{}, 7)

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if taskRepo.gotClaimLimit != 7 {
		t.Errorf("ClaimPendingのlimit = %d, want 7", taskRepo.gotClaimLimit)
	}
}

func TestRunOnce_ListError(t *testing.T) {
	taskRepo := newFakeTaskRepo()
	taskRepo.claimErr = errors.New("db down")
	s := newTestScheduler(taskRepo, &recordingExecutor{}, 3)

	if err := s.RunOnce(context.Background()); err == nil {
		t.Error("取得失敗はエラーを返すべき")
	}
}

// TestRunOnce_ExecutorError_DoesNotAbortCycle は個々のタスク失敗が
// サイクル全体を止めないことを検証する。
func TestRunOnce_ExecutorError_DoesNotAbortCycle(t *testing.T) {
	taskRepo := newFakeTaskRepo()
	taskRepo.pending = []*model.ProcessingTask{
		pendingTask("task-1", "user-1"),
		pendingTask("task-2", "user-2"),
	}
	executor := &recordingExecutor{err: errors.New("実行失敗")}
	s := newTestScheduler(taskRepo, executor, 2)

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("タスク失敗はサイクルのエラーにしない: %v", err)
	}
	if len(executor.executed) != 2 {
		t.Errorf("全タスクが実行されるべき: %v", executor.executed)
	}
}

func TestNewScheduler_DefaultConcurrency(t *testing.T) {
	s := newTestScheduler(newFakeTaskRepo(), &recordingExecutor{}, 0)
	if s.maxConcurrency != 5 {
		t.Errorf("maxConcurrency = %d, want デフォルト5", s.maxConcurrency)
	}
}
