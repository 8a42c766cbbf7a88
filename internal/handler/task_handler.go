package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/digestman/internal/model"
)

// TaskServiceInterface はタスクハンドラーが必要とするサービスインターフェース。
type TaskServiceInterface interface {
	// Start は新規タスクを受け付けてpending状態で永続化する。
	Start(ctx context.Context, userID string, timeRange model.TimeRange) (*model.ProcessingTask, error)
}

// TaskFinder はタスク照会のためのインターフェース。
type TaskFinder interface {
	// FindByID は指定IDのタスクを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.ProcessingTask, error)
}

// TaskHandler は処理タスクのHTTPハンドラー。
type TaskHandler struct {
	service TaskServiceInterface
	finder  TaskFinder
}

// NewTaskHandler はTaskHandlerを生成する。
func NewTaskHandler(service TaskServiceInterface, finder TaskFinder) *TaskHandler {
	return &TaskHandler{
		service: service,
		finder:  finder,
	}
}

// startTaskRequest はタスク開始リクエストのボディ。
type startTaskRequest struct {
	UserID    string `json:"user_id"`
	TimeRange string `json:"time_range"`
}

// taskResponse は処理タスクのAPIレスポンス。
type taskResponse struct {
	ID           string             `json:"id"`
	UserID       string             `json:"user_id"`
	Status       string             `json:"status"`
	TimeRange    string             `json:"time_range"`
	Progress     model.TaskProgress `json:"progress"`
	Result       *model.TaskResult  `json:"result,omitempty"`
	ErrorMessage string             `json:"error_message,omitempty"`
	StartedAt    *time.Time         `json:"started_at,omitempty"`
	CompletedAt  *time.Time         `json:"completed_at,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
}

// StartTask は新規タスクの開始を処理する。
// POST /api/tasks
func (h *TaskHandler) StartTask(w http.ResponseWriter, r *http.Request) {
	var req startTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	if req.UserID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.PipelineError{
			Code:     "INVALID_REQUEST",
			Message:  "user_idは必須です。",
			Category: model.ErrCategoryValidation,
			Action:   "user_idを指定してください。",
		})
		return
	}

	timeRange, pipeErr := model.ParseTimeRange(req.TimeRange)
	if pipeErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, pipeErr)
		return
	}

	task, err := h.service.Start(r.Context(), req.UserID, timeRange)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	// 実処理は非同期のため202を返す
	writeJSON(w, http.StatusAccepted, toTaskResponse(task))
}

// GetTask はタスクの状態と進捗を取得する。
// GET /api/tasks/:id
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "id")

	task, err := h.finder.FindByID(r.Context(), taskID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if task == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewTaskNotFoundError(taskID))
		return
	}

	writeJSON(w, http.StatusOK, toTaskResponse(task))
}

// toTaskResponse はmodel.ProcessingTaskからAPIレスポンスに変換する。
func toTaskResponse(task *model.ProcessingTask) taskResponse {
	return taskResponse{
		ID:           task.ID,
		UserID:       task.UserID,
		Status:       string(task.Status),
		TimeRange:    string(task.TimeRange),
		Progress:     task.Progress,
		Result:       task.Result,
		ErrorMessage: task.ErrorMessage,
		StartedAt:    task.StartedAt,
		CompletedAt:  task.CompletedAt,
		CreatedAt:    task.CreatedAt,
	}
}
