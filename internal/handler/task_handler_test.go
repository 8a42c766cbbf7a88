package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/digestman/internal/model"
)

// stubTaskService はタスク受付のスタブ。
type stubTaskService struct {
	err          error
	gotUserID    string
	gotTimeRange model.TimeRange
}

func (s *stubTaskService) Start(ctx context.Context, userID string, timeRange model.TimeRange) (*model.ProcessingTask, error) {
	s.gotUserID = userID
	s.gotTimeRange = timeRange
	if s.err != nil {
		return nil, s.err
	}
	return &model.ProcessingTask{
		ID:        uuid.New().String(),
		UserID:    userID,
		Status:    model.TaskStatusPending,
		TimeRange: timeRange,
	}, nil
}

// stubTaskFinder はタスク照会のスタブ。
type stubTaskFinder struct {
	tasks map[string]*model.ProcessingTask
	err   error
}

func (s *stubTaskFinder) FindByID(ctx context.Context, id string) (*model.ProcessingTask, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.tasks[id], nil
}

func newTaskTestRouter(service *stubTaskService, finder *stubTaskFinder) http.Handler {
	h := NewTaskHandler(service, finder)
	r := chi.NewRouter()
	r.Post("/api/tasks", h.StartTask)
	r.Get("/api/tasks/{id}", h.GetTask)
	return r
}

func TestStartTask_Accepted(t *testing.T) {
	service := &stubTaskService{}
	router := newTaskTestRouter(service, &stubTaskFinder{})

	req := httptest.NewRequest(http.MethodPost, "/api/tasks", strings.NewReader(`{"user_id":"user-1","time_range":"day"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusAccepted)
	}

	var resp taskResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("レスポンスの解析に失敗: %v", err)
	}
	if resp.Status != string(model.TaskStatusPending) {
		t.Errorf("status = %q, want pending", resp.Status)
	}
	if service.gotTimeRange != model.TimeRangeDay {
		t.Errorf("time_range = %q, want day", service.gotTimeRange)
	}
}

// TestStartTask_DefaultTimeRange はtime_range未指定時にweekが使われることを検証する。
func TestStartTask_DefaultTimeRange(t *testing.T) {
	service := &stubTaskService{}
	router := newTaskTestRouter(service, &stubTaskFinder{})

	req := httptest.NewRequest(http.MethodPost, "/api/tasks", strings.NewReader(`{"user_id":"user-1"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusAccepted)
	}
	if service.gotTimeRange != model.TimeRangeWeek {
		t.Errorf("time_range = %q, want デフォルトのweek", service.gotTimeRange)
	}
}

func TestStartTask_MissingUserID(t *testing.T) {
	router := newTaskTestRouter(&stubTaskService{}, &stubTaskFinder{})

	req := httptest.NewRequest(http.MethodPost, "/api/tasks", strings.NewReader(`{"time_range":"week"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	var resp apiErrorResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Code != "INVALID_REQUEST" {
		t.Errorf("code = %q, want INVALID_REQUEST", resp.Code)
	}
}

func TestStartTask_InvalidTimeRange(t *testing.T) {
	router := newTaskTestRouter(&stubTaskService{}, &stubTaskFinder{})

	req := httptest.NewRequest(http.MethodPost, "/api/tasks", strings.NewReader(`{"user_id":"user-1","time_range":"month"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	var resp apiErrorResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Code != model.ErrCodeInvalidTimeRange {
		t.Errorf("code = %q, want %s", resp.Code, model.ErrCodeInvalidTimeRange)
	}
}

func TestStartTask_MalformedBody(t *testing.T) {
	router := newTaskTestRouter(&stubTaskService{}, &stubTaskFinder{})

	req := httptest.NewRequest(http.MethodPost, "/api/tasks", strings.NewReader(`{broken`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestStartTask_ServiceError(t *testing.T) {
	service := &stubTaskService{err: errors.New("db down")}
	router := newTaskTestRouter(service, &stubTaskFinder{})

	req := httptest.NewRequest(http.MethodPost, "/api/tasks", strings.NewReader(`{"user_id":"user-1"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}

	var resp apiErrorResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Code != "INTERNAL_ERROR" {
		t.Errorf("code = %q, want INTERNAL_ERROR", resp.Code)
	}
}

func TestGetTask_Found(t *testing.T) {
	finder := &stubTaskFinder{tasks: map[string]*model.ProcessingTask{
		"task-1": {
			ID:     "task-1",
			UserID: "user-1",
			Status: model.TaskStatusRunning,
			Progress: model.TaskProgress{
				Current: 1,
				Total:   3,
			},
		},
	}}
	router := newTaskTestRouter(&stubTaskService{}, finder)

	req := httptest.NewRequest(http.MethodGet, "/api/tasks/task-1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp taskResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("レスポンスの解析に失敗: %v", err)
	}
	if resp.ID != "task-1" || resp.Status != "running" {
		t.Errorf("resp = %+v", resp)
	}
	if resp.Progress.Total != 3 {
		t.Errorf("progress.total = %d, want 3", resp.Progress.Total)
	}
}

func TestGetTask_NotFound(t *testing.T) {
	router := newTaskTestRouter(&stubTaskService{}, &stubTaskFinder{})

	req := httptest.NewRequest(http.MethodGet, "/api/tasks/missing", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
	}

	var resp apiErrorResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Code != model.ErrCodeTaskNotFound {
		t.Errorf("code = %q, want %s", resp.Code, model.ErrCodeTaskNotFound)
	}
}
