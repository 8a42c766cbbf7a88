// Package handler はHTTP APIのハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/digestman/internal/model"
)

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, pipeErr *model.PipelineError) {
	writeJSON(w, statusCode, apiErrorResponse{
		Code:     pipeErr.Code,
		Message:  pipeErr.Message,
		Category: pipeErr.Category,
		Action:   pipeErr.Action,
	})
}

// writeInvalidRequestBody はリクエストボディ解析失敗の統一レスポンスを書き込む。
func writeInvalidRequestBody(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusBadRequest, &model.PipelineError{
		Code:     "INVALID_REQUEST",
		Message:  "リクエストボディの解析に失敗しました。",
		Category: model.ErrCategoryValidation,
		Action:   "正しいJSON形式でリクエストしてください。",
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var pipeErr *model.PipelineError
	if errors.As(err, &pipeErr) {
		writeAPIErrorResponse(w, mapErrorToHTTPStatus(pipeErr), pipeErr)
		return
	}

	// PipelineError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.PipelineError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapErrorToHTTPStatus はPipelineErrorコードからHTTPステータスコードにマッピングする。
func mapErrorToHTTPStatus(pipeErr *model.PipelineError) int {
	switch pipeErr.Code {
	case model.ErrCodeInvalidURL, model.ErrCodeInvalidTimeRange:
		return http.StatusBadRequest
	case model.ErrCodeSSRFBlocked:
		return http.StatusForbidden
	case model.ErrCodeTaskNotFound, model.ErrCodeDigestNotFound:
		return http.StatusNotFound
	case model.ErrCodeUnreachable:
		return http.StatusBadGateway
	case model.ErrCodeParseFailed, model.ErrCodeContentTooShort:
		return http.StatusUnprocessableEntity
	case model.ErrCodeModelCallFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
