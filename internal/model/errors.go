// Package model はドメインモデルを定義する。
package model

import "fmt"

// PipelineError は統一エラーフォーマットを表す。
// カテゴリはエラー分類（network, content, external_model, persistence,
// orchestration, validation）を示し、タスクをfailedに遷移させてよいのは
// orchestrationのみ。それ以外はソース単位のスキップや記事単位の失敗として
// 吸収される。
type PipelineError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *PipelineError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// エラーカテゴリ
const (
	ErrCategoryNetwork       = "network"
	ErrCategoryContent       = "content"
	ErrCategoryExternalModel = "external_model"
	ErrCategoryPersistence   = "persistence"
	ErrCategoryOrchestration = "orchestration"
	ErrCategoryValidation    = "validation"
)

// 定義済みエラーコード
const (
	ErrCodeInvalidURL       = "INVALID_URL"
	ErrCodeSSRFBlocked      = "SSRF_BLOCKED"
	ErrCodeUnreachable      = "SOURCE_UNREACHABLE"
	ErrCodeParseFailed      = "PARSE_FAILED"
	ErrCodeContentTooShort  = "CONTENT_TOO_SHORT"
	ErrCodeModelCallFailed  = "MODEL_CALL_FAILED"
	ErrCodeTaskNotFound     = "TASK_NOT_FOUND"
	ErrCodeDigestNotFound   = "DIGEST_NOT_FOUND"
	ErrCodeInvalidTimeRange = "INVALID_TIME_RANGE"
	ErrCodeTaskLoadFailed   = "TASK_LOAD_FAILED"
	ErrCodeSourceListFailed = "SOURCE_LIST_FAILED"
)

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *PipelineError {
	return &PipelineError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効なURLです: %s", reason),
		Category: ErrCategoryValidation,
		Action:   "正しいURL形式（http:// または https:// で始まるURL）を入力してください。",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *PipelineError {
	return &PipelineError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLへのアクセスがブロックされました。",
		Category: ErrCategoryValidation,
		Action:   "公開されているWebサイトのURLを入力してください。ローカルネットワークやプライベートIPへのアクセスは許可されていません。",
	}
}

// NewUnreachableError は全クライアント識別子での取得が失敗した場合のエラーを生成する。
// 呼び出し側はこのエラーをソースのスキップとして扱い、タスクを失敗させてはならない。
func NewUnreachableError(url string, reason string) *PipelineError {
	return &PipelineError{
		Code:     ErrCodeUnreachable,
		Message:  fmt.Sprintf("ソースに到達できませんでした: %s (%s)", url, reason),
		Category: ErrCategoryNetwork,
		Action:   "URLが正しいか確認し、しばらく待ってから再度お試しください。",
	}
}

// NewParseFailedError はフィード解析失敗エラーを生成する。
func NewParseFailedError() *PipelineError {
	return &PipelineError{
		Code:     ErrCodeParseFailed,
		Message:  "フィードの解析に失敗しました。",
		Category: ErrCategoryContent,
		Action:   "有効なRSS/Atomフィードかどうか確認してください。",
	}
}

// NewContentTooShortError は抽出本文が短すぎる場合のエラーを生成する。
func NewContentTooShortError(length int) *PipelineError {
	return &PipelineError{
		Code:     ErrCodeContentTooShort,
		Message:  fmt.Sprintf("抽出した本文が短すぎます: %d文字", length),
		Category: ErrCategoryContent,
		Action:   "ページに十分な本文があるか確認してください。",
	}
}

// NewModelCallFailedError は要約モデル呼び出し失敗エラーを生成する。
// フォールバックチェーンの全モデルが失敗した場合にのみ呼び出し側へ返る。
func NewModelCallFailedError(reason string) *PipelineError {
	return &PipelineError{
		Code:     ErrCodeModelCallFailed,
		Message:  fmt.Sprintf("要約モデルの呼び出しに失敗しました: %s", reason),
		Category: ErrCategoryExternalModel,
		Action:   "APIキーとモデル設定を確認してください。ローカル要約へ自動的に切り替わります。",
	}
}

// NewTaskNotFoundError はタスク未検出エラーを生成する。
func NewTaskNotFoundError(taskID string) *PipelineError {
	return &PipelineError{
		Code:     ErrCodeTaskNotFound,
		Message:  fmt.Sprintf("指定されたタスクが見つかりません: %s", taskID),
		Category: ErrCategoryValidation,
		Action:   "タスクIDを確認してください。",
	}
}

// NewDigestNotFoundError はダイジェスト未検出エラーを生成する。
func NewDigestNotFoundError(digestID string) *PipelineError {
	return &PipelineError{
		Code:     ErrCodeDigestNotFound,
		Message:  fmt.Sprintf("指定されたダイジェストが見つかりません: %s", digestID),
		Category: ErrCategoryValidation,
		Action:   "ダイジェストIDを確認してください。",
	}
}

// NewInvalidTimeRangeError は無効な時間窓指定エラーを生成する。
func NewInvalidTimeRangeError(timeRange string) *PipelineError {
	return &PipelineError{
		Code:     ErrCodeInvalidTimeRange,
		Message:  fmt.Sprintf("無効な時間範囲です: %s", timeRange),
		Category: ErrCategoryValidation,
		Action:   "時間範囲には day または week を指定してください。",
	}
}

// NewTaskLoadFailedError はタスクレコードの読み込み失敗エラーを生成する。
// オーケストレーションレベルの失敗であり、タスクをfailedに遷移させる。
func NewTaskLoadFailedError(taskID string, err error) *PipelineError {
	return &PipelineError{
		Code:     ErrCodeTaskLoadFailed,
		Message:  fmt.Sprintf("タスクの読み込みに失敗しました: %s: %v", taskID, err),
		Category: ErrCategoryOrchestration,
		Action:   "データベース接続を確認してください。",
	}
}

// NewSourceListFailedError はソース一覧の読み込み失敗エラーを生成する。
// オーケストレーションレベルの失敗であり、タスクをfailedに遷移させる。
func NewSourceListFailedError(userID string, err error) *PipelineError {
	return &PipelineError{
		Code:     ErrCodeSourceListFailed,
		Message:  fmt.Sprintf("ソース一覧の読み込みに失敗しました: user=%s: %v", userID, err),
		Category: ErrCategoryOrchestration,
		Action:   "データベース接続を確認してください。",
	}
}

// ParseTimeRange は文字列をTimeRangeに検証付きで変換する。
// 空文字列はデフォルトのweekになる。
func ParseTimeRange(s string) (TimeRange, *PipelineError) {
	switch s {
	case "":
		return TimeRangeWeek, nil
	case string(TimeRangeDay):
		return TimeRangeDay, nil
	case string(TimeRangeWeek):
		return TimeRangeWeek, nil
	default:
		return "", NewInvalidTimeRangeError(s)
	}
}
