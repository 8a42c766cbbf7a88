// Package model はドメインモデルを定義する。
package model

import "time"

// TaskStatus は処理タスクの状態を表す。
type TaskStatus string

const (
	// TaskStatusPending は実行待ちの状態。
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusRunning は実行中の状態。
	TaskStatusRunning TaskStatus = "running"
	// TaskStatusCompleted は正常完了した終端状態。
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed は失敗した終端状態。
	TaskStatusFailed TaskStatus = "failed"
)

// IsTerminal は終端状態（completed/failed）かどうかを返す。
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// TimeRange は取り込み対象の時間窓を表す。
type TimeRange string

const (
	// TimeRangeDay は約2日分（48時間）の窓。
	TimeRangeDay TimeRange = "day"
	// TimeRangeWeek は約7日分（168時間）の窓。デフォルト。
	TimeRangeWeek TimeRange = "week"
)

// CutoffFrom は基準時刻から時間窓の開始時刻を算出する。
func (r TimeRange) CutoffFrom(now time.Time) time.Time {
	switch r {
	case TimeRangeDay:
		return now.Add(-48 * time.Hour)
	default:
		return now.Add(-7 * 24 * time.Hour)
	}
}

// ProcessedSource は処理済みソースの成果を表す。
// SourceIDが再開時の同一判定に使われる。表示名は一意とは限らない。
type ProcessedSource struct {
	SourceID   string `json:"source_id"`
	SourceName string `json:"source_name"`
	Articles   int    `json:"articles"`
	Summaries  int    `json:"summaries"`
}

// スキップ理由。progressのskipped_sourcesに記録される。
const (
	SkipReasonUnreachable       = "unreachable"
	SkipReasonNotAFeed          = "not-a-feed"
	SkipReasonNoRecentArticles  = "no-recent-articles"
	SkipReasonAllArticlesFailed = "all-articles-failed"
)

// SkippedSource はスキップされたソースと理由を表す。
type SkippedSource struct {
	SourceID   string `json:"source_id"`
	SourceName string `json:"source_name"`
	Reason     string `json:"reason"`
}

// TaskProgress はタスクの進捗構造を表す。DBにはJSONBで永続化され、
// ソース1件の完了ごとにread-modify-writeで更新される。
// Currentは単調増加し、常に len(ProcessedSources)+len(SkippedSources) に一致する。
type TaskProgress struct {
	Current          int               `json:"current"`
	Total            int               `json:"total"`
	ProcessedSources []ProcessedSource `json:"processed_sources"`
	SkippedSources   []SkippedSource   `json:"skipped_sources"`
	CurrentSource    string            `json:"current_source,omitempty"`
}

// Complete は全ソースに結果が記録されたかどうかを返す。
// 完了判定は経過時間ではなく件数の勘定のみで行う。
func (p *TaskProgress) Complete() bool {
	return len(p.ProcessedSources)+len(p.SkippedSources) >= p.Total
}

// TaskResult はタスク完了時の集計結果を表す。
type TaskResult struct {
	Sources   int    `json:"sources"`
	Articles  int    `json:"articles"`
	Summaries int    `json:"summaries"`
	Message   string `json:"message,omitempty"`
}

// ProcessingTask は「ユーザーUの全ソースを時間窓Wで取り込む」1回分の実行を表す。
// 永続化された状態機械であり、ワーカーの再起動をまたいで進行できる。
type ProcessingTask struct {
	ID           string
	UserID       string
	Status       TaskStatus
	TimeRange    TimeRange
	Progress     TaskProgress
	Result       *TaskResult
	ErrorMessage string
	StartedAt    *time.Time
	CompletedAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
