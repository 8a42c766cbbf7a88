// Package model はドメインモデルを定義する。
package model

import "time"

// Source はユーザーが登録したコンテンツ取得元を表す。
// RSS/Atomフィードと通常のWebページの両方を扱う。
type Source struct {
	ID                string
	UserID            string
	Name              string
	URL               string
	Active            bool
	LastFetchedAt     *time.Time
	ConsecutiveErrors int
	LastError         string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// SourceValidation はURL検証プローブの結果を表す。
// 外部のソース管理画面が登録前の確認に利用する。
type SourceValidation struct {
	Valid       bool
	IsFeed      bool
	FeedURL     string
	Title       string
	Description string
	Message     string
}
