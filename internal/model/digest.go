// Package model はドメインモデルを定義する。
package model

import "time"

// Digest は1ユーザー・1生成日に対する要約のまとめを表す。
// (UserID, GenerationDate) の組は一意で、再生成時は既存分を削除してから作り直す。
type Digest struct {
	ID             string
	UserID         string
	Title          string
	GenerationDate time.Time // 日付部分のみ意味を持つ
	Read           bool
	CreatedAt      time.Time
}

// DigestItem はダイジェスト内の1エントリを表す。
// OrderPositionは要約の新しい順で0始まり。
type DigestItem struct {
	ID            string
	DigestID      string
	SummaryID     string
	OrderPosition int
}

// DigestEntry はダイジェスト表示用に要約・記事・ソース名を結合したモデル。
type DigestEntry struct {
	OrderPosition int
	SummaryText   string
	Model         string
	ReadingTime   int
	ArticleTitle  string
	ArticleURL    string
	SourceName    string
	PublishedAt   *time.Time
}
