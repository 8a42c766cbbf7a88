// Package model はドメインモデルを定義する。
package model

import "time"

// Article はソースから発見した個別の記事を表す。
// (SourceID, URL) の組は一意であり、同一URLの再発見は重複レコードを作らない。
type Article struct {
	ID              string
	SourceID        string
	Title           string
	URL             string
	Content         string // 抽出済みの本文テキスト
	PublishedAt     *time.Time
	Processed       bool
	ProcessingError string
	CreatedAt       time.Time
}

// Summary は1記事に対するAI生成要約を表す。記事と1対1で対応し、
// Summaryの存在が「処理済み」の正となる判定材料になる。
type Summary struct {
	ID          string
	ArticleID   string
	SummaryText string
	Model       string
	ReadingTime int // 分単位の読了時間目安
	CreatedAt   time.Time
}

// ParsedArticle はフィードパーサーまたは本文抽出器が返す未保存の記事候補。
type ParsedArticle struct {
	Title       string
	URL         string
	Content     string
	Excerpt     string
	PublishedAt *time.Time
}

// ModelLocalMock はAPIキー未設定時やモデル全滅時に使う
// ローカル生成要約のモデル識別子。AI要約と区別可能でなければならない。
const ModelLocalMock = "local-mock"
