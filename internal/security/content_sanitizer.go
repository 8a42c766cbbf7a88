// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService はフィードや抽出本文のHTML断片からタグを除去し、
// パイプラインが扱う安全なプレーンテキストに変換する。
// bluemondayライブラリのStrictPolicy（全タグ除去）を使用する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService はHTMLコンテンツのサニタイズ機能のインターフェースを定義する。
// フィードの概要や本文をArticleとして保存する前に使用される。
type ContentSanitizerService interface {
	// StripTags はHTML断片から全てのタグを除去し、
	// HTMLエンティティをデコードしたプレーンテキストを返す。
	// script/style/iframe等の危険なタグも内容ごと除去される。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	StripTags(rawHTML string) string

	// NormalizeWhitespace は連続する空白・改行を単一スペースに畳み、
	// 前後の空白を除去する。
	NormalizeWhitespace(text string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicyは許可タグを一切持たないため、入力の全タグが除去される。
func NewContentSanitizer() *contentSanitizer {
	return &contentSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// StripTags はHTML断片から全てのタグを除去したプレーンテキストを返す。
// bluemondayはタグ除去後もエンティティ（&amp;等）を残すため、
// html.UnescapeStringでデコードしてから返す。
func (s *contentSanitizer) StripTags(rawHTML string) string {
	if rawHTML == "" {
		return ""
	}
	stripped := s.policy.Sanitize(rawHTML)
	return strings.TrimSpace(html.UnescapeString(stripped))
}

// NormalizeWhitespace は連続する空白・改行を単一スペースに畳む。
func (s *contentSanitizer) NormalizeWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// compile-time interface check
var _ ContentSanitizerService = (*contentSanitizer)(nil)
