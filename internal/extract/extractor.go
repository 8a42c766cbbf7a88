// Package extract はWebページからの本文抽出を提供する。
package extract

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/hitoshi/digestman/internal/model"
)

// contentSelectors は本文コンテナ候補のセレクタ一覧。
// 上から順に試し、最初に十分な長さのテキストを持つ要素を採用する。
var contentSelectors = []string{
	"article",
	".post-content",
	".entry-content",
	".article-content",
	".content",
	"main",
	".main-content",
	".post",
	".entry",
	"[role=main]",
	"#content",
}

// removeSelectors は抽出前に取り除く非本文要素のセレクタ一覧。
var removeSelectors = []string{
	"script", "style", "noscript", "nav", "header", "footer", "aside", "form",
}

// dateSelectors は公開日時の手がかりになる要素のセレクタ一覧。
var dateSelectors = []string{
	"time[datetime]", ".date", ".published", ".post-date",
}

// Options は本文抽出の制限値を保持する。
type Options struct {
	// MinSelectorText はセレクタ採用に必要な最小テキスト長（文字数）。
	MinSelectorText int
	// MinContentLength はこれ未満なら記事なしとみなす最小本文長。
	MinContentLength int
	// MaxContentLength は本文の最大長。超過分は切り詰める。
	MaxContentLength int
}

// DefaultOptions はOptionsのデフォルト値を返す。
func DefaultOptions() Options {
	return Options{
		MinSelectorText:  100,
		MinContentLength: 200,
		MaxContentLength: 50000,
	}
}

// Extractor はHTMLページからボイラープレートを除いた本文を抽出する。
// 1ページは高々1件の記事を生成する。
type Extractor struct {
	opts Options
}

// NewExtractor はExtractorの新しいインスタンスを生成する。
func NewExtractor(opts Options) *Extractor {
	return &Extractor{opts: opts}
}

// Extract はHTMLから本文を抽出する。本文が最小長に満たないページは
// 記事なし（ok=false）として扱い、エラーにはしない。
func (e *Extractor) Extract(htmlBody []byte, pageURL string) (*model.ParsedArticle, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(htmlBody)))
	if err != nil {
		return nil, false
	}

	// 非本文要素を先に除去する
	for _, sel := range removeSelectors {
		doc.Find(sel).Remove()
	}

	content := e.probeSelectors(doc)
	if content == "" {
		// セレクタで見つからない場合はbody全体にフォールバック
		content = normalizeWhitespace(doc.Find("body").Text())
	}

	if len([]rune(content)) < e.opts.MinContentLength {
		return nil, false
	}

	content = truncateRunes(content, e.opts.MaxContentLength)

	article := &model.ParsedArticle{
		Title:       e.extractTitle(doc),
		URL:         pageURL,
		Content:     content,
		PublishedAt: e.extractPublishedAt(doc),
	}

	return article, true
}

// probeSelectors はセレクタ一覧を順に試し、最初に十分な長さの
// テキストを持つコンテナの本文を返す。
func (e *Extractor) probeSelectors(doc *goquery.Document) string {
	for _, sel := range contentSelectors {
		var text string
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			t := normalizeWhitespace(s.Text())
			if len([]rune(t)) > e.opts.MinSelectorText {
				text = t
				return false
			}
			return true
		})
		if text != "" {
			return text
		}
	}
	return ""
}

// extractTitle はtitleタグ、なければ最初のh1からタイトルを取得する。
func (e *Extractor) extractTitle(doc *goquery.Document) string {
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title != "" {
		return title
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}

// extractPublishedAt は日付らしい要素から公開日時を推定する。
// datetime属性を優先し、なければ要素テキストを解釈する。
func (e *Extractor) extractPublishedAt(doc *goquery.Document) *time.Time {
	for _, sel := range dateSelectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}

		raw, exists := node.Attr("datetime")
		if !exists {
			raw = node.Text()
		}

		if t := parsePageDate(raw); t != nil {
			return t
		}
	}
	return nil
}

// pageDateLayouts はページ上の日付表記に試すレイアウト一覧。
var pageDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"January 2, 2006",
	"Jan 2, 2006",
}

func parsePageDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range pageDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// normalizeWhitespace は連続する空白・改行を単一スペースに畳む。
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncateRunes は文字数単位で文字列を切り詰める。
func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
