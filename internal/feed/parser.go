package feed

import (
	"log/slog"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/digestman/internal/model"
)

// Sanitizer はHTML断片のプレーンテキスト化インターフェース。
type Sanitizer interface {
	StripTags(rawHTML string) string
	NormalizeWhitespace(text string) string
}

// ParserOptions はフィード解析の制限値を保持する。
type ParserOptions struct {
	// MaxArticles はソースあたりの最大記事数。後段のコストを抑える上限。
	MaxArticles int
	// MaxScanItems は走査するアイテム数の上限。
	// フィードの新しい順は慣習であって保証ではないため、
	// 全件走査ではなく先頭の一定範囲のみを調べる。
	MaxScanItems int
	// MaxStaleStreak は打ち切りまでの連続した窓外アイテム数。
	MaxStaleStreak int
}

// DefaultParserOptions はParserOptionsのデフォルト値を返す。
func DefaultParserOptions() ParserOptions {
	return ParserOptions{
		MaxArticles:    50,
		MaxScanItems:   100,
		MaxStaleStreak: 10,
	}
}

// Parser はRSS/Atomフィードから記事候補を抽出する。
// gofeedによる構造解析を優先し、失敗時や0件時は正規表現による
// フォールバック抽出を行う。現実のフィードは壊れていることが多い。
type Parser struct {
	sanitizer Sanitizer
	logger    *slog.Logger
	opts      ParserOptions
}

// NewParser はParserの新しいインスタンスを生成する。
func NewParser(sanitizer Sanitizer, logger *slog.Logger, opts ParserOptions) *Parser {
	return &Parser{
		sanitizer: sanitizer,
		logger:    logger,
		opts:      opts,
	}
}

// candidate は抽出戦略が返す日付フィルタ前の記事候補。
type candidate struct {
	title       string
	url         string
	excerpt     string
	publishedAt *time.Time
}

// Parse はフィードボディから時間窓内の記事候補を抽出する。
// cutoffより古い記事は除外される。構造解析とフォールバックの両方が
// 失敗した場合のみエラーを返し、解析成功で0件の場合は空スライスを返す。
func (p *Parser) Parse(body []byte, baseURL string, cutoff time.Time) ([]model.ParsedArticle, error) {
	candidates, parseErr := p.parseStructured(body)

	if parseErr != nil || len(candidates) == 0 {
		if parseErr != nil {
			p.logger.Warn("構造解析に失敗したためフォールバック抽出を試みます",
				slog.String("url", baseURL),
				slog.String("error", parseErr.Error()),
			)
		}
		fallback := parseWithRegex(body)
		if len(fallback) > 0 {
			candidates = fallback
		} else if parseErr != nil {
			return nil, model.NewParseFailedError()
		}
	}

	return p.selectRecent(candidates, baseURL, cutoff), nil
}

// parseStructured はgofeedでフィードを解析し、記事候補に変換する。
func (p *Parser) parseStructured(body []byte) ([]candidate, error) {
	parser := gofeed.NewParser()
	parsed, err := parser.ParseString(string(body))
	if err != nil {
		return nil, err
	}

	candidates := make([]candidate, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}

		c := candidate{
			title: strings.TrimSpace(item.Title),
			url:   resolveItemLink(item),
		}

		// 概要: description優先、なければcontent
		if item.Description != "" {
			c.excerpt = item.Description
		} else {
			c.excerpt = item.Content
		}

		if item.PublishedParsed != nil {
			t := *item.PublishedParsed
			c.publishedAt = &t
		} else if item.UpdatedParsed != nil {
			t := *item.UpdatedParsed
			c.publishedAt = &t
		}

		candidates = append(candidates, c)
	}

	return candidates, nil
}

// resolveItemLink は記事の正規URLを優先順位に従って解決する。
// link要素 → GUID（URL形式の場合） → enclosure URL の順。
// 現実のフィードは正規リンクの置き場所がまちまちである。
func resolveItemLink(item *gofeed.Item) string {
	if item.Link != "" {
		return strings.TrimSpace(item.Link)
	}

	if isHTTPURL(item.GUID) {
		return strings.TrimSpace(item.GUID)
	}

	for _, enc := range item.Enclosures {
		if enc != nil && isHTTPURL(enc.URL) {
			return strings.TrimSpace(enc.URL)
		}
	}

	return ""
}

// isHTTPURL は文字列がhttp/httpsのURL形式かを判定する。
func isHTTPURL(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// selectRecent は候補一覧に走査上限・日付カットオフ・件数上限を適用する。
// 連続して窓外の候補が続いた場合は時系列順とみなして打ち切るが、
// 順序が保証されないフィードに備えて走査自体は上限件数まで行う。
func (p *Parser) selectRecent(candidates []candidate, baseURL string, cutoff time.Time) []model.ParsedArticle {
	var articles []model.ParsedArticle
	staleStreak := 0

	for i, c := range candidates {
		if i >= p.opts.MaxScanItems || len(articles) >= p.opts.MaxArticles {
			break
		}

		if c.url == "" || c.title == "" {
			continue
		}

		if c.publishedAt != nil && c.publishedAt.Before(cutoff) {
			staleStreak++
			if staleStreak >= p.opts.MaxStaleStreak {
				break
			}
			continue
		}
		staleStreak = 0

		excerpt := p.sanitizer.NormalizeWhitespace(p.sanitizer.StripTags(c.excerpt))

		articles = append(articles, model.ParsedArticle{
			Title:       p.sanitizer.StripTags(c.title),
			URL:         c.url,
			Excerpt:     excerpt,
			Content:     excerpt,
			PublishedAt: c.publishedAt,
		})
	}

	return articles
}

// dateLayouts は公開日時の解釈に試すレイアウト一覧。
// フォールバック抽出と構造解析の補完の両方で使用する。
var dateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseDate は日付文字列を既知のレイアウトで順に解釈する。
// どのレイアウトにも一致しない場合はnilを返す。
func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
