package feed

import (
	"regexp"
	"strings"
)

// 正規表現によるフォールバック抽出。
// gofeedが受け付けない壊れたXMLでも、item/entryブロックと
// その中の主要素をパターンで拾えることが多い。

var (
	rssItemRe   = regexp.MustCompile(`(?is)<item[\s>].*?</item>`)
	atomEntryRe = regexp.MustCompile(`(?is)<entry[\s>].*?</entry>`)

	titleRe     = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	linkTextRe  = regexp.MustCompile(`(?is)<link[^>]*>([^<]+)</link>`)
	linkHrefRe  = regexp.MustCompile(`(?i)<link[^>]+href=["']([^"']+)["']`)
	guidRe      = regexp.MustCompile(`(?is)<guid[^>]*>(.*?)</guid>`)
	enclosureRe = regexp.MustCompile(`(?i)<enclosure[^>]+url=["']([^"']+)["']`)
	dateRe      = regexp.MustCompile(`(?is)<(?:pubdate|published|updated|dc:date)[^>]*>(.*?)</`)
	descRe      = regexp.MustCompile(`(?is)<description[^>]*>(.*?)</description>`)
	summaryRe   = regexp.MustCompile(`(?is)<summary[^>]*>(.*?)</summary>`)
	contentRe   = regexp.MustCompile(`(?is)<content[^>]*>(.*?)</content>`)

	cdataRe = regexp.MustCompile(`(?s)<!\[CDATA\[(.*?)\]\]>`)
)

// parseWithRegex はXMLテキストからitem/entryブロックを正規表現で抽出する。
// RSS 2.0のitemとAtomのentryの両方の形を試す。
func parseWithRegex(body []byte) []candidate {
	text := string(body)

	blocks := rssItemRe.FindAllString(text, -1)
	if len(blocks) == 0 {
		blocks = atomEntryRe.FindAllString(text, -1)
	}

	var candidates []candidate
	for _, block := range blocks {
		c := candidate{
			title:   extractFirst(titleRe, block),
			url:     extractLink(block),
			excerpt: extractExcerpt(block),
		}
		c.publishedAt = parseDate(extractFirst(dateRe, block))

		candidates = append(candidates, c)
	}

	return candidates
}

// extractLink はブロックから正規URLを優先順位に従って解決する。
// link要素のテキスト → linkのhref属性 → guid（URL形式） → enclosureのurl属性。
func extractLink(block string) string {
	if link := extractFirst(linkTextRe, block); isHTTPURL(link) {
		return link
	}
	if m := linkHrefRe.FindStringSubmatch(block); m != nil && isHTTPURL(m[1]) {
		return strings.TrimSpace(m[1])
	}
	if guid := extractFirst(guidRe, block); isHTTPURL(guid) {
		return guid
	}
	if m := enclosureRe.FindStringSubmatch(block); m != nil && isHTTPURL(m[1]) {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// extractExcerpt はブロックから概要テキストを抽出する。
// description → summary → content の順で最初に見つかったものを使う。
func extractExcerpt(block string) string {
	if s := extractFirst(descRe, block); s != "" {
		return s
	}
	if s := extractFirst(summaryRe, block); s != "" {
		return s
	}
	return extractFirst(contentRe, block)
}

// extractFirst は最初のキャプチャグループをCDATA除去付きで返す。
func extractFirst(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return stripCDATA(m[1])
}

// stripCDATA はCDATAセクションのマーカーを除去する。
func stripCDATA(s string) string {
	if m := cdataRe.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(s)
}
