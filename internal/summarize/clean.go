package summarize

import (
	"regexp"
	"strings"
)

// noiseLinePatterns は要約前に取り除くメタデータ的な行のパターン。
// 集約サイト経由の本文には投票数・コメント数・投稿者行・タグ行が
// 混ざりやすく、そのまま渡すと要約の質が落ちる。
var noiseLinePatterns = []*regexp.Regexp{
	// 投票数・コメント数（例: "123 points", "45 comments"）
	regexp.MustCompile(`(?i)^\d+\s*(points?|votes?|comments?|upvotes?)\b`),
	// URLだけの行
	regexp.MustCompile(`(?i)^https?://\S+$`),
	// 投稿者行（例: "posted by alice", "submitted by bob"）
	regexp.MustCompile(`(?i)^(posted|submitted)\s+by\b`),
	regexp.MustCompile(`^投稿者[:：]`),
	// タグ・カテゴリ行
	regexp.MustCompile(`(?i)^(tags?|categories|category|filed under)\s*[:：]`),
	// シェア・ナビゲーション行
	regexp.MustCompile(`(?i)^(share|tweet|reply|permalink)$`),
}

// sentenceSplitRe は文区切りの候補文字。
var sentenceSplitRe = regexp.MustCompile(`[。．.!?！?？\n]+`)

// CleanText は本文からノイズ行を除去し、空白を正規化する。
// 除去後のテキストがminLength未満に痩せた場合は、元テキストから
// 文らしい断片を拾い直した結果を返す（最終手段）。
func CleanText(text string, minLength int) string {
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if isNoiseLine(line) {
			continue
		}
		kept = append(kept, line)
	}

	cleaned := strings.Join(strings.Fields(strings.Join(kept, " ")), " ")
	if len([]rune(cleaned)) >= minLength {
		return cleaned
	}

	// ノイズ除去で本文が痩せすぎた場合は文の拾い直しにフォールバック
	remined := mineSentences(text)
	if len([]rune(remined)) > len([]rune(cleaned)) {
		return remined
	}
	return cleaned
}

// isNoiseLine は行がノイズパターンのいずれかに一致するかを判定する。
func isNoiseLine(line string) bool {
	for _, re := range noiseLinePatterns {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// mineSentences は生テキストから文らしい断片を拾い集める。
// 長さが20〜500文字で空白を1つ以上含む断片のみ採用する。
func mineSentences(text string) string {
	var sentences []string
	for _, frag := range sentenceSplitRe.Split(text, -1) {
		frag = strings.TrimSpace(frag)
		n := len([]rune(frag))
		if n < 20 || n > 500 {
			continue
		}
		if !strings.Contains(frag, " ") && !containsJapanese(frag) {
			continue
		}
		sentences = append(sentences, frag)
	}
	return strings.Join(sentences, " ")
}

// containsJapanese は文字列に日本語文字が含まれるかを判定する。
// 日本語の文は空白を含まないため、空白ヒューリスティックの補完に使う。
func containsJapanese(s string) bool {
	for _, r := range s {
		if (r >= 0x3040 && r <= 0x30FF) || (r >= 0x4E00 && r <= 0x9FFF) {
			return true
		}
	}
	return false
}

// TruncateForPrompt はプロンプトに埋め込む本文を文字数予算内に切り詰める。
func TruncateForPrompt(text string, budget int) string {
	runes := []rune(text)
	if len(runes) <= budget {
		return text
	}
	return string(runes[:budget])
}
