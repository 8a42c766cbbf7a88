package summarize

import "strings"

// localSummaryMaxSentences はローカル要約に採用する最大文数。
const localSummaryMaxSentences = 3

// localSummaryMaxRunes はローカル要約の最大文字数。
const localSummaryMaxRunes = 500

// LocalSummary は外部モデルなしで決定的な抽出型要約を生成する。
// 本文の先頭から代表的な文（20文字超）を拾って結合する。
// APIキー未設定時や全モデル失敗時の縮退運転に使われ、
// パイプラインが外部APIの可用性だけで止まらないことを保証する。
func LocalSummary(text string) string {
	var sentences []string
	for _, frag := range sentenceSplitRe.Split(text, -1) {
		frag = strings.TrimSpace(frag)
		if len([]rune(frag)) <= 20 {
			continue
		}
		sentences = append(sentences, frag)
		if len(sentences) >= localSummaryMaxSentences {
			break
		}
	}

	summary := strings.Join(sentences, "。")
	if summary == "" {
		// 文が拾えない場合は本文先頭をそのまま使う
		summary = strings.TrimSpace(text)
	}

	runes := []rune(summary)
	if len(runes) > localSummaryMaxRunes {
		summary = string(runes[:localSummaryMaxRunes])
	}
	return summary
}
