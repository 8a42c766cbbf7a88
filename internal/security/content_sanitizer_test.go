package security

import (
	"strings"
	"testing"
)

// TestStripTags_RemovesAllTags は全てのHTMLタグが除去されることを検証する。
func TestStripTags_RemovesAllTags(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name       string
		input      string
		wantAbsent []string
		wantText   []string
	}{
		{
			name:       "pタグが除去される",
			input:      "<p>テスト段落</p>",
			wantAbsent: []string{"<p>", "</p>"},
			wantText:   []string{"テスト段落"},
		},
		{
			name:       "リンクタグが除去されテキストは残る",
			input:      `<a href="https://example.com">リンクテキスト</a>`,
			wantAbsent: []string{"<a", "href", "</a>"},
			wantText:   []string{"リンクテキスト"},
		},
		{
			name:       "scriptタグが中身ごと除去される",
			input:      `<p>本文</p><script>alert('xss')</script>`,
			wantAbsent: []string{"<script", "alert"},
			wantText:   []string{"本文"},
		},
		{
			name:       "styleタグが中身ごと除去される",
			input:      `<p>本文</p><style>body{display:none}</style>`,
			wantAbsent: []string{"<style", "display:none"},
			wantText:   []string{"本文"},
		},
		{
			name:       "imgタグが除去される",
			input:      `本文<img src="https://example.com/img.png" alt="画像">続き`,
			wantAbsent: []string{"<img", "src"},
			wantText:   []string{"本文", "続き"},
		},
		{
			name:       "ネストしたタグがすべて除去される",
			input:      "<div><ul><li><strong>項目1</strong></li></ul></div>",
			wantAbsent: []string{"<div", "<ul", "<li", "<strong"},
			wantText:   []string{"項目1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.StripTags(tt.input)
			for _, absent := range tt.wantAbsent {
				if strings.Contains(got, absent) {
					t.Errorf("StripTags(%q) = %q, %q が残っている", tt.input, got, absent)
				}
			}
			for _, want := range tt.wantText {
				if !strings.Contains(got, want) {
					t.Errorf("StripTags(%q) = %q, テキスト %q が失われた", tt.input, got, want)
				}
			}
		})
	}
}

// TestStripTags_DecodesEntities はHTMLエンティティがデコードされることを検証する。
func TestStripTags_DecodesEntities(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		input string
		want  string
	}{
		{"A &amp; B", "A & B"},
		{"&quot;引用&quot;", `"引用"`},
		{"&#39;apostrophe&#39;", "'apostrophe'"},
	}

	for _, tt := range tests {
		got := sanitizer.StripTags(tt.input)
		if !strings.Contains(got, tt.want) {
			t.Errorf("StripTags(%q) = %q, want contains %q", tt.input, got, tt.want)
		}
	}
}

// TestStripTags_EmptyInput は空文字列の入力を安全に処理できることを検証する。
func TestStripTags_EmptyInput(t *testing.T) {
	sanitizer := NewContentSanitizer()

	if got := sanitizer.StripTags(""); got != "" {
		t.Errorf("StripTags(\"\") = %q, expected empty string", got)
	}
}

// TestStripTags_PlainText はプレーンテキストがそのまま通過することを検証する。
func TestStripTags_PlainText(t *testing.T) {
	sanitizer := NewContentSanitizer()

	input := "これはプレーンテキストです。HTMLタグを含みません。"
	if got := sanitizer.StripTags(input); got != input {
		t.Errorf("StripTags(%q) = %q, expected unchanged", input, got)
	}
}

// TestNormalizeWhitespace は連続する空白と改行が単一スペースに畳まれることを検証する。
func TestNormalizeWhitespace(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		input string
		want  string
	}{
		{"a  b\t\tc", "a b c"},
		{"行1\n\n行2\n行3", "行1 行2 行3"},
		{"  前後の空白  ", "前後の空白"},
		{"", ""},
		{"   \n\t  ", ""},
	}

	for _, tt := range tests {
		if got := sanitizer.NormalizeWhitespace(tt.input); got != tt.want {
			t.Errorf("NormalizeWhitespace(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

// TestStripTags_Idempotent は同一入力に対して常に同一出力（冪等性）を検証する。
func TestStripTags_Idempotent(t *testing.T) {
	sanitizer := NewContentSanitizer()

	input := `<p>テスト<strong>太字</strong></p><a href="https://example.com">リンク</a>`

	result1 := sanitizer.StripTags(input)
	result2 := sanitizer.StripTags(result1) // 二重適用

	if result1 != result2 {
		t.Errorf("二重適用で結果が変わった: 1回目=%q, 2回目=%q", result1, result2)
	}
}

// TestContentSanitizerInterface はContentSanitizerServiceインターフェースの適合を検証する。
func TestContentSanitizerInterface(t *testing.T) {
	var _ ContentSanitizerService = NewContentSanitizer()
}
