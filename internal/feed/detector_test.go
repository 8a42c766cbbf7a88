package feed

import (
	"testing"
)

func TestClassify_ByContentType(t *testing.T) {
	d := NewDetector()

	tests := []struct {
		name        string
		contentType string
		want        Kind
	}{
		{"RSSのContent-Type", "application/rss+xml", KindFeed},
		{"AtomのContent-Type", "application/atom+xml", KindFeed},
		{"汎用XMLのContent-Type", "text/xml; charset=utf-8", KindFeed},
		{"application/xml", "application/xml", KindFeed},
		{"HTMLのContent-Type", "text/html; charset=utf-8", KindWebPage},
		{"不明なContent-Type", "application/octet-stream", KindWebPage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.Classify(tt.contentType, nil); got != tt.want {
				t.Errorf("Classify(%q) = %q, want %q", tt.contentType, got, tt.want)
			}
		})
	}
}

// TestClassify_ByBody はContent-Typeを誤申告するサーバーに対して
// ボディの判定でフィードを検出できることを検証する。
func TestClassify_ByBody(t *testing.T) {
	d := NewDetector()

	tests := []struct {
		name string
		body string
		want Kind
	}{
		{
			name: "text/htmlと申告されたRSS",
			body: `<?xml version="1.0"?><rss version="2.0"><channel><title>Blog</title></channel></rss>`,
			want: KindFeed,
		},
		{
			name: "RDFフィード",
			body: `<?xml version="1.0"?><rdf:RDF xmlns="http://purl.org/rss/1.0/"></rdf:RDF>`,
			want: KindFeed,
		},
		{
			name: "Atomフィード",
			body: `<?xml version="1.0"?><feed xmlns="http://www.w3.org/2005/Atom"><title>Blog</title></feed>`,
			want: KindFeed,
		},
		{
			name: "通常のHTMLページ",
			body: `<!DOCTYPE html><html><head><title>My Page</title></head><body></body></html>`,
			want: KindWebPage,
		},
		{
			name: "feedタグだけでAtom namespaceのないHTML",
			body: `<html><body><div class="feed">news feed</div></body></html>`,
			want: KindWebPage,
		},
		{
			name: "空ボディ",
			body: "",
			want: KindWebPage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.Classify("text/html", []byte(tt.body)); got != tt.want {
				t.Errorf("Classify = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseFeedLinksFromHTML_FindsAlternateLinks(t *testing.T) {
	d := NewDetector()

	htmlBody := `<!DOCTYPE html>
<html>
<head>
  <title>My Blog</title>
  <link rel="alternate" type="application/rss+xml" title="RSS" href="/feed.xml">
  <link rel="alternate" type="application/atom+xml" title="Atom" href="https://example.com/atom.xml">
  <link rel="stylesheet" href="/style.css">
</head>
<body>
  <link rel="alternate" type="application/rss+xml" href="/body-feed.xml">
</body>
</html>`

	candidates := d.ParseFeedLinksFromHTML([]byte(htmlBody), "https://example.com/blog/")

	if len(candidates) != 2 {
		t.Fatalf("候補数 = %d, want 2 (body内のlinkは対象外)", len(candidates))
	}

	// 相対URLが絶対URLに解決されること
	if candidates[0].URL != "https://example.com/feed.xml" {
		t.Errorf("候補1のURL = %q, want %q", candidates[0].URL, "https://example.com/feed.xml")
	}
	if candidates[0].FeedType != FeedTypeRSS {
		t.Errorf("候補1のFeedType = %q, want %q", candidates[0].FeedType, FeedTypeRSS)
	}
	if candidates[0].Title != "RSS" {
		t.Errorf("候補1のTitle = %q, want %q", candidates[0].Title, "RSS")
	}

	if candidates[1].URL != "https://example.com/atom.xml" {
		t.Errorf("候補2のURL = %q, want %q", candidates[1].URL, "https://example.com/atom.xml")
	}
	if candidates[1].FeedType != FeedTypeAtom {
		t.Errorf("候補2のFeedType = %q, want %q", candidates[1].FeedType, FeedTypeAtom)
	}
}

func TestParseFeedLinksFromHTML_NoFeedLinks(t *testing.T) {
	d := NewDetector()

	htmlBody := `<html><head><title>No feeds here</title></head><body></body></html>`
	candidates := d.ParseFeedLinksFromHTML([]byte(htmlBody), "https://example.com/")

	if len(candidates) != 0 {
		t.Errorf("候補数 = %d, want 0", len(candidates))
	}
}

func TestSelectBestFeed_PrefersSameHost(t *testing.T) {
	d := NewDetector()

	candidates := []FeedCandidate{
		{URL: "https://feedburner.com/myblog", FeedType: FeedTypeAtom},
		{URL: "https://example.com/feed.xml", FeedType: FeedTypeRSS},
	}

	best := d.SelectBestFeed(candidates, "https://example.com/blog")
	if best == nil {
		t.Fatal("expected non-nil candidate")
	}
	if best.URL != "https://example.com/feed.xml" {
		t.Errorf("同一ホストの候補が優先されるべき: got %q", best.URL)
	}
}

func TestSelectBestFeed_PrefersAtomOverRSS(t *testing.T) {
	d := NewDetector()

	candidates := []FeedCandidate{
		{URL: "https://example.com/rss.xml", FeedType: FeedTypeRSS},
		{URL: "https://example.com/atom.xml", FeedType: FeedTypeAtom},
	}

	best := d.SelectBestFeed(candidates, "https://example.com/")
	if best == nil {
		t.Fatal("expected non-nil candidate")
	}
	if best.URL != "https://example.com/atom.xml" {
		t.Errorf("Atomが優先されるべき: got %q", best.URL)
	}
}

func TestSelectBestFeed_EmptyCandidates(t *testing.T) {
	d := NewDetector()

	if best := d.SelectBestFeed(nil, "https://example.com/"); best != nil {
		t.Errorf("候補なしではnilを返すべき: got %+v", best)
	}
}

func TestDiscoverFeedURL(t *testing.T) {
	d := NewDetector()

	htmlBody := `<html><head>
<link rel="alternate" type="application/rss+xml" href="/feed.xml">
</head><body></body></html>`

	got := d.DiscoverFeedURL([]byte(htmlBody), "https://example.com/")
	if got != "https://example.com/feed.xml" {
		t.Errorf("DiscoverFeedURL = %q, want %q", got, "https://example.com/feed.xml")
	}

	if got := d.DiscoverFeedURL([]byte("<html><head></head><body></body></html>"), "https://example.com/"); got != "" {
		t.Errorf("フィードのないページでは空文字列を返すべき: got %q", got)
	}
}
