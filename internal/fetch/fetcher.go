// Package fetch はクライアント識別子ローテーション付きのHTTP取得を提供する。
package fetch

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/digestman/internal/metrics"
	"github.com/hitoshi/digestman/internal/model"
)

// SSRFValidator はSSRF検証のインターフェース。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// defaultUserAgents はデフォルトのクライアント識別子ローテーション。
// デフォルトクライアントを弾くサーバーやフィードリーダーのみ許可する
// サーバーの両方を通過できるよう、ブラウザとボットの識別子を順に試す。
var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Digestman/1.0 Content Digest Bot",
}

// Result はHTTP取得の結果を表す。
type Result struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// ContentType はレスポンスのContent-Typeヘッダを返す。
func (r *Result) ContentType() string {
	return r.Header.Get("Content-Type")
}

// Fetcher はクライアント識別子をローテーションしながらURLを取得する。
// 各試行は個別のタイムアウトで制限され、最初に成功ステータスを返した
// 試行の結果を採用する。リダイレクトには追従する。
type Fetcher struct {
	ssrfGuard   SSRFValidator
	logger      *slog.Logger
	metrics     metrics.MetricsCollector
	timeout     time.Duration
	maxBodySize int64
	userAgents  []string
}

// NewFetcher はFetcherの新しいインスタンスを生成する。
func NewFetcher(
	ssrfGuard SSRFValidator,
	logger *slog.Logger,
	collector metrics.MetricsCollector,
	timeout time.Duration,
	maxBodySize int64,
) *Fetcher {
	return &Fetcher{
		ssrfGuard:   ssrfGuard,
		logger:      logger,
		metrics:     collector,
		timeout:     timeout,
		maxBodySize: maxBodySize,
		userAgents:  defaultUserAgents,
	}
}

// Fetch はURLを取得する。全識別子での試行が失敗した場合は
// unreachableエラーを返す。呼び出し側はこれをソースのスキップとして
// 扱い、タスク全体を失敗させてはならない。
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	if err := f.ssrfGuard.ValidateURL(rawURL); err != nil {
		f.logger.Warn("SSRF検証に失敗しました",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		return nil, model.NewSSRFBlockedError()
	}

	client := f.ssrfGuard.NewSafeClient(f.timeout, f.maxBodySize)

	var lastReason string
	for _, ua := range f.userAgents {
		start := time.Now()

		result, reason := f.attempt(ctx, client, rawURL, ua)
		f.metrics.RecordFetchLatency(time.Since(start))

		if result != nil {
			return result, nil
		}

		lastReason = reason
		f.logger.Warn("フェッチ試行に失敗しました",
			slog.String("url", rawURL),
			slog.String("user_agent", ua),
			slog.String("reason", reason),
		)

		// 呼び出し元のキャンセルは識別子を替えても回復しない
		if ctx.Err() != nil {
			break
		}
	}

	return nil, model.NewUnreachableError(rawURL, lastReason)
}

// attempt は単一のクライアント識別子での取得を1回試行する。
// 成功時はResultを、失敗時はnilと理由文字列を返す。
func (f *Fetcher) attempt(ctx context.Context, client *http.Client, rawURL, userAgent string) (*Result, string) {
	attemptCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "リクエスト作成失敗: " + err.Error()
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, text/html, */*")

	resp, err := client.Do(req)
	if err != nil {
		return nil, "HTTPリクエスト失敗: " + err.Error()
	}
	defer resp.Body.Close()

	f.metrics.RecordHTTPStatus(resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// 成功ステータス以外は次の識別子で再試行する
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, "HTTPステータス " + resp.Status
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return nil, "レスポンス読み取り失敗: " + err.Error()
	}

	return &Result{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, ""
}
