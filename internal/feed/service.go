// Package feed はフィード判定とフィード解析のドメインロジックを提供する。
package feed

import (
	"context"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/digestman/internal/fetch"
	"github.com/hitoshi/digestman/internal/model"
)

// ContentFetcher はURL取得のインターフェース。
// テスタビリティのためFetcherを抽象化する。
type ContentFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetch.Result, error)
}

// ValidationService はソース登録前のURL検証プローブを提供する。
// 実際にURLを取得してフィードかWebページかを判定し、フィードの場合は
// タイトルと概要を読み取って返す。
type ValidationService struct {
	fetcher  ContentFetcher
	detector *Detector
	logger   *slog.Logger
}

// NewValidationService はValidationServiceの新しいインスタンスを生成する。
func NewValidationService(fetcher ContentFetcher, detector *Detector, logger *slog.Logger) *ValidationService {
	return &ValidationService{
		fetcher:  fetcher,
		detector: detector,
		logger:   logger,
	}
}

// Validate はURLを検証プローブする。
// フロー: URL形式チェック → 取得 → 分類 → フィードならメタデータ読み取り、
// Webページならフィード自動検出を試行。
// 到達不能やフィードでない場合もValid=falseの結果として返し、
// エラーを返すのはURL形式が不正な場合のみ。
func (s *ValidationService) Validate(ctx context.Context, rawURL string) (*model.SourceValidation, error) {
	rawURL = strings.TrimSpace(rawURL)
	if err := validateURLFormat(rawURL); err != nil {
		return nil, err
	}

	result, err := s.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		s.logger.Warn("検証プローブで取得に失敗しました",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		return &model.SourceValidation{
			Valid:   false,
			Message: "URLに到達できませんでした。URLが正しいか確認してください。",
		}, nil
	}

	if s.detector.Classify(result.ContentType(), result.Body) == KindFeed {
		return s.probeFeed(rawURL, result.Body), nil
	}

	// Webページ: 広告されたフィードを探す
	if feedURL := s.detector.DiscoverFeedURL(result.Body, rawURL); feedURL != "" {
		feedResult, err := s.fetcher.Fetch(ctx, feedURL)
		if err == nil && s.detector.Classify(feedResult.ContentType(), feedResult.Body) == KindFeed {
			validation := s.probeFeed(feedURL, feedResult.Body)
			validation.Message = "ページからフィードを検出しました。"
			return validation, nil
		}
	}

	// フィードのないWebページも本文抽出の対象として登録できる
	return &model.SourceValidation{
		Valid:   true,
		IsFeed:  false,
		Title:   extractHTMLTitle(result.Body),
		Message: "フィードは見つかりませんでしたが、Webページとして登録できます。",
	}, nil
}

// probeFeed はフィードボディからタイトルと概要を読み取る。
// 解析に失敗してもフィードとしての登録は妨げない。
func (s *ValidationService) probeFeed(feedURL string, body []byte) *model.SourceValidation {
	validation := &model.SourceValidation{
		Valid:   true,
		IsFeed:  true,
		FeedURL: feedURL,
		Message: "有効なフィードです。",
	}

	parsed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		s.logger.Warn("検証プローブでフィード解析に失敗しました",
			slog.String("url", feedURL),
			slog.String("error", err.Error()),
		)
		return validation
	}

	validation.Title = strings.TrimSpace(parsed.Title)
	validation.Description = strings.TrimSpace(parsed.Description)
	return validation
}

// validateURLFormat はURLがhttp/httpsの絶対URLであることを検証する。
func validateURLFormat(rawURL string) *model.PipelineError {
	if rawURL == "" {
		return model.NewInvalidURLError("URLが空です")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return model.NewInvalidURLError(err.Error())
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return model.NewInvalidURLError("スキームは http または https のみ使用できます")
	}
	if u.Host == "" {
		return model.NewInvalidURLError("ホスト名がありません")
	}
	return nil
}

// htmlTitleRe はHTMLのtitle要素を取り出すパターン。
var htmlTitleRe = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)

// extractHTMLTitle はHTMLのtitle要素の中身を取り出す。
// 検証結果の表示用であり、失敗時は空文字列でよい。
func extractHTMLTitle(body []byte) string {
	m := htmlTitleRe.FindSubmatch(body)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(string(m[1]))
}
