package summarize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/hitoshi/digestman/internal/metrics"
	"github.com/hitoshi/digestman/internal/model"
	"github.com/hitoshi/digestman/internal/repository"
)

// ModelCaller は要約モデル呼び出しのインターフェース。
// テスト時にモックに差し替え可能。
type ModelCaller interface {
	Complete(ctx context.Context, model, prompt string) (string, error)
}

// minSummaryLength は採用する要約の最小文字数。
// これ未満の応答は形不良としてフォールバックチェーンの次へ進む。
const minSummaryLength = 50

// minCleanLength はノイズ除去後の本文に要求する最小文字数。
const minCleanLength = 100

// wordsPerMinute は読了時間の計算に使う1分あたりの語数。
const wordsPerMinute = 200

// promptTemplate は要約プロンプトの固定テンプレート。
const promptTemplate = `以下の記事を読み、重要なポイントを3〜5個の箇条書きで要約してください。
各ポイントのキーワードを**太字**で強調し、客観的かつ簡潔にまとめてください。

タイトル：%s

本文：
%s`

// ServiceConfig は要約サービスの設定パラメータ。
type ServiceConfig struct {
	// Models はフォールバックチェーンのモデル識別子（優先順）。
	Models []string
	// APIKeyConfigured がfalseの場合、外部APIを呼ばずローカル要約のみ行う。
	APIKeyConfigured bool
	// CallTimeout はモデル呼び出し1回あたりのタイムアウト。
	CallTimeout time.Duration
	// PromptContentBudget はプロンプトに埋め込む本文の最大文字数。
	PromptContentBudget int
	// RatePerSec はモデル呼び出しの秒間レート上限。
	RatePerSec float64
}

// Service は記事の要約生成と永続化を行う。
// 外部モデルのフォールバックチェーンとローカル縮退モードを持ち、
// 要約の存在チェックにより再試行に対して冪等になっている。
type Service struct {
	summaryRepo repository.SummaryRepository
	articleRepo repository.ArticleRepository
	client      ModelCaller
	logger      *slog.Logger
	metrics     metrics.MetricsCollector
	limiter     *rate.Limiter
	config      ServiceConfig
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	summaryRepo repository.SummaryRepository,
	articleRepo repository.ArticleRepository,
	client ModelCaller,
	logger *slog.Logger,
	collector metrics.MetricsCollector,
	config ServiceConfig,
) *Service {
	return &Service{
		summaryRepo: summaryRepo,
		articleRepo: articleRepo,
		client:      client,
		logger:      logger,
		metrics:     collector,
		limiter:     rate.NewLimiter(rate.Limit(config.RatePerSec), 1),
		config:      config,
	}
}

// Summarize は記事の要約を生成して永続化する。
// 要約が既に存在する場合は何もせず既存の要約を返す。
// 外部モデルが全滅してもローカル要約で必ず1件のSummaryを残す。
func (s *Service) Summarize(ctx context.Context, article *model.Article) (*model.Summary, error) {
	// 冪等性: 既存要約があれば生成もAPI呼び出しも行わない
	existing, err := s.summaryRepo.FindByArticleID(ctx, article.ID)
	if err != nil {
		return nil, fmt.Errorf("既存要約の確認に失敗: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	start := time.Now()

	cleaned := CleanText(article.Content, minCleanLength)
	if cleaned == "" {
		cleaned = article.Content
	}

	summaryText, modelUsed := s.generate(ctx, article.Title, cleaned)

	summary := &model.Summary{
		ID:          uuid.New().String(),
		ArticleID:   article.ID,
		SummaryText: summaryText,
		Model:       modelUsed,
		ReadingTime: estimateReadingTime(article.Content),
		CreatedAt:   time.Now(),
	}

	if err := s.summaryRepo.Create(ctx, summary); err != nil {
		// 一意制約違反は並行した再処理の可能性が高いので既存分を採用する
		if again, findErr := s.summaryRepo.FindByArticleID(ctx, article.ID); findErr == nil && again != nil {
			return again, nil
		}
		persistErr := fmt.Errorf("要約の保存に失敗: %w", err)
		s.recordFailure(ctx, article.ID, persistErr)
		return nil, persistErr
	}

	if err := s.articleRepo.MarkProcessed(ctx, article.ID, ""); err != nil {
		s.logger.Error("記事の処理済み記録に失敗しました",
			slog.String("article_id", article.ID),
			slog.String("error", err.Error()),
		)
	}

	s.metrics.RecordSummary(modelUsed)
	s.metrics.RecordSummarizeLatency(time.Since(start))

	s.logger.Info("要約を生成しました",
		slog.String("article_id", article.ID),
		slog.String("model", modelUsed),
		slog.Int("summary_length", len([]rune(summaryText))),
	)

	return summary, nil
}

// recordFailure は要約の失敗を記事のprocessing_errorに記録する。
// 記録自体の失敗はログに残すのみで、元のエラーを覆さない。
func (s *Service) recordFailure(ctx context.Context, articleID string, cause error) {
	if err := s.articleRepo.MarkProcessed(ctx, articleID, cause.Error()); err != nil {
		s.logger.Error("記事の失敗記録に失敗しました",
			slog.String("article_id", articleID),
			slog.String("error", err.Error()),
		)
	}
}

// generate は要約テキストと使用モデル識別子を返す。
// フォールバックチェーンの全モデルが失敗した場合はローカル要約に縮退する。
func (s *Service) generate(ctx context.Context, title, cleaned string) (string, string) {
	if !s.config.APIKeyConfigured {
		s.logger.Info("APIキーが未設定のためローカル要約を生成します")
		return LocalSummary(cleaned), model.ModelLocalMock
	}

	prompt := fmt.Sprintf(promptTemplate, title, TruncateForPrompt(cleaned, s.config.PromptContentBudget))

	for _, modelID := range s.config.Models {
		if err := s.limiter.Wait(ctx); err != nil {
			break
		}

		callCtx, cancel := context.WithTimeout(ctx, s.config.CallTimeout)
		response, err := s.client.Complete(callCtx, modelID, prompt)
		cancel()

		if err != nil {
			s.logger.Warn("モデル呼び出しに失敗したため次のモデルを試します",
				slog.String("model", modelID),
				slog.String("error", err.Error()),
			)
			continue
		}

		response = strings.TrimSpace(response)
		if len([]rune(response)) < minSummaryLength {
			s.logger.Warn("モデル応答が短すぎるため次のモデルを試します",
				slog.String("model", modelID),
				slog.Int("length", len([]rune(response))),
			)
			continue
		}

		return response, modelID
	}

	s.logger.Warn("全モデルの呼び出しに失敗したためローカル要約に縮退します")
	return LocalSummary(cleaned), model.ModelLocalMock
}

// estimateReadingTime は語数から読了時間（分）を見積もる。最小1分。
func estimateReadingTime(text string) int {
	words := len(strings.Fields(text))
	minutes := words / wordsPerMinute
	if minutes < 1 {
		return 1
	}
	return minutes
}
