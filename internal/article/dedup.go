// Package article は記事の重複排除と登録を提供する。
package article

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/digestman/internal/model"
	"github.com/hitoshi/digestman/internal/repository"
)

// Decision は記事候補1件に対する処理方針を表す。
type Decision struct {
	// Skip がtrueの場合、この記事はネットワークもAIも使わずに読み飛ばす。
	Skip bool
	// SkipReason はスキップ理由。進捗記録に使う。
	SkipReason string
	// Article は処理対象の記事レコード。Skip=falseの場合は必ず設定される。
	Article *model.Article
	// NeedsFetch は保存済み本文が短すぎて再取得が必要かどうか。
	NeedsFetch bool
}

// SkipReasonAlreadyProcessed は要約済み記事のスキップ理由。
const SkipReasonAlreadyProcessed = "already processed"

// Deduplicator は(ソース, URL)による記事の重複排除を行う。
// 要約が既に存在する記事をAI呼び出し前に除外するのが主目的で、
// 再実行時の重複したAIコストを防ぐ一次防衛線になる。
type Deduplicator struct {
	articleRepo      repository.ArticleRepository
	summaryRepo      repository.SummaryRepository
	logger           *slog.Logger
	minContentLength int
}

// NewDeduplicator はDeduplicatorの新しいインスタンスを生成する。
func NewDeduplicator(
	articleRepo repository.ArticleRepository,
	summaryRepo repository.SummaryRepository,
	logger *slog.Logger,
	minContentLength int,
) *Deduplicator {
	return &Deduplicator{
		articleRepo:      articleRepo,
		summaryRepo:      summaryRepo,
		logger:           logger,
		minContentLength: minContentLength,
	}
}

// Resolve は記事候補の処理方針を決定する。
//   - 既存記事に要約あり: スキップ（AI呼び出し前に打ち切る）
//   - 既存記事に要約なし: 保存済み本文が十分なら再利用、不足なら再取得
//   - 記事が未登録: 新規レコードを作成してから処理続行
func (d *Deduplicator) Resolve(ctx context.Context, sourceID string, parsed model.ParsedArticle) (*Decision, error) {
	existing, err := d.articleRepo.FindBySourceAndURL(ctx, sourceID, parsed.URL)
	if err != nil {
		return nil, fmt.Errorf("既存記事の検索に失敗: %w", err)
	}

	if existing != nil {
		summary, err := d.summaryRepo.FindByArticleID(ctx, existing.ID)
		if err != nil {
			return nil, fmt.Errorf("既存要約の検索に失敗: %w", err)
		}

		if summary != nil {
			d.logger.Debug("要約済み記事をスキップします",
				slog.String("article_id", existing.ID),
				slog.String("url", parsed.URL),
			)
			return &Decision{
				Skip:       true,
				SkipReason: SkipReasonAlreadyProcessed,
				Article:    existing,
			}, nil
		}

		// 過去の実行が途中で失敗した記事。本文が残っていれば再利用する。
		return &Decision{
			Article:    existing,
			NeedsFetch: len([]rune(existing.Content)) < d.minContentLength,
		}, nil
	}

	now := time.Now()
	newArticle := &model.Article{
		ID:          uuid.New().String(),
		SourceID:    sourceID,
		Title:       parsed.Title,
		URL:         parsed.URL,
		Content:     parsed.Content,
		PublishedAt: parsed.PublishedAt,
		CreatedAt:   now,
	}

	if err := d.articleRepo.Create(ctx, newArticle); err != nil {
		return nil, fmt.Errorf("記事の登録に失敗: %w", err)
	}

	return &Decision{
		Article:    newArticle,
		NeedsFetch: len([]rune(newArticle.Content)) < d.minContentLength,
	}, nil
}
