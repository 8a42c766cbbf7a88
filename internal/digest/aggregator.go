// Package digest は時間窓内の要約を日付単位のダイジェストにまとめる。
package digest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/digestman/internal/model"
	"github.com/hitoshi/digestman/internal/repository"
)

// MaxDigestItems は1ダイジェストに含める要約の最大数。
const MaxDigestItems = 20

// Aggregator はタスク完了後のダイジェスト生成を行う。
// 同一の(ユーザー, 生成日)に対する再生成は既存分を削除してから
// 作り直す置き換え方式で、重複したダイジェストを作らない。
type Aggregator struct {
	digestRepo  repository.DigestRepository
	summaryRepo repository.SummaryRepository
	logger      *slog.Logger
}

// NewAggregator はAggregatorの新しいインスタンスを生成する。
func NewAggregator(
	digestRepo repository.DigestRepository,
	summaryRepo repository.SummaryRepository,
	logger *slog.Logger,
) *Aggregator {
	return &Aggregator{
		digestRepo:  digestRepo,
		summaryRepo: summaryRepo,
		logger:      logger,
	}
}

// Aggregate はユーザーの時間窓内の要約を集めてダイジェストを生成する。
// 対象の要約が0件の場合は何も作らずnilを返す。
func (a *Aggregator) Aggregate(ctx context.Context, userID string, windowStart time.Time) (*model.Digest, error) {
	summaries, err := a.summaryRepo.ListRecentByUser(ctx, userID, windowStart, MaxDigestItems)
	if err != nil {
		return nil, fmt.Errorf("要約一覧の取得に失敗: %w", err)
	}

	if len(summaries) == 0 {
		a.logger.Info("対象の要約がないためダイジェストを作成しません",
			slog.String("user_id", userID),
		)
		return nil, nil
	}

	now := time.Now()
	today := generationDate(now)

	// 同一生成日の既存ダイジェストは置き換える
	if err := a.digestRepo.DeleteByUserAndDate(ctx, userID, today); err != nil {
		return nil, fmt.Errorf("既存ダイジェストの削除に失敗: %w", err)
	}

	digest := &model.Digest{
		ID:             uuid.New().String(),
		UserID:         userID,
		Title:          digestTitle(now),
		GenerationDate: today,
		CreatedAt:      now,
	}

	// ListRecentByUserは新しい順で返すため、そのままが表示順になる
	items := make([]*model.DigestItem, 0, len(summaries))
	for i, summary := range summaries {
		items = append(items, &model.DigestItem{
			ID:            uuid.New().String(),
			DigestID:      digest.ID,
			SummaryID:     summary.ID,
			OrderPosition: i,
		})
	}

	if err := a.digestRepo.CreateWithItems(ctx, digest, items); err != nil {
		return nil, fmt.Errorf("ダイジェストの作成に失敗: %w", err)
	}

	a.logger.Info("ダイジェストを作成しました",
		slog.String("digest_id", digest.ID),
		slog.String("user_id", userID),
		slog.Int("items", len(items)),
	)

	return digest, nil
}

// generationDate は生成日時からダイジェストの生成日を算出する。
// ローカルの暦日を採用し、日付カラム向けにUTC深夜0時へ正規化する。
func generationDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// digestTitle は生成日時からダイジェストのタイトルを組み立てる。
func digestTitle(t time.Time) string {
	return fmt.Sprintf("%d年%d月%d日のダイジェスト", t.Year(), int(t.Month()), t.Day())
}
