package summarize

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/digestman/internal/model"
)

// ArticleSummarizer は記事1件の要約処理のインターフェース。
// テスト時にモックに差し替え可能。
type ArticleSummarizer interface {
	Summarize(ctx context.Context, article *model.Article) (*model.Summary, error)
}

// BatchConfig は一括要約の設定パラメータ。
type BatchConfig struct {
	// BatchSize は同時に投入する要約リクエスト数。
	BatchSize int
	// BatchDelay はバッチ間の待機時間。
	BatchDelay time.Duration
}

// DefaultBatchConfig はデフォルトの一括要約設定を返す。
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		BatchSize:  5,
		BatchDelay: time.Second,
	}
}

// Batcher は多数の記事の要約を固定サイズのバッチに分けて実行する。
// 下流のAI APIを圧迫しないための意図的なバックプレッシャであり、
// 無制限の並行実行は行わない。
type Batcher struct {
	svc    ArticleSummarizer
	logger *slog.Logger
	config BatchConfig
}

// NewBatcher はBatcherの新しいインスタンスを生成する。
func NewBatcher(svc ArticleSummarizer, logger *slog.Logger, config BatchConfig) *Batcher {
	return &Batcher{
		svc:    svc,
		logger: logger,
		config: config,
	}
}

// SummarizeAll は記事一覧をバッチ単位で要約する。
// 個別記事の失敗は記録するだけで続行し、成功数と失敗数を返す。
func (b *Batcher) SummarizeAll(ctx context.Context, articles []*model.Article) (succeeded, failed int) {
	for i := 0; i < len(articles); i += b.config.BatchSize {
		if ctx.Err() != nil {
			failed += len(articles) - i
			return succeeded, failed
		}

		// バッチ間インターバル（初回は待たない）
		if i > 0 {
			select {
			case <-ctx.Done():
				failed += len(articles) - i
				return succeeded, failed
			case <-time.After(b.config.BatchDelay):
			}
		}

		end := i + b.config.BatchSize
		if end > len(articles) {
			end = len(articles)
		}
		batch := articles[i:end]

		var mu sync.Mutex
		var wg sync.WaitGroup
		for _, article := range batch {
			wg.Add(1)
			go func(a *model.Article) {
				defer wg.Done()

				if _, err := b.svc.Summarize(ctx, a); err != nil {
					b.logger.Error("記事の要約に失敗しました",
						slog.String("article_id", a.ID),
						slog.String("url", a.URL),
						slog.String("error", err.Error()),
					)
					mu.Lock()
					failed++
					mu.Unlock()
					return
				}

				mu.Lock()
				succeeded++
				mu.Unlock()
			}(article)
		}
		wg.Wait()
	}

	return succeeded, failed
}
