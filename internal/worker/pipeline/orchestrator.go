// Package pipeline はコンテンツ取り込みタスクの実行と
// スケジューリングを提供する。
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/digestman/internal/article"
	"github.com/hitoshi/digestman/internal/feed"
	"github.com/hitoshi/digestman/internal/fetch"
	"github.com/hitoshi/digestman/internal/metrics"
	"github.com/hitoshi/digestman/internal/model"
	"github.com/hitoshi/digestman/internal/repository"
)

// ContentFetcher はURL取得のインターフェース。
type ContentFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetch.Result, error)
}

// ContentClassifier はフィード判定と自動検出のインターフェース。
type ContentClassifier interface {
	Classify(contentType string, body []byte) feed.Kind
	DiscoverFeedURL(htmlBody []byte, baseURL string) string
}

// FeedParser はフィードからの記事候補抽出のインターフェース。
type FeedParser interface {
	Parse(body []byte, baseURL string, cutoff time.Time) ([]model.ParsedArticle, error)
}

// PageExtractor はWebページからの本文抽出のインターフェース。
type PageExtractor interface {
	Extract(htmlBody []byte, pageURL string) (*model.ParsedArticle, bool)
}

// ArticleResolver は記事の重複排除のインターフェース。
type ArticleResolver interface {
	Resolve(ctx context.Context, sourceID string, parsed model.ParsedArticle) (*article.Decision, error)
}

// SummaryBatcher は記事一覧の一括要約のインターフェース。
type SummaryBatcher interface {
	SummarizeAll(ctx context.Context, articles []*model.Article) (succeeded, failed int)
}

// DigestAggregator はタスク完了後のダイジェスト生成のインターフェース。
type DigestAggregator interface {
	Aggregate(ctx context.Context, userID string, windowStart time.Time) (*model.Digest, error)
}

// sourceOutcome はソース1件の処理結果。processedとskippedは排他。
type sourceOutcome struct {
	processed *model.ProcessedSource
	skipped   *model.SkippedSource
	fetchedOK bool
	fetchErr  string
}

// Orchestrator は取り込みタスク1件を状態機械として実行する。
// ソース単位の失敗はスキップとして吸収され、タスクをfailedに
// 遷移させるのはオーケストレーションレベルの失敗のみ。
type Orchestrator struct {
	taskRepo    repository.TaskRepository
	sourceRepo  repository.SourceRepository
	articleRepo repository.ArticleRepository
	fetcher     ContentFetcher
	classifier  ContentClassifier
	parser      FeedParser
	extractor   PageExtractor
	resolver    ArticleResolver
	batcher     SummaryBatcher
	aggregator  DigestAggregator
	logger      *slog.Logger
	metrics     metrics.MetricsCollector
}

// NewOrchestrator はOrchestratorの新しいインスタンスを生成する。
func NewOrchestrator(
	taskRepo repository.TaskRepository,
	sourceRepo repository.SourceRepository,
	articleRepo repository.ArticleRepository,
	fetcher ContentFetcher,
	classifier ContentClassifier,
	parser FeedParser,
	extractor PageExtractor,
	resolver ArticleResolver,
	batcher SummaryBatcher,
	aggregator DigestAggregator,
	logger *slog.Logger,
	collector metrics.MetricsCollector,
) *Orchestrator {
	return &Orchestrator{
		taskRepo:    taskRepo,
		sourceRepo:  sourceRepo,
		articleRepo: articleRepo,
		fetcher:     fetcher,
		classifier:  classifier,
		parser:      parser,
		extractor:   extractor,
		resolver:    resolver,
		batcher:     batcher,
		aggregator:  aggregator,
		logger:      logger,
		metrics:     collector,
	}
}

// Execute は指定タスクを実行する。終端状態のタスクに対しては何もしない。
// 再実行時は進捗に記録済みのソースを読み飛ばし、途中から再開する。
func (o *Orchestrator) Execute(ctx context.Context, taskID string) error {
	task, err := o.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		loadErr := model.NewTaskLoadFailedError(taskID, err)
		o.failTask(ctx, taskID, loadErr)
		return loadErr
	}
	if task == nil {
		return model.NewTaskNotFoundError(taskID)
	}

	// 終端状態の再実行はno-op
	if task.Status.IsTerminal() {
		o.logger.Info("終端状態のタスクのため実行をスキップします",
			slog.String("task_id", taskID),
			slog.String("status", string(task.Status)),
		)
		return nil
	}

	now := time.Now()

	// pendingのタスクはrunningへの遷移をもって取得権とする。
	// 既にrunningのタスクはClaimPendingで取得済みか中断からの再開。
	if task.Status == model.TaskStatusPending {
		claimed, err := o.taskRepo.MarkRunning(ctx, taskID, now)
		if err != nil {
			loadErr := model.NewTaskLoadFailedError(taskID, err)
			o.failTask(ctx, taskID, loadErr)
			return loadErr
		}
		if !claimed {
			o.logger.Info("別のワーカーが先に取得したタスクのため実行をスキップします",
				slog.String("task_id", taskID),
			)
			return nil
		}
	}

	o.logger.Info("タスクの実行を開始します",
		slog.String("task_id", taskID),
		slog.String("user_id", task.UserID),
		slog.String("time_range", string(task.TimeRange)),
	)

	sources, err := o.sourceRepo.ListActiveByUser(ctx, task.UserID)
	if err != nil {
		listErr := model.NewSourceListFailedError(task.UserID, err)
		o.failTask(ctx, taskID, listErr)
		return listErr
	}

	cutoff := task.TimeRange.CutoffFrom(now)

	progress := task.Progress
	progress.Total = len(sources)

	// 再開時に処理済みソースを読み飛ばすためのID集合。
	// 表示名は一意とは限らないためIDで突き合わせる。
	done := make(map[string]bool, len(progress.ProcessedSources)+len(progress.SkippedSources))
	for _, p := range progress.ProcessedSources {
		done[p.SourceID] = true
	}
	for _, s := range progress.SkippedSources {
		done[s.SourceID] = true
	}

	// 再開時は記録済みの成果を集計に引き継ぐ
	totalArticles := 0
	totalSummaries := 0
	for _, p := range progress.ProcessedSources {
		totalArticles += p.Articles
		totalSummaries += p.Summaries
	}

	for _, source := range sources {
		if done[source.ID] {
			continue
		}

		progress.CurrentSource = source.Name
		if err := o.taskRepo.UpdateProgress(ctx, taskID, &progress); err != nil {
			updateErr := model.NewTaskLoadFailedError(taskID, err)
			o.failTask(ctx, taskID, updateErr)
			return updateErr
		}

		outcome := o.processSource(ctx, source, cutoff)

		if outcome.fetchedOK {
			if err := o.sourceRepo.UpdateFetchSuccess(ctx, source.ID, time.Now()); err != nil {
				o.logger.Error("ソースの取得成功記録に失敗しました",
					slog.String("source_id", source.ID),
					slog.String("error", err.Error()),
				)
			}
		} else {
			if err := o.sourceRepo.UpdateFetchError(ctx, source.ID, outcome.fetchErr); err != nil {
				o.logger.Error("ソースの取得失敗記録に失敗しました",
					slog.String("source_id", source.ID),
					slog.String("error", err.Error()),
				)
			}
		}

		if outcome.processed != nil {
			progress.ProcessedSources = append(progress.ProcessedSources, *outcome.processed)
			totalArticles += outcome.processed.Articles
			totalSummaries += outcome.processed.Summaries
		} else {
			progress.SkippedSources = append(progress.SkippedSources, *outcome.skipped)
		}
		progress.Current = len(progress.ProcessedSources) + len(progress.SkippedSources)
		progress.CurrentSource = ""

		if err := o.taskRepo.UpdateProgress(ctx, taskID, &progress); err != nil {
			updateErr := model.NewTaskLoadFailedError(taskID, err)
			o.failTask(ctx, taskID, updateErr)
			return updateErr
		}
	}

	result := &model.TaskResult{
		Sources:   len(progress.ProcessedSources),
		Articles:  totalArticles,
		Summaries: totalSummaries,
		Message:   completionMessage(len(sources), len(progress.ProcessedSources), len(progress.SkippedSources)),
	}

	if err := o.taskRepo.Complete(ctx, taskID, result, time.Now()); err != nil {
		completeErr := model.NewTaskLoadFailedError(taskID, err)
		o.failTask(ctx, taskID, completeErr)
		return completeErr
	}
	o.metrics.RecordTaskCompleted(string(model.TaskStatusCompleted))

	o.logger.Info("タスクが完了しました",
		slog.String("task_id", taskID),
		slog.Int("sources", result.Sources),
		slog.Int("articles", result.Articles),
		slog.Int("summaries", result.Summaries),
	)

	// 新しい要約が1件でもあればダイジェストを再生成する
	if totalSummaries > 0 {
		if _, err := o.aggregator.Aggregate(ctx, task.UserID, cutoff); err != nil {
			// ダイジェスト生成失敗はタスクの完了を覆さない
			o.logger.Error("ダイジェストの生成に失敗しました",
				slog.String("task_id", taskID),
				slog.String("user_id", task.UserID),
				slog.String("error", err.Error()),
			)
		}
	}

	return nil
}

// failTask はタスクをfailedに遷移させる。遷移自体の失敗はログに残すのみ。
func (o *Orchestrator) failTask(ctx context.Context, taskID string, cause error) {
	if err := o.taskRepo.Fail(ctx, taskID, cause.Error(), time.Now()); err != nil {
		o.logger.Error("タスクの失敗記録に失敗しました",
			slog.String("task_id", taskID),
			slog.String("error", err.Error()),
		)
		return
	}
	o.metrics.RecordTaskCompleted(string(model.TaskStatusFailed))
}

// processSource はソース1件の取得から要約までを実行する。
// エラーはスキップ結果に変換され、呼び出し元へは返さない。
func (o *Orchestrator) processSource(ctx context.Context, source *model.Source, cutoff time.Time) sourceOutcome {
	result, err := o.fetcher.Fetch(ctx, source.URL)
	if err != nil {
		o.metrics.RecordFetchFailure()
		return sourceOutcome{
			skipped:  &model.SkippedSource{SourceID: source.ID, SourceName: source.Name, Reason: model.SkipReasonUnreachable},
			fetchErr: err.Error(),
		}
	}
	o.metrics.RecordFetchSuccess()

	parsed, skipReason := o.collectArticles(ctx, source, result, cutoff)
	if skipReason != "" {
		return sourceOutcome{
			skipped:   &model.SkippedSource{SourceID: source.ID, SourceName: source.Name, Reason: skipReason},
			fetchedOK: true,
		}
	}

	articleCount, toSummarize := o.resolveArticles(ctx, source, parsed)

	if articleCount == 0 {
		return sourceOutcome{
			skipped:   &model.SkippedSource{SourceID: source.ID, SourceName: source.Name, Reason: model.SkipReasonNoRecentArticles},
			fetchedOK: true,
		}
	}

	succeeded := 0
	if len(toSummarize) > 0 {
		var failed int
		succeeded, failed = o.batcher.SummarizeAll(ctx, toSummarize)

		if succeeded == 0 && failed > 0 {
			return sourceOutcome{
				skipped:   &model.SkippedSource{SourceID: source.ID, SourceName: source.Name, Reason: model.SkipReasonAllArticlesFailed},
				fetchedOK: true,
			}
		}
	}

	return sourceOutcome{
		processed: &model.ProcessedSource{
			SourceID:   source.ID,
			SourceName: source.Name,
			Articles:   articleCount,
			Summaries:  succeeded,
		},
		fetchedOK: true,
	}
}

// collectArticles は取得結果を分類し、記事候補の一覧を組み立てる。
// 候補を作れない場合はスキップ理由を返す。
func (o *Orchestrator) collectArticles(ctx context.Context, source *model.Source, result *fetch.Result, cutoff time.Time) ([]model.ParsedArticle, string) {
	kind := o.classifier.Classify(result.ContentType(), result.Body)

	if kind == feed.KindFeed {
		articles, err := o.parser.Parse(result.Body, source.URL, cutoff)
		if err != nil {
			return nil, model.SkipReasonNotAFeed
		}
		if len(articles) == 0 {
			return nil, model.SkipReasonNoRecentArticles
		}
		return articles, ""
	}

	// Webページ: まずフィード自動検出を試み、見つかればそちらを優先する
	if feedURL := o.classifier.DiscoverFeedURL(result.Body, source.URL); feedURL != "" {
		o.logger.Info("ページからフィードを検出しました",
			slog.String("source_url", source.URL),
			slog.String("feed_url", feedURL),
		)

		if feedResult, err := o.fetcher.Fetch(ctx, feedURL); err == nil {
			if o.classifier.Classify(feedResult.ContentType(), feedResult.Body) == feed.KindFeed {
				if articles, err := o.parser.Parse(feedResult.Body, feedURL, cutoff); err == nil && len(articles) > 0 {
					return articles, ""
				}
			}
		}
		// 検出フィードが使えない場合はページ本文の抽出に戻る
	}

	parsed, ok := o.extractor.Extract(result.Body, source.URL)
	if !ok {
		return nil, model.SkipReasonNoRecentArticles
	}
	if parsed.Title == "" {
		parsed.Title = source.Name
	}
	return []model.ParsedArticle{*parsed}, ""
}

// resolveArticles は記事候補の重複排除と必要に応じた本文の再取得を行う。
// 処理対象とした記事数と、要約が必要な記事の一覧を返す。
func (o *Orchestrator) resolveArticles(ctx context.Context, source *model.Source, parsed []model.ParsedArticle) (int, []*model.Article) {
	articleCount := 0
	var toSummarize []*model.Article

	for _, p := range parsed {
		decision, err := o.resolver.Resolve(ctx, source.ID, p)
		if err != nil {
			o.logger.Error("記事の重複排除に失敗しました",
				slog.String("source_id", source.ID),
				slog.String("url", p.URL),
				slog.String("error", err.Error()),
			)
			continue
		}

		articleCount++

		if decision.Skip {
			continue
		}

		a := decision.Article
		if decision.NeedsFetch {
			if err := o.fetchArticleContent(ctx, a); err != nil {
				o.logger.Warn("記事本文の取得に失敗しました",
					slog.String("article_id", a.ID),
					slog.String("url", a.URL),
					slog.String("error", err.Error()),
				)
				continue
			}
		}

		toSummarize = append(toSummarize, a)
	}

	o.metrics.RecordArticlesCreated(len(toSummarize))
	return articleCount, toSummarize
}

// fetchArticleContent は記事ページを取得して本文を抽出し、レコードを更新する。
// 保存済み本文がフィードの概要だけで要約に足りない場合に呼ばれる。
func (o *Orchestrator) fetchArticleContent(ctx context.Context, a *model.Article) error {
	result, err := o.fetcher.Fetch(ctx, a.URL)
	if err != nil {
		return err
	}

	parsed, ok := o.extractor.Extract(result.Body, a.URL)
	if !ok {
		return model.NewContentTooShortError(0)
	}

	a.Content = parsed.Content
	if err := o.articleRepo.UpdateContent(ctx, a.ID, parsed.Content); err != nil {
		return fmt.Errorf("記事本文の更新に失敗: %w", err)
	}
	return nil
}

// completionMessage は完了メッセージを組み立てる。
func completionMessage(total, processed, skipped int) string {
	return fmt.Sprintf("%dソース中%d件を処理、%d件をスキップしました", total, processed, skipped)
}
