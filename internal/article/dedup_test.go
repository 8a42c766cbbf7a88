package article

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/digestman/internal/model"
)

// stubArticleRepo はArticleRepositoryのテスト用スタブ。
type stubArticleRepo struct {
	existing map[string]*model.Article // key: sourceID + "|" + url
	created  []*model.Article
	findErr  error
	creatErr error
}

func (s *stubArticleRepo) FindByID(ctx context.Context, id string) (*model.Article, error) {
	return nil, nil
}

func (s *stubArticleRepo) FindBySourceAndURL(ctx context.Context, sourceID, url string) (*model.Article, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.existing[sourceID+"|"+url], nil
}

func (s *stubArticleRepo) Create(ctx context.Context, article *model.Article) error {
	if s.creatErr != nil {
		return s.creatErr
	}
	s.created = append(s.created, article)
	return nil
}

func (s *stubArticleRepo) UpdateContent(ctx context.Context, id, content string) error {
	return nil
}

func (s *stubArticleRepo) MarkProcessed(ctx context.Context, id string, processingError string) error {
	return nil
}

// stubSummaryRepo はSummaryRepositoryのテスト用スタブ。
type stubSummaryRepo struct {
	summaries map[string]*model.Summary // key: articleID
	findErr   error
}

func (s *stubSummaryRepo) FindByArticleID(ctx context.Context, articleID string) (*model.Summary, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.summaries[articleID], nil
}

func (s *stubSummaryRepo) Create(ctx context.Context, summary *model.Summary) error {
	return nil
}

func (s *stubSummaryRepo) ListRecentByUser(ctx context.Context, userID string, since time.Time, limit int) ([]*model.Summary, error) {
	return nil, nil
}

func newTestDeduplicator(articleRepo *stubArticleRepo, summaryRepo *stubSummaryRepo) *Deduplicator {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewDeduplicator(articleRepo, summaryRepo, logger, 200)
}

func TestResolve_NewArticle_CreatesRecord(t *testing.T) {
	articleRepo := &stubArticleRepo{existing: map[string]*model.Article{}}
	summaryRepo := &stubSummaryRepo{summaries: map[string]*model.Summary{}}
	d := newTestDeduplicator(articleRepo, summaryRepo)

	parsed := model.ParsedArticle{
		Title:   "新規記事",
		URL:     "https://example.com/new",
		Content: strings.Repeat("本文テキスト。", 50),
	}

	decision, err := d.Resolve(context.Background(), "src-1", parsed)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if decision.Skip {
		t.Error("新規記事はスキップしない")
	}
	if decision.Article == nil {
		t.Fatal("Articleが設定されているべき")
	}
	if decision.Article.SourceID != "src-1" {
		t.Errorf("SourceID = %q", decision.Article.SourceID)
	}
	if decision.NeedsFetch {
		t.Error("十分な本文がある場合はNeedsFetch=false")
	}
	if len(articleRepo.created) != 1 {
		t.Errorf("作成レコード数 = %d, want 1", len(articleRepo.created))
	}
}

func TestResolve_NewArticleWithShortContent_NeedsFetch(t *testing.T) {
	articleRepo := &stubArticleRepo{existing: map[string]*model.Article{}}
	summaryRepo := &stubSummaryRepo{summaries: map[string]*model.Summary{}}
	d := newTestDeduplicator(articleRepo, summaryRepo)

	parsed := model.ParsedArticle{
		Title:   "概要だけの記事",
		URL:     "https://example.com/short",
		Content: "短い概要",
	}

	decision, err := d.Resolve(context.Background(), "src-1", parsed)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !decision.NeedsFetch {
		t.Error("本文が最小長未満の場合はNeedsFetch=true")
	}
}

// TestResolve_AlreadySummarized_Skips は要約済み記事をAI呼び出し前に
// スキップすることを検証する。
func TestResolve_AlreadySummarized_Skips(t *testing.T) {
	existing := &model.Article{
		ID:       "art-1",
		SourceID: "src-1",
		URL:      "https://example.com/done",
	}
	articleRepo := &stubArticleRepo{
		existing: map[string]*model.Article{"src-1|https://example.com/done": existing},
	}
	summaryRepo := &stubSummaryRepo{
		summaries: map[string]*model.Summary{"art-1": {ID: "sum-1", ArticleID: "art-1"}},
	}
	d := newTestDeduplicator(articleRepo, summaryRepo)

	decision, err := d.Resolve(context.Background(), "src-1", model.ParsedArticle{URL: "https://example.com/done"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !decision.Skip {
		t.Error("要約済み記事はスキップするべき")
	}
	if decision.SkipReason != SkipReasonAlreadyProcessed {
		t.Errorf("SkipReason = %q, want %q", decision.SkipReason, SkipReasonAlreadyProcessed)
	}
	if len(articleRepo.created) != 0 {
		t.Error("既存記事に対して新規レコードを作らない")
	}
}

// TestResolve_ExistingWithoutSummary_ReusesContent は過去の実行が途中で
// 失敗した記事の本文を再利用することを検証する。
func TestResolve_ExistingWithoutSummary_ReusesContent(t *testing.T) {
	existing := &model.Article{
		ID:       "art-2",
		SourceID: "src-1",
		URL:      "https://example.com/partial",
		Content:  strings.Repeat("保存済みの本文。", 50),
	}
	articleRepo := &stubArticleRepo{
		existing: map[string]*model.Article{"src-1|https://example.com/partial": existing},
	}
	summaryRepo := &stubSummaryRepo{summaries: map[string]*model.Summary{}}
	d := newTestDeduplicator(articleRepo, summaryRepo)

	decision, err := d.Resolve(context.Background(), "src-1", model.ParsedArticle{URL: "https://example.com/partial"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if decision.Skip {
		t.Error("要約のない既存記事は処理を続行する")
	}
	if decision.Article.ID != "art-2" {
		t.Errorf("既存レコードを返すべき: ID = %q", decision.Article.ID)
	}
	if decision.NeedsFetch {
		t.Error("十分な保存済み本文がある場合は再取得しない")
	}
}

func TestResolve_ExistingWithShortContent_NeedsFetch(t *testing.T) {
	existing := &model.Article{
		ID:       "art-3",
		SourceID: "src-1",
		URL:      "https://example.com/thin",
		Content:  "概要のみ",
	}
	articleRepo := &stubArticleRepo{
		existing: map[string]*model.Article{"src-1|https://example.com/thin": existing},
	}
	summaryRepo := &stubSummaryRepo{summaries: map[string]*model.Summary{}}
	d := newTestDeduplicator(articleRepo, summaryRepo)

	decision, err := d.Resolve(context.Background(), "src-1", model.ParsedArticle{URL: "https://example.com/thin"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !decision.NeedsFetch {
		t.Error("保存済み本文が最小長未満の場合はNeedsFetch=true")
	}
}

func TestResolve_RepositoryErrors(t *testing.T) {
	t.Run("記事検索の失敗", func(t *testing.T) {
		articleRepo := &stubArticleRepo{findErr: errors.New("db down")}
		d := newTestDeduplicator(articleRepo, &stubSummaryRepo{})

		if _, err := d.Resolve(context.Background(), "src-1", model.ParsedArticle{URL: "https://example.com/x"}); err == nil {
			t.Error("検索失敗時はエラーを返すべき")
		}
	})

	t.Run("記事作成の失敗", func(t *testing.T) {
		articleRepo := &stubArticleRepo{existing: map[string]*model.Article{}, creatErr: errors.New("db down")}
		d := newTestDeduplicator(articleRepo, &stubSummaryRepo{summaries: map[string]*model.Summary{}})

		if _, err := d.Resolve(context.Background(), "src-1", model.ParsedArticle{URL: "https://example.com/x"}); err == nil {
			t.Error("作成失敗時はエラーを返すべき")
		}
	})
}
