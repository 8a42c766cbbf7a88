package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/digestman/internal/model"
)

// PostgresArticleRepo はPostgreSQLを使用した記事リポジトリ。
type PostgresArticleRepo struct {
	db *sql.DB
}

// NewPostgresArticleRepo はPostgresArticleRepoを生成する。
func NewPostgresArticleRepo(db *sql.DB) *PostgresArticleRepo {
	return &PostgresArticleRepo{db: db}
}

// FindByID は指定IDの記事を取得する。見つからない場合はnilを返す。
func (r *PostgresArticleRepo) FindByID(ctx context.Context, id string) (*model.Article, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT id, source_id, title, url, content, published_at,
		        processed, processing_error, created_at
		 FROM articles WHERE id = $1`,
		id,
	))
}

// FindBySourceAndURL はsource_idとurlで記事を検索する。見つからない場合はnilを返す。
func (r *PostgresArticleRepo) FindBySourceAndURL(ctx context.Context, sourceID, url string) (*model.Article, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT id, source_id, title, url, content, published_at,
		        processed, processing_error, created_at
		 FROM articles WHERE source_id = $1 AND url = $2`,
		sourceID, url,
	))
}

func (r *PostgresArticleRepo) scanOne(row *sql.Row) (*model.Article, error) {
	article := &model.Article{}
	var publishedAt sql.NullTime
	var content, processingError sql.NullString

	err := row.Scan(
		&article.ID, &article.SourceID, &article.Title, &article.URL,
		&content, &publishedAt, &article.Processed, &processingError,
		&article.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("記事の取得に失敗しました: %w", err)
	}

	article.Content = nullStringValue(content)
	article.ProcessingError = nullStringValue(processingError)
	if publishedAt.Valid {
		article.PublishedAt = &publishedAt.Time
	}

	return article, nil
}

// Create は新規記事を作成する。
func (r *PostgresArticleRepo) Create(ctx context.Context, article *model.Article) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO articles (id, source_id, title, url, content, published_at,
		                       processed, processing_error, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		article.ID, article.SourceID, article.Title, article.URL,
		nullString(article.Content), article.PublishedAt,
		article.Processed, nullString(article.ProcessingError), article.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("記事の作成に失敗しました: %w", err)
	}
	return nil
}

// UpdateContent は記事の本文テキストを更新する。再取得後の差し替えに使う。
func (r *PostgresArticleRepo) UpdateContent(ctx context.Context, id, content string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE articles SET content = $2 WHERE id = $1`,
		id, nullString(content),
	)
	if err != nil {
		return fmt.Errorf("記事本文の更新に失敗しました: %w", err)
	}
	return nil
}

// MarkProcessed は記事の処理結果を記録する。
// processingErrorが空なら処理完了、空でなければ失敗として記録する。
// 失敗した記事はprocessed=falseのまま残り、次のタスクで再試行される。
func (r *PostgresArticleRepo) MarkProcessed(ctx context.Context, id string, processingError string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE articles SET processed = ($2 = ''), processing_error = NULLIF($2, '') WHERE id = $1`,
		id, processingError,
	)
	if err != nil {
		return fmt.Errorf("記事処理状態の更新に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ArticleRepository = (*PostgresArticleRepo)(nil)
