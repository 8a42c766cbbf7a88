package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/digestman/internal/model"
)

// PostgresSummaryRepo はPostgreSQLを使用した要約リポジトリ。
type PostgresSummaryRepo struct {
	db *sql.DB
}

// NewPostgresSummaryRepo はPostgresSummaryRepoを生成する。
func NewPostgresSummaryRepo(db *sql.DB) *PostgresSummaryRepo {
	return &PostgresSummaryRepo{db: db}
}

// FindByArticleID は記事IDで要約を検索する。見つからない場合はnilを返す。
func (r *PostgresSummaryRepo) FindByArticleID(ctx context.Context, articleID string) (*model.Summary, error) {
	summary := &model.Summary{}

	err := r.db.QueryRowContext(ctx,
		`SELECT id, article_id, summary_text, model, reading_time, created_at
		 FROM summaries WHERE article_id = $1`,
		articleID,
	).Scan(
		&summary.ID, &summary.ArticleID, &summary.SummaryText,
		&summary.Model, &summary.ReadingTime, &summary.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("要約の取得に失敗しました: %w", err)
	}

	return summary, nil
}

// Create は要約を作成する。article_idの一意制約により記事あたり最大1件が保証される。
func (r *PostgresSummaryRepo) Create(ctx context.Context, summary *model.Summary) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO summaries (id, article_id, summary_text, model, reading_time, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		summary.ID, summary.ArticleID, summary.SummaryText,
		summary.Model, summary.ReadingTime, summary.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("要約の作成に失敗しました: %w", err)
	}
	return nil
}

// ListRecentByUser はユーザーの時間窓内の要約を新しい順で返す。
// summary→article→sourceをJOINし、アクティブなソースのみ対象とする。
func (r *PostgresSummaryRepo) ListRecentByUser(ctx context.Context, userID string, since time.Time, limit int) ([]*model.Summary, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT s.id, s.article_id, s.summary_text, s.model, s.reading_time, s.created_at
		 FROM summaries s
		 JOIN articles a ON a.id = s.article_id
		 JOIN content_sources cs ON cs.id = a.source_id
		 WHERE cs.user_id = $1 AND cs.active = true AND s.created_at >= $2
		 ORDER BY s.created_at DESC
		 LIMIT $3`,
		userID, since, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("要約一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var summaries []*model.Summary
	for rows.Next() {
		summary := &model.Summary{}
		if err := rows.Scan(
			&summary.ID, &summary.ArticleID, &summary.SummaryText,
			&summary.Model, &summary.ReadingTime, &summary.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("要約行の読み取りに失敗しました: %w", err)
		}
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("要約一覧の走査に失敗しました: %w", err)
	}

	return summaries, nil
}

// compile-time interface check
var _ SummaryRepository = (*PostgresSummaryRepo)(nil)
