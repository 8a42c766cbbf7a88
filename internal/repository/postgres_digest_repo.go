package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/digestman/internal/model"
)

// PostgresDigestRepo はPostgreSQLを使用したダイジェストリポジトリ。
type PostgresDigestRepo struct {
	db *sql.DB
}

// NewPostgresDigestRepo はPostgresDigestRepoを生成する。
func NewPostgresDigestRepo(db *sql.DB) *PostgresDigestRepo {
	return &PostgresDigestRepo{db: db}
}

// FindByID は指定IDのダイジェストを取得する。見つからない場合はnilを返す。
func (r *PostgresDigestRepo) FindByID(ctx context.Context, id string) (*model.Digest, error) {
	digest := &model.Digest{}

	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, generation_date, read, created_at
		 FROM digests WHERE id = $1`,
		id,
	).Scan(
		&digest.ID, &digest.UserID, &digest.Title,
		&digest.GenerationDate, &digest.Read, &digest.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ダイジェストの取得に失敗しました: %w", err)
	}

	return digest, nil
}

// ListByUser はユーザーのダイジェスト一覧を生成日の降順で返す。
func (r *PostgresDigestRepo) ListByUser(ctx context.Context, userID string, limit int) ([]*model.Digest, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, title, generation_date, read, created_at
		 FROM digests
		 WHERE user_id = $1
		 ORDER BY generation_date DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("ダイジェスト一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var digests []*model.Digest
	for rows.Next() {
		digest := &model.Digest{}
		if err := rows.Scan(
			&digest.ID, &digest.UserID, &digest.Title,
			&digest.GenerationDate, &digest.Read, &digest.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("ダイジェスト行の読み取りに失敗しました: %w", err)
		}
		digests = append(digests, digest)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ダイジェスト一覧の走査に失敗しました: %w", err)
	}

	return digests, nil
}

// ListEntries はダイジェストの内容をorder_position昇順で返す。
// 表示に必要な要約・記事・ソース名を1クエリで結合する。
func (r *PostgresDigestRepo) ListEntries(ctx context.Context, digestID string) ([]model.DigestEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT di.order_position, s.summary_text, s.model, s.reading_time,
		        a.title, a.url, a.published_at, cs.name
		 FROM digest_items di
		 JOIN summaries s ON s.id = di.summary_id
		 JOIN articles a ON a.id = s.article_id
		 JOIN content_sources cs ON cs.id = a.source_id
		 WHERE di.digest_id = $1
		 ORDER BY di.order_position ASC`,
		digestID,
	)
	if err != nil {
		return nil, fmt.Errorf("ダイジェスト内容の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var entries []model.DigestEntry
	for rows.Next() {
		var entry model.DigestEntry
		var publishedAt sql.NullTime

		if err := rows.Scan(
			&entry.OrderPosition, &entry.SummaryText, &entry.Model, &entry.ReadingTime,
			&entry.ArticleTitle, &entry.ArticleURL, &publishedAt, &entry.SourceName,
		); err != nil {
			return nil, fmt.Errorf("ダイジェスト内容行の読み取りに失敗しました: %w", err)
		}

		if publishedAt.Valid {
			entry.PublishedAt = &publishedAt.Time
		}

		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ダイジェスト内容の走査に失敗しました: %w", err)
	}

	return entries, nil
}

// DeleteByUserAndDate は指定の(ユーザー, 生成日)のダイジェストを削除する。
// digest_itemsはCASCADE削除される。再生成時の置き換えに使う。
func (r *PostgresDigestRepo) DeleteByUserAndDate(ctx context.Context, userID string, date time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM digests WHERE user_id = $1 AND generation_date = $2::date`,
		userID, date,
	)
	if err != nil {
		return fmt.Errorf("既存ダイジェストの削除に失敗しました: %w", err)
	}
	return nil
}

// CreateWithItems はダイジェストとエントリ一覧を同一トランザクションで作成する。
func (r *PostgresDigestRepo) CreateWithItems(ctx context.Context, digest *model.Digest, items []*model.DigestItem) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO digests (id, user_id, title, generation_date, read, created_at)
		 VALUES ($1, $2, $3, $4::date, $5, $6)`,
		digest.ID, digest.UserID, digest.Title,
		digest.GenerationDate, digest.Read, digest.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("ダイジェストの作成に失敗しました: %w", err)
	}

	for _, item := range items {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO digest_items (id, digest_id, summary_id, order_position)
			 VALUES ($1, $2, $3, $4)`,
			item.ID, item.DigestID, item.SummaryID, item.OrderPosition,
		)
		if err != nil {
			return fmt.Errorf("ダイジェストエントリの作成に失敗しました: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return nil
}

// MarkRead はダイジェストを既読にする。
func (r *PostgresDigestRepo) MarkRead(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE digests SET read = true WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("ダイジェストの既読記録に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ DigestRepository = (*PostgresDigestRepo)(nil)
