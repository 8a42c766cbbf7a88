package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/digestman/internal/model"
)

// PostgresSourceRepo はPostgreSQLを使用したソースリポジトリ。
type PostgresSourceRepo struct {
	db *sql.DB
}

// NewPostgresSourceRepo はPostgresSourceRepoを生成する。
func NewPostgresSourceRepo(db *sql.DB) *PostgresSourceRepo {
	return &PostgresSourceRepo{db: db}
}

// FindByID は指定IDのソースを取得する。見つからない場合はnilを返す。
func (r *PostgresSourceRepo) FindByID(ctx context.Context, id string) (*model.Source, error) {
	source := &model.Source{}
	var lastFetchedAt sql.NullTime
	var lastError sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, url, active, last_fetched_at,
		        consecutive_errors, last_error, created_at, updated_at
		 FROM content_sources WHERE id = $1`,
		id,
	).Scan(
		&source.ID, &source.UserID, &source.Name, &source.URL, &source.Active,
		&lastFetchedAt, &source.ConsecutiveErrors, &lastError,
		&source.CreatedAt, &source.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ソースの取得に失敗しました: %w", err)
	}

	source.LastError = nullStringValue(lastError)
	if lastFetchedAt.Valid {
		source.LastFetchedAt = &lastFetchedAt.Time
	}

	return source, nil
}

// ListActiveByUser はユーザーのアクティブなソース一覧を返す。
func (r *PostgresSourceRepo) ListActiveByUser(ctx context.Context, userID string) ([]*model.Source, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, name, url, active, last_fetched_at,
		        consecutive_errors, last_error, created_at, updated_at
		 FROM content_sources
		 WHERE user_id = $1 AND active = true
		 ORDER BY created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("ソース一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var sources []*model.Source
	for rows.Next() {
		source := &model.Source{}
		var lastFetchedAt sql.NullTime
		var lastError sql.NullString

		if err := rows.Scan(
			&source.ID, &source.UserID, &source.Name, &source.URL, &source.Active,
			&lastFetchedAt, &source.ConsecutiveErrors, &lastError,
			&source.CreatedAt, &source.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("ソース行の読み取りに失敗しました: %w", err)
		}

		source.LastError = nullStringValue(lastError)
		if lastFetchedAt.Valid {
			source.LastFetchedAt = &lastFetchedAt.Time
		}

		sources = append(sources, source)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ソース一覧の走査に失敗しました: %w", err)
	}

	return sources, nil
}

// CountActiveByUser はユーザーのアクティブなソース数を返す。
func (r *PostgresSourceRepo) CountActiveByUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM content_sources WHERE user_id = $1 AND active = true`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ソース数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// UpdateFetchSuccess は取得成功を記録する。
// last_fetched_atを更新し、consecutive_errorsを0にリセットする。
func (r *PostgresSourceRepo) UpdateFetchSuccess(ctx context.Context, id string, fetchedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE content_sources
		 SET last_fetched_at = $2, consecutive_errors = 0, last_error = NULL, updated_at = now()
		 WHERE id = $1`,
		id, fetchedAt,
	)
	if err != nil {
		return fmt.Errorf("ソース取得成功の記録に失敗しました: %w", err)
	}
	return nil
}

// UpdateFetchError は取得失敗を記録する。
// consecutive_errorsをインクリメントし、last_errorを更新する。
func (r *PostgresSourceRepo) UpdateFetchError(ctx context.Context, id string, errorMessage string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE content_sources
		 SET consecutive_errors = consecutive_errors + 1, last_error = $2, updated_at = now()
		 WHERE id = $1`,
		id, errorMessage,
	)
	if err != nil {
		return fmt.Errorf("ソース取得失敗の記録に失敗しました: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullStringValue(ns sql.NullString) string {
	if !ns.Valid {
		return ""
	}
	return ns.String
}

// compile-time interface check
var _ SourceRepository = (*PostgresSourceRepo)(nil)
