package middleware

import (
	"context"
	"errors"
)

// contextKey はコンテキスト値のキー衝突を防ぐための非公開型。
type contextKey string

const userIDContextKey contextKey = "user_id"

// ErrNoUserID はコンテキストにユーザーIDがない場合のエラー。
var ErrNoUserID = errors.New("コンテキストにユーザーIDがありません")

// WithUserID はリクエストのユーザーIDをコンテキストに載せる。
// リクエストパラメータでユーザーを特定したハンドラーがログ相関のために使う。
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// UserIDFromContext はコンテキストからユーザーIDを取り出す。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok {
		return "", ErrNoUserID
	}
	return userID, nil
}
