// Package summarize は記事本文のAI要約生成を提供する。
// 外部の要約モデルAPIの呼び出しとモデルフォールバックチェーン、
// APIが使えない場合のローカル要約生成を含む。
package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// Client はOpenAI互換のchat completions APIクライアント。
// DeepSeekなどのエンドポイントに対してモデル指定付きで要約を要求する。
type Client struct {
	httpClient  *http.Client
	logger      *slog.Logger
	endpoint    string
	apiKey      string
	maxTokens   int
	temperature float64
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, endpoint, apiKey string, maxTokens int) *Client {
	return &Client{
		httpClient:  httpClient,
		logger:      logger,
		endpoint:    endpoint,
		apiKey:      apiKey,
		maxTokens:   maxTokens,
		temperature: 0.3,
	}
}

// chatRequest はchat completions APIのリクエストボディ。
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse はchat completions APIのレスポンスボディ。
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete は指定モデルでプロンプトを送信し、応答テキストを返す。
// エラーステータスや不正な形のレスポンスはエラーとして返し、
// 呼び出し元がフォールバックチェーンの次のモデルを試せるようにする。
func (c *Client) Complete(ctx context.Context, model, prompt string) (string, error) {
	reqBody := chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("リクエストのシリアライズに失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("要約モデルAPIの呼び出しに失敗しました",
			slog.String("model", model),
			slog.String("error", err.Error()),
		)
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		// エラーボディは先頭のみ読み取ってログに残す
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		c.logger.Error("要約モデルAPIがエラーステータスを返しました",
			slog.String("model", model),
			slog.Int("http_status", resp.StatusCode),
			slog.String("body", string(excerpt)),
		)
		return "", fmt.Errorf("要約モデルAPIがステータス %d を返しました: %s", resp.StatusCode, string(excerpt))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("要約モデルAPIのレスポンスにchoicesが含まれていません")
	}

	return parsed.Choices[0].Message.Content, nil
}
