// Package gateway は外部評価器（LLM）との連携を提供する。
// 質問生成・回答評価・セッション最終化・履歴書パースの各ゲートウェイと、
// その下層のGemini APIクライアントを含む。
//
// 質問生成と回答評価のゲートウェイはエラーを返さない。トランスポート・
// パース・形状不一致のあらゆる失敗はローカルのフォールバック値に置き換え、
// 面接の進行を止めないことを契約とする。
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// defaultBaseURL はGemini generateContent APIのエンドポイント。
const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// TextCompleter はプロンプトからテキスト補完を得るインターフェース。
// テスタビリティのためGeminiClientを抽象化する。
type TextCompleter interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// GeminiConfig はGemini APIクライアントの設定。
type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string // テスト用にエンドポイントを差し替え可能
}

// GeminiClient はGemini generateContent APIのクライアント。
type GeminiClient struct {
	cfg        GeminiConfig
	httpClient *http.Client
}

// NewGeminiClient はGeminiClientの新しいインスタンスを生成する。
func NewGeminiClient(cfg GeminiConfig, httpClient *http.Client) *GeminiClient {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &GeminiClient{cfg: cfg, httpClient: httpClient}
}

// Complete はプロンプトを送信し、最初の候補のテキストを返す。
// APIキー未設定・非2xx応答・空応答はエラーとなり、
// 呼び出し側のゲートウェイがフォールバック値に置き換える。
func (c *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return "", fmt.Errorf("gemini api key missing")
	}

	payload := geminiRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: prompt}}},
		},
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent",
		strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.Model)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		// エラーボディは診断ログ用に先頭のみ読む
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("gemini http %d: %s", resp.StatusCode, string(body))
	}

	var body geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode gemini response: %w", err)
	}

	if len(body.Candidates) == 0 || len(body.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini response empty")
	}

	text := strings.TrimSpace(body.Candidates[0].Content.Parts[0].Text)
	if text == "" {
		return "", fmt.Errorf("gemini response empty")
	}
	return text, nil
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// compile-time interface check
var _ TextCompleter = (*GeminiClient)(nil)
