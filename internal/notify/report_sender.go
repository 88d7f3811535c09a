// Package notify は最終レポートの外部通知を提供する。
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/interviewman/internal/model"
	"github.com/hitoshi/interviewman/internal/security"
)

// reportPayload はWebhook送信時のJSONボディ。
type reportPayload struct {
	SessionID   string             `json:"session_id"`
	CandidateID string             `json:"candidate_id"`
	Report      *model.FinalReport `json:"report"`
	SentAt      time.Time          `json:"sent_at"`
}

// ReportSenderService は最終レポートのWebhook送信のインターフェース。
type ReportSenderService interface {
	Send(ctx context.Context, webhookURL string, session *model.Session) error
}

// reportSender はReportSenderServiceの実装。
// 送信先URLはレビュアー入力であるため、事前検証と
// SSRF防止クライアントの両方を通す。
type reportSender struct {
	guard   security.SSRFGuardService
	timeout time.Duration
	logger  *slog.Logger
}

// NewReportSender はReportSenderServiceの新しいインスタンスを生成する。
func NewReportSender(guard security.SSRFGuardService, timeout time.Duration, logger *slog.Logger) *reportSender {
	return &reportSender{
		guard:   guard,
		timeout: timeout,
		logger:  logger,
	}
}

// Send は最終レポートを指定のWebhook URLへPOSTする。
// レポート未生成のセッションはエラー。送信の成否はセッションの状態に
// 影響しない（状態機械からはファイア・アンド・フォーゲット）。
func (s *reportSender) Send(ctx context.Context, webhookURL string, session *model.Session) error {
	if session.FinalReport == nil {
		return model.NewReportMissingError()
	}
	if err := s.guard.ValidateURL(webhookURL); err != nil {
		return model.NewInvalidWebhookURLError(err.Error())
	}

	payload := reportPayload{
		SessionID:   session.ID,
		CandidateID: session.CandidateID,
		Report:      session.FinalReport,
		SentAt:      time.Now(),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("レポートのエンコードに失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return model.NewInvalidWebhookURLError(err.Error())
	}
	req.Header.Set("Content-Type", "application/json")

	client := s.guard.NewSafeClient(s.timeout)
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("レポートの送信に失敗しました: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("レポート送信先がエラーを返しました: status=%d", resp.StatusCode)
	}

	s.logger.Info("最終レポートを送信しました",
		slog.String("session_id", session.ID),
		slog.Int("status", resp.StatusCode),
	)
	return nil
}
