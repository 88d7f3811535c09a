package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/interviewman/internal/interview"
	"github.com/hitoshi/interviewman/internal/model"
)

// InterviewServiceInterface はセッションハンドラーが必要とするサービスインターフェース。
type InterviewServiceInterface interface {
	// CreateSession は空の候補者と未開始セッションを作成する。
	CreateSession(ctx context.Context) (string, error)
	// GetSession はセッション詳細を取得する。
	GetSession(ctx context.Context, sessionID string) (*model.Session, error)
	// ListSessions は全セッションを返す。
	ListSessions(ctx context.Context) ([]*model.Session, error)
	// CurrentSessionID は現在セッションポインタを返す。未設定なら空文字列。
	CurrentSessionID(ctx context.Context) (string, error)
	// Start は面接を開始する。
	Start(ctx context.Context, sessionID string) error
	// Pause は面接を一時停止する。
	Pause(ctx context.Context, sessionID string) error
	// Resume は一時停止中の面接を再開する。
	Resume(ctx context.Context, sessionID string) error
	// End は面接を手動終了する。
	End(ctx context.Context, sessionID string) error
	// SubmitAnswer は現在の質問への回答を提出する。
	SubmitAnswer(ctx context.Context, sessionID, text string, autoSubmitted bool) error
	// GetCurrentQuestion は現在のスロットの質問を返す。未生成ならnil。
	GetCurrentQuestion(ctx context.Context, sessionID string) (*model.Question, error)
	// Timeline はチャット形式の履歴を返す。
	Timeline(ctx context.Context, sessionID string) ([]interview.TimelineEntry, error)
	// ReEvaluate は全回答の評価を再生成する。
	ReEvaluate(ctx context.Context, sessionID string) error
	// Finalize は最終レポートを生成して保存する。
	Finalize(ctx context.Context, sessionID string) (*model.FinalReport, error)
	// DeleteSession はセッションを削除する。
	DeleteSession(ctx context.Context, sessionID string) error
}

// ReportDeliveryInterface は最終レポートのWebhook送信のインターフェース。
type ReportDeliveryInterface interface {
	Send(ctx context.Context, webhookURL string, session *model.Session) error
}

// SessionHandler は面接セッション管理のHTTPハンドラー。
type SessionHandler struct {
	service InterviewServiceInterface
	sender  ReportDeliveryInterface
}

// NewSessionHandler はSessionHandlerを生成する。
func NewSessionHandler(service InterviewServiceInterface, sender ReportDeliveryInterface) *SessionHandler {
	return &SessionHandler{
		service: service,
		sender:  sender,
	}
}

// submitAnswerRequest は回答提出リクエストのボディ。
type submitAnswerRequest struct {
	Text string `json:"text"`
}

// sendReportRequest はレポート送信リクエストのボディ。
type sendReportRequest struct {
	WebhookURL string `json:"webhook_url"`
}

// createSessionResponse はセッション作成のAPIレスポンス。
type createSessionResponse struct {
	SessionID string `json:"session_id"`
}

// sessionSummaryResponse はダッシュボード一覧用の要約レスポンス。
type sessionSummaryResponse struct {
	ID                   string   `json:"id"`
	CandidateID          string   `json:"candidate_id"`
	Status               string   `json:"status"`
	CurrentQuestionIndex int      `json:"current_question_index"`
	AnswerCount          int      `json:"answer_count"`
	FinalScore           *float64 `json:"final_score,omitempty"`
	CreatedAt            string   `json:"created_at"`
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// CreateSession は新規セッションを作成する。
// POST /api/sessions
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	sessionID, err := h.service.CreateSession(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(createSessionResponse{SessionID: sessionID})
}

// ListSessions は全セッションの要約一覧を返す。
// GET /api/sessions
func (h *SessionHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.service.ListSessions(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	summaries := make([]sessionSummaryResponse, 0, len(sessions))
	for _, s := range sessions {
		summaries = append(summaries, toSessionSummary(s))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summaries)
}

// GetSession はセッション詳細を返す。
// GET /api/sessions/:id
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.GetSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(session)
}

// GetCurrentSession は現在セッションポインタを返す。
// GET /api/sessions/current
func (h *SessionHandler) GetCurrentSession(w http.ResponseWriter, r *http.Request) {
	sessionID, err := h.service.CurrentSessionID(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"session_id": sessionID})
}

// DeleteSession はセッションを削除する。
// DELETE /api/sessions/:id
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteSession(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Start は面接を開始する。
// POST /api/sessions/:id/start
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Start)
}

// Pause は面接を一時停止する。
// POST /api/sessions/:id/pause
func (h *SessionHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Pause)
}

// Resume は面接を再開する。
// POST /api/sessions/:id/resume
func (h *SessionHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Resume)
}

// End は面接を手動終了する。
// POST /api/sessions/:id/end
func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.End)
}

// transition は状態遷移系エンドポイントの共通処理。
// 遷移後のセッション詳細を返す。
func (h *SessionHandler) transition(w http.ResponseWriter, r *http.Request, op func(context.Context, string) error) {
	sessionID := chi.URLParam(r, "id")

	if err := op(r.Context(), sessionID); err != nil {
		handleServiceError(w, err)
		return
	}

	session, err := h.service.GetSession(r.Context(), sessionID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(session)
}

// SubmitAnswer は現在の質問への回答を提出する。
// POST /api/sessions/:id/answers
func (h *SessionHandler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	var req submitAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	if err := h.service.SubmitAnswer(r.Context(), sessionID, req.Text, false); err != nil {
		handleServiceError(w, err)
		return
	}

	session, err := h.service.GetSession(r.Context(), sessionID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(session)
}

// GetCurrentQuestion は現在の質問を返す。
// GET /api/sessions/:id/question
func (h *SessionHandler) GetCurrentQuestion(w http.ResponseWriter, r *http.Request) {
	question, err := h.service.GetCurrentQuestion(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if question == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, &model.APIError{
			Code:     model.ErrCodeNoCurrentQuestion,
			Message:  "現在の質問はまだ生成されていません。",
			Category: "session",
			Action:   "しばらく待ってから再度取得してください。",
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(question)
}

// GetTimeline はチャット形式の履歴を返す。
// GET /api/sessions/:id/timeline
func (h *SessionHandler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.Timeline(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

// ReEvaluate は全回答の評価を再生成する。
// POST /api/sessions/:id/reevaluate
func (h *SessionHandler) ReEvaluate(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	if err := h.service.ReEvaluate(r.Context(), sessionID); err != nil {
		handleServiceError(w, err)
		return
	}

	session, err := h.service.GetSession(r.Context(), sessionID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(session)
}

// Finalize は最終レポートを生成して返す。
// POST /api/sessions/:id/finalize
func (h *SessionHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Finalize(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}

// SendReport は最終レポートをWebhookへ送信する。
// POST /api/sessions/:id/report/send
func (h *SessionHandler) SendReport(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	var req sendReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}
	if req.WebhookURL == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidWebhookURLError("URLが空です"))
		return
	}

	session, err := h.service.GetSession(r.Context(), sessionID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if err := h.sender.Send(r.Context(), req.WebhookURL, session); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- ヘルパー関数 ---

// toSessionSummary はmodel.Sessionから一覧用レスポンスに変換する。
func toSessionSummary(s *model.Session) sessionSummaryResponse {
	summary := sessionSummaryResponse{
		ID:                   s.ID,
		CandidateID:          s.CandidateID,
		Status:               string(s.Status),
		CurrentQuestionIndex: s.CurrentQuestionIndex,
		AnswerCount:          len(s.Answers),
		CreatedAt:            s.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if s.FinalReport != nil {
		score := s.FinalReport.FinalScore
		summary.FinalScore = &score
	}
	return summary
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeSessionNotFound, model.ErrCodeCandidateNotFound, model.ErrCodeNoCurrentQuestion, model.ErrCodeReportMissing:
		return http.StatusNotFound
	case model.ErrCodeProfileIncomplete, model.ErrCodeInvalidWebhookURL:
		return http.StatusBadRequest
	case model.ErrCodeInvalidTransition, model.ErrCodeSessionCompleted, model.ErrCodeSessionNotComplete:
		return http.StatusConflict
	case model.ErrCodeUnsupportedFormat:
		return http.StatusUnsupportedMediaType
	default:
		return http.StatusInternalServerError
	}
}
