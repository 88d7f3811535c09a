package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/interviewman/internal/metrics"
	"github.com/hitoshi/interviewman/internal/model"
)

// SessionFinalizer は外部評価器によるセッション総合レポート生成のゲートウェイ。
// 他のゲートウェイと異なり失敗はエラーとして呼び出し元へ返す。
// 失敗してもセッションはcompletedのまま残り、後から再実行できる（ソフト失敗）。
type SessionFinalizer struct {
	llm       TextCompleter
	logger    *slog.Logger
	collector metrics.MetricsCollector
	timeout   time.Duration
}

// NewSessionFinalizer はSessionFinalizerの新しいインスタンスを生成する。
// timeoutが0以下の場合はデフォルト値30秒を使用する。
func NewSessionFinalizer(llm TextCompleter, logger *slog.Logger, collector metrics.MetricsCollector, timeout time.Duration) *SessionFinalizer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SessionFinalizer{
		llm:       llm,
		logger:    logger,
		collector: collector,
		timeout:   timeout,
	}
}

// reportWire は外部評価器の応答形状。
type reportWire struct {
	FinalScore        *float64 `json:"finalScore"`
	Summary           string   `json:"summary"`
	Recommendation    string   `json:"recommendation"`
	PerQuestionScores []struct {
		QuestionID string  `json:"questionId"`
		Score      float64 `json:"score"`
	} `json:"perQuestionScores"`
}

// Finalize は完了済みセッションの総合レポートを生成する。
// 冪等であり、何度呼んでも各呼び出しが完全なレポートを返す（マージはしない）。
// 応答の質問別スコアはセッションが所有する質問IDに対して検証され、
// 未知のIDは除外される。
func (f *SessionFinalizer) Finalize(ctx context.Context, session *model.Session) (*model.FinalReport, error) {
	prompt := buildFinalizePrompt(session)

	callCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	start := time.Now()
	raw, err := f.llm.Complete(callCtx, prompt)
	f.collector.RecordGatewayLatency(metrics.GatewayFinalizer, time.Since(start))

	if err != nil {
		f.collector.RecordGatewayFallback(metrics.GatewayFinalizer)
		return nil, fmt.Errorf("finalize session %s: %w", session.ID, err)
	}

	var wire reportWire
	if !extractJSONObject(raw, &wire) || wire.FinalScore == nil {
		f.collector.RecordGatewayFallback(metrics.GatewayFinalizer)
		return nil, fmt.Errorf("finalize session %s: malformed report response", session.ID)
	}

	report := &model.FinalReport{
		FinalScore:     clamp(*wire.FinalScore, 0, 100),
		Summary:        wire.Summary,
		Recommendation: normalizeRecommendation(wire.Recommendation),
	}

	for _, pqs := range wire.PerQuestionScores {
		// セッションが所有しない質問IDは破棄する
		if session.QuestionByID(pqs.QuestionID) == nil {
			f.logger.Warn("最終レポートに未知の質問IDが含まれていたため除外します",
				slog.String("session_id", session.ID),
				slog.String("question_id", pqs.QuestionID),
			)
			continue
		}
		report.PerQuestionScores = append(report.PerQuestionScores, model.PerQuestionScore{
			QuestionID: pqs.QuestionID,
			Score:      clamp(pqs.Score, 0, 10),
		})
	}

	return report, nil
}

// normalizeRecommendation は推薦区分を定義済みの3値に正規化する。
// 未知の値はConsiderに丸める。
func normalizeRecommendation(r string) string {
	switch r {
	case model.RecommendationHire, model.RecommendationConsider, model.RecommendationReject:
		return r
	default:
		return model.RecommendationConsider
	}
}

func buildFinalizePrompt(session *model.Session) string {
	// プロンプトには質問・回答・評価のみを渡す（タイマー等の内部状態は不要）
	sessionContext := struct {
		Questions   []model.Question   `json:"questions"`
		Answers     []model.Answer     `json:"answers"`
		Evaluations []model.Evaluation `json:"evaluations"`
	}{
		Questions:   session.QuestionSequence,
		Answers:     session.Answers,
		Evaluations: session.Evaluations,
	}

	return fmt.Sprintf(`Given the session with all questions, answers and evaluations, produce a final JSON object: {"finalScore": number, "summary": string, "recommendation": "Hire"|"Consider"|"Reject", "perQuestionScores": [{"questionId":"","score":number}] }. Score range 0-100. Return JSON only.

Session data: %s`,
		marshalContext(sessionContext),
	)
}
