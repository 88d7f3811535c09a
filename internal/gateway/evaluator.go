package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/interviewman/internal/metrics"
	"github.com/hitoshi/interviewman/internal/model"
)

// AnswerEvaluator は外部評価器による回答採点のゲートウェイ。
// 失敗時はUngradedフラグ付きのフォールバック評価を返し、エラーを返さない。
// 評価の失敗が次の質問への進行を妨げてはならない。
type AnswerEvaluator struct {
	llm       TextCompleter
	logger    *slog.Logger
	collector metrics.MetricsCollector
	timeout   time.Duration
}

// NewAnswerEvaluator はAnswerEvaluatorの新しいインスタンスを生成する。
// timeoutが0以下の場合はデフォルト値20秒を使用する。
func NewAnswerEvaluator(llm TextCompleter, logger *slog.Logger, collector metrics.MetricsCollector, timeout time.Duration) *AnswerEvaluator {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &AnswerEvaluator{
		llm:       llm,
		logger:    logger,
		collector: collector,
		timeout:   timeout,
	}
}

// evaluationWire は外部評価器の応答形状。
type evaluationWire struct {
	Score    *float64 `json:"score"`
	Feedback string   `json:"feedback"`
	Rubric   struct {
		Correctness float64 `json:"correctness"`
		Clarity     float64 `json:"clarity"`
		Depth       float64 `json:"depth"`
	} `json:"rubric"`
}

// Evaluate は回答を採点し、answerIDに紐づくEvaluationを返す。
// スコアは0〜10にクランプされる。あらゆる失敗はフォールバック評価に置き換える。
func (e *AnswerEvaluator) Evaluate(
	ctx context.Context,
	candidate *model.CandidateProfile,
	question model.Question,
	answerText string,
	answerID string,
) model.Evaluation {
	prompt := buildEvaluationPrompt(candidate, question, answerText)

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	raw, err := e.llm.Complete(callCtx, prompt)
	e.collector.RecordGatewayLatency(metrics.GatewayEvaluator, time.Since(start))

	if err != nil {
		e.logger.Warn("回答評価に失敗したため未採点フォールバックを使用します",
			slog.String("answer_id", answerID),
			slog.String("error", err.Error()),
		)
		e.collector.RecordGatewayFallback(metrics.GatewayEvaluator)
		return FallbackEvaluation(answerID)
	}

	var wire evaluationWire
	if !extractJSONObject(raw, &wire) || wire.Score == nil {
		e.logger.Warn("回答評価応答のパースに失敗したため未採点フォールバックを使用します",
			slog.String("answer_id", answerID),
		)
		e.collector.RecordGatewayFallback(metrics.GatewayEvaluator)
		return FallbackEvaluation(answerID)
	}

	return model.Evaluation{
		ID:       uuid.New().String(),
		AnswerID: answerID,
		Score:    clamp(*wire.Score, 0, 10),
		Feedback: wire.Feedback,
		Rubric: model.Rubric{
			Correctness: clamp(wire.Rubric.Correctness, 0, 10),
			Clarity:     clamp(wire.Rubric.Clarity, 0, 10),
			Depth:       clamp(wire.Rubric.Depth, 0, 10),
		},
		EvaluatedAt: time.Now(),
	}
}

// FallbackEvaluation はゲートウェイ失敗時の未採点評価を返す。
// スコア0・サブスコア0・Ungraded=trueの組で「未採点」を表し、
// 本物の低得点と区別できるようにする（乱数スコアは使用しない）。
func FallbackEvaluation(answerID string) model.Evaluation {
	return model.Evaluation{
		ID:          uuid.New().String(),
		AnswerID:    answerID,
		Score:       0,
		Feedback:    "外部評価が失敗したため未採点です。再評価を実行してください。",
		Rubric:      model.Rubric{},
		Ungraded:    true,
		EvaluatedAt: time.Now(),
	}
}

func buildEvaluationPrompt(candidate *model.CandidateProfile, question model.Question, answerText string) string {
	return fmt.Sprintf(`You are an objective technical interviewer. Evaluate the candidate's answer for this question. Return JSON only with: {"score": number, "feedback": string, "rubric": {"correctness": number, "clarity": number, "depth": number}}. Score range 0-10. Use candidate profile context to weigh answers. Provide concise feedback.

Question: %s
Answer: %s
Difficulty: %s
Candidate profile: %s`,
		question.Text,
		answerText,
		question.Difficulty,
		marshalContext(redactProfile(candidate)),
	)
}
