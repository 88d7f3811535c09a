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

// QuestionGenerator は外部評価器による質問生成のゲートウェイ。
// 失敗時は難易度別のフォールバック質問を返し、エラーを返さない。
type QuestionGenerator struct {
	llm       TextCompleter
	logger    *slog.Logger
	collector metrics.MetricsCollector
	timeout   time.Duration
}

// NewQuestionGenerator はQuestionGeneratorの新しいインスタンスを生成する。
// timeoutが0以下の場合はデフォルト値20秒を使用する。
func NewQuestionGenerator(llm TextCompleter, logger *slog.Logger, collector metrics.MetricsCollector, timeout time.Duration) *QuestionGenerator {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &QuestionGenerator{
		llm:       llm,
		logger:    logger,
		collector: collector,
		timeout:   timeout,
	}
}

// questionWire は外部評価器の応答形状。信頼しない入力として扱い、
// 厳密なmodel.Questionに詰め替える前に検証する。
type questionWire struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	Difficulty string `json:"difficulty"`
	Hint       string `json:"hint"`
}

// Generate は指定難易度の質問を1問生成する。
// 候補者コンテキストと既出質問を渡し、外部評価器に新規性の判断を委ねる。
// トランスポート・パース・形状不一致のあらゆる失敗はフォールバック質問に置き換える。
// セッション状態は一切変更しない（戻り値の記録は呼び出し元の責務）。
func (g *QuestionGenerator) Generate(
	ctx context.Context,
	candidate *model.CandidateProfile,
	difficulty model.Difficulty,
	index int,
	previous []model.Question,
) model.Question {
	prompt := buildQuestionPrompt(candidate, difficulty, previous)

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	raw, err := g.llm.Complete(callCtx, prompt)
	g.collector.RecordGatewayLatency(metrics.GatewayQuestion, time.Since(start))

	if err != nil {
		g.logger.Warn("質問生成に失敗したためフォールバック質問を使用します",
			slog.String("difficulty", string(difficulty)),
			slog.Int("index", index),
			slog.String("error", err.Error()),
		)
		g.collector.RecordGatewayFallback(metrics.GatewayQuestion)
		return FallbackQuestion(difficulty, index)
	}

	var wire questionWire
	if !extractJSONObject(raw, &wire) || wire.Text == "" {
		g.logger.Warn("質問生成応答のパースに失敗したためフォールバック質問を使用します",
			slog.String("difficulty", string(difficulty)),
			slog.Int("index", index),
		)
		g.collector.RecordGatewayFallback(metrics.GatewayQuestion)
		return FallbackQuestion(difficulty, index)
	}

	question := model.Question{
		ID:         wire.ID,
		Text:       wire.Text,
		Difficulty: model.Difficulty(wire.Difficulty),
		Index:      index,
		Hint:       wire.Hint,
	}
	if question.ID == "" {
		question.ID = uuid.New().String()
	}
	if !model.ValidDifficulty(question.Difficulty) {
		question.Difficulty = difficulty
	}
	if question.Hint == "" {
		question.Hint = "トレードオフと制約条件を意識して回答してください。"
	}
	return question
}

// FallbackQuestion はゲートウェイ失敗時に使用するローカル質問テンプレートを返す。
// 外部呼び出しが失敗しても面接が停滞しないことを保証する。
func FallbackQuestion(difficulty model.Difficulty, index int) model.Question {
	return model.Question{
		ID:         uuid.New().String(),
		Text:       fmt.Sprintf("サンプル%s質問 #%d", difficultyLabel(difficulty), index+1),
		Difficulty: difficulty,
		Index:      index,
		Hint:       "計算量とパフォーマンスを考慮してください。",
	}
}

func difficultyLabel(d model.Difficulty) string {
	switch d {
	case model.DifficultyEasy:
		return "初級"
	case model.DifficultyMedium:
		return "中級"
	case model.DifficultyHard:
		return "上級"
	default:
		return "中級"
	}
}

func buildQuestionPrompt(candidate *model.CandidateProfile, difficulty model.Difficulty, previous []model.Question) string {
	return fmt.Sprintf(`You are an interviewer assistant tasked with generating a single unique question for a React + Node full-stack role.

Rules:
- Output exactly one JSON object with fields: id, text, difficulty (easy|medium|hard), hint.
- Difficulty must match: %s.
- The question must NOT be semantically similar to any of the previous questions.
- Do not repeat or paraphrase previous questions.
- Keep text concise, realistic, and focused on developer skills and trade-offs.

Context:
- Candidate profile: %s.
- Previously asked questions: %s.

Return only the JSON object.`,
		difficulty,
		marshalContext(redactProfile(candidate)),
		marshalContext(previous),
	)
}
