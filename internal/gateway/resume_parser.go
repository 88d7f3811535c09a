package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/interviewman/internal/metrics"
	"github.com/hitoshi/interviewman/internal/model"
	"github.com/hitoshi/interviewman/internal/resume"
)

// ResumeParser は外部評価器による履歴書フィールド抽出のゲートウェイ。
// 候補者が外部パースに同意している場合のみ呼び出される。
// 失敗はエラーとして返し、呼び出し元はローカル抽出結果のみで継続する。
type ResumeParser struct {
	llm       TextCompleter
	logger    *slog.Logger
	collector metrics.MetricsCollector
	timeout   time.Duration
}

// NewResumeParser はResumeParserの新しいインスタンスを生成する。
// timeoutが0以下の場合はデフォルト値20秒を使用する。
func NewResumeParser(llm TextCompleter, logger *slog.Logger, collector metrics.MetricsCollector, timeout time.Duration) *ResumeParser {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &ResumeParser{
		llm:       llm,
		logger:    logger,
		collector: collector,
		timeout:   timeout,
	}
}

// fieldsWire は外部評価器の応答形状。
type fieldsWire struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
	Phone *string `json:"phone"`
}

// Parse は履歴書テキストから氏名・メールアドレス・電話番号を抽出する。
// 同意確認は呼び出し元の責務（このゲートウェイは渡されたテキストをそのまま送信する）。
func (p *ResumeParser) Parse(ctx context.Context, candidate *model.CandidateProfile, resumeText string) (resume.ParsedFields, error) {
	if !candidate.Consent.ExternalParsing {
		return resume.ParsedFields{}, fmt.Errorf("candidate %s has not consented to external parsing", candidate.ID)
	}

	prompt := fmt.Sprintf(`You are a JSON extractor. Input is a candidate resume text delimited by triple backticks. Extract the candidate's name, primary email, and primary phone number. If a field is missing put null. Respond with a strict JSON object and nothing else in the response. Example output: {"name":"Aisha Khan","email":"aisha.khan@example.com","phone":"+91 98765 43210"}

Resume text:
`+"```%s```", resumeText)

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	raw, err := p.llm.Complete(callCtx, prompt)
	p.collector.RecordGatewayLatency(metrics.GatewayResume, time.Since(start))

	if err != nil {
		p.collector.RecordGatewayFallback(metrics.GatewayResume)
		return resume.ParsedFields{}, fmt.Errorf("parse resume: %w", err)
	}

	var wire fieldsWire
	if !extractJSONObject(raw, &wire) {
		p.collector.RecordGatewayFallback(metrics.GatewayResume)
		return resume.ParsedFields{}, fmt.Errorf("parse resume: malformed response")
	}

	return resume.ParsedFields{
		Name:  emptyToNil(wire.Name),
		Email: emptyToNil(wire.Email),
		Phone: emptyToNil(wire.Phone),
	}, nil
}

func emptyToNil(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
