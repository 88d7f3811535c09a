package gateway

import (
	"encoding/json"
	"strings"

	"github.com/hitoshi/interviewman/internal/model"
)

// extractJSONObject はLLMの生テキストから最初のJSONオブジェクトを切り出して
// vにデコードする。LLMはコードフェンスや前置きを付けることがあるため、
// 最初の「{」から最後の「}」までを対象にする。
// オブジェクトが見つからない、またはデコードできない場合はfalseを返す。
func extractJSONObject(raw string, v any) bool {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return false
	}
	return json.Unmarshal([]byte(raw[start:end+1]), v) == nil
}

// clamp はvをlo〜hiの範囲に収める。
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// profileContext はプロンプトに埋め込む候補者コンテキスト。
// 外部評価への同意がない場合、履歴書テキストは含めない。
type profileContext struct {
	Name       *string `json:"name"`
	Email      *string `json:"email"`
	ResumeText string  `json:"resume_text,omitempty"`
}

// redactProfile は同意フラグに従って候補者プロフィールを縮約する。
func redactProfile(candidate *model.CandidateProfile) profileContext {
	pc := profileContext{}
	if candidate == nil {
		return pc
	}
	pc.Name = candidate.Name
	pc.Email = candidate.Email
	if candidate.Consent.ExternalEvaluation {
		pc.ResumeText = candidate.ResumeText
	}
	return pc
}

// marshalContext はプロンプト埋め込み用のJSON文字列を返す。
// マーシャル失敗時は空オブジェクトを返す（プロンプト生成は失敗させない）。
func marshalContext(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}
