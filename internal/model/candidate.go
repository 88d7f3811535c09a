// Package model はドメインモデルを定義する。
package model

import "time"

// PrivacyConsent は候補者の外部サービス利用同意を表す。
// 2つのフラグは独立しており、片方のみの同意も有効。
type PrivacyConsent struct {
	// ExternalParsing は履歴書の外部パース（LLMによる氏名・連絡先抽出）への同意。
	ExternalParsing bool `json:"external_parsing"`
	// ExternalEvaluation は回答の外部評価（LLMによる採点）への同意。
	ExternalEvaluation bool `json:"external_evaluation"`
}

// CandidateProfile は面接を受ける候補者を表す。
// Name/Email/Phoneは履歴書パースまたは手入力で埋められるまでnilであり、
// 3つすべてが揃うまで面接は開始できない。
type CandidateProfile struct {
	ID             string         `json:"id"`
	Name           *string        `json:"name"`
	Email          *string        `json:"email"`
	Phone          *string        `json:"phone"`
	ResumeFilename string         `json:"resume_filename,omitempty"`
	ResumeText     string         `json:"resume_text,omitempty"`
	ParsedAt       *time.Time     `json:"parsed_at,omitempty"`
	Consent        PrivacyConsent `json:"consent"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// ProfileComplete は面接開始に必要なフィールドがすべて揃っているかを返す。
func (c *CandidateProfile) ProfileComplete() bool {
	return hasValue(c.Name) && hasValue(c.Email) && hasValue(c.Phone)
}

// MissingFields は未入力の必須フィールド名を返す。
// バリデーションエラーのメッセージ生成に使用する。
func (c *CandidateProfile) MissingFields() []string {
	var missing []string
	if !hasValue(c.Name) {
		missing = append(missing, "name")
	}
	if !hasValue(c.Email) {
		missing = append(missing, "email")
	}
	if !hasValue(c.Phone) {
		missing = append(missing, "phone")
	}
	return missing
}

func hasValue(s *string) bool {
	return s != nil && *s != ""
}
