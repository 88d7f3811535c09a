// Package resume は履歴書テキストの取り込みとフィールド抽出を提供する。
// 外部パーサー（同意がある場合のみ）の補完・フォールバックとして、
// 正規表現によるローカル抽出を常に実行する。
package resume

import (
	"regexp"
	"strings"
)

// ParsedFields は履歴書から抽出した候補者フィールドを表す。
// 見つからなかったフィールドはnil。
type ParsedFields struct {
	Name  *string
	Email *string
	Phone *string
}

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?\d[\d\s\-().]{6,}\d`)
)

// ParseLocal は履歴書テキストからローカルパターン抽出を行う。
// メールアドレスと電話番号は正規表現、氏名は最初の空白でない行を
// ヒューリスティックに採用する。外部呼び出しは一切行わない。
func ParseLocal(resumeText string) ParsedFields {
	fields := ParsedFields{}

	if email := emailPattern.FindString(resumeText); email != "" {
		fields.Email = &email
	}
	if phone := phonePattern.FindString(resumeText); phone != "" {
		fields.Phone = &phone
	}
	if name := firstNonBlankLine(resumeText); name != "" {
		fields.Name = &name
	}

	return fields
}

// Merge は外部抽出結果を優先し、欠けたフィールドをローカル抽出で補完する。
func Merge(external, local ParsedFields) ParsedFields {
	merged := external
	if merged.Name == nil {
		merged.Name = local.Name
	}
	if merged.Email == nil {
		merged.Email = local.Email
	}
	if merged.Phone == nil {
		merged.Phone = local.Phone
	}
	return merged
}

// firstNonBlankLine は最初の空白でない行を返す。
// メールアドレスや電話番号の行は氏名として不適切なため読み飛ばす。
func firstNonBlankLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if emailPattern.MatchString(trimmed) || phonePattern.MatchString(trimmed) {
			continue
		}
		return trimmed
	}
	return ""
}
