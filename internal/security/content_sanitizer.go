// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizerService は候補者由来のテキスト（履歴書・回答）をサニタイズし、
// ダッシュボードでの表示時にXSS等のリスクを持ち込まないことを保証する。
// bluemondayライブラリのStrictPolicyで全タグを除去し、プレーンテキストのみを残す。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService は候補者由来テキストのサニタイズ機能のインターフェースを定義する。
// 履歴書テキストの保存前および回答テキストの記録前に使用される。
type TextSanitizerService interface {
	// Sanitize は入力からすべてのHTMLタグを除去したプレーンテキストを返す。
	// 面接の回答・履歴書は書式を持たないテキストとして扱うため、
	// 許可タグは存在しない（StrictPolicy）。
	// 前後の空白は取り除かれる。空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// textSanitizer はTextSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は入力からすべてのHTMLタグを除去したプレーンテキストを返す。
func (s *textSanitizer) Sanitize(raw string) string {
	return strings.TrimSpace(s.policy.Sanitize(raw))
}
