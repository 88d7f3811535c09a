// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"strings"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, session, candidate, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeSessionNotFound    = "SESSION_NOT_FOUND"
	ErrCodeCandidateNotFound  = "CANDIDATE_NOT_FOUND"
	ErrCodeProfileIncomplete  = "PROFILE_INCOMPLETE"
	ErrCodeInvalidTransition  = "INVALID_TRANSITION"
	ErrCodeSessionCompleted   = "SESSION_COMPLETED"
	ErrCodeSessionNotComplete = "SESSION_NOT_COMPLETE"
	ErrCodeNoCurrentQuestion  = "NO_CURRENT_QUESTION"
	ErrCodeInvalidWebhookURL  = "INVALID_WEBHOOK_URL"
	ErrCodeReportMissing      = "REPORT_MISSING"
	ErrCodeUnsupportedFormat  = "UNSUPPORTED_FORMAT"
)

// NewSessionNotFoundError はセッション未検出エラーを生成する。
func NewSessionNotFoundError(sessionID string) *APIError {
	return &APIError{
		Code:     ErrCodeSessionNotFound,
		Message:  fmt.Sprintf("指定されたセッションが見つかりません: %s", sessionID),
		Category: "session",
		Action:   "セッションIDを確認してください。削除済みのセッションは参照できません。",
	}
}

// NewCandidateNotFoundError は候補者未検出エラーを生成する。
func NewCandidateNotFoundError(candidateID string) *APIError {
	return &APIError{
		Code:     ErrCodeCandidateNotFound,
		Message:  fmt.Sprintf("指定された候補者が見つかりません: %s", candidateID),
		Category: "candidate",
		Action:   "候補者IDを確認してください。",
	}
}

// NewProfileIncompleteError はプロフィール未完了エラーを生成する。
// 面接開始時のバリデーション失敗として呼び出し元に明示的に通知される。
func NewProfileIncompleteError(missing []string) *APIError {
	return &APIError{
		Code:     ErrCodeProfileIncomplete,
		Message:  fmt.Sprintf("候補者プロフィールが未完了です。不足フィールド: %s", strings.Join(missing, ", ")),
		Category: "validation",
		Action:   "氏名・メールアドレス・電話番号をすべて入力してから面接を開始してください。",
	}
}

// NewInvalidTransitionError は不正な状態遷移エラーを生成する。
func NewInvalidTransitionError(from SessionStatus, event string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTransition,
		Message:  fmt.Sprintf("状態 %s では操作 %s を実行できません。", from, event),
		Category: "session",
		Action:   "セッションの現在の状態を確認してください。",
	}
}

// NewSessionCompletedError は完了済みセッションへの操作エラーを生成する。
func NewSessionCompletedError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionCompleted,
		Message:  "セッションはすでに完了しています。",
		Category: "session",
		Action:   "完了済みセッションは閲覧・再評価のみ可能です。",
	}
}

// NewSessionNotCompleteError は未完了セッションへの完了時限定操作エラーを生成する。
func NewSessionNotCompleteError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionNotComplete,
		Message:  "セッションがまだ完了していません。",
		Category: "session",
		Action:   "最終レポートの生成・送信はセッション完了後に実行してください。",
	}
}

// NewInvalidWebhookURLError は不正なWebhook URLエラーを生成する。
func NewInvalidWebhookURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidWebhookURL,
		Message:  fmt.Sprintf("無効なWebhook URLです: %s", reason),
		Category: "validation",
		Action:   "http:// または https:// で始まる公開URLを指定してください。プライベートネットワークへの送信は許可されていません。",
	}
}

// NewReportMissingError は最終レポート未生成エラーを生成する。
func NewReportMissingError() *APIError {
	return &APIError{
		Code:     ErrCodeReportMissing,
		Message:  "このセッションには最終レポートがありません。",
		Category: "session",
		Action:   "先にレポートの生成（finalize）を実行してください。",
	}
}

// NewUnsupportedFormatError は未対応の文書形式エラーを生成する。
func NewUnsupportedFormatError(filename string) *APIError {
	return &APIError{
		Code:     ErrCodeUnsupportedFormat,
		Message:  fmt.Sprintf("対応していない文書形式です: %s", filename),
		Category: "validation",
		Action:   "テキスト（.txt）またはHTML（.html）形式でアップロードしてください。",
	}
}
