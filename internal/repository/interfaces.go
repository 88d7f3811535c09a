// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/interviewman/internal/model"
)

// ErrSessionDeleted は削除済みセッションへの書き戻しを示す。
// 遅延したゲートウェイ応答の適用先がすでに消えている場合に返され、
// 呼び出し元は結果を破棄する。
var ErrSessionDeleted = errors.New("session no longer exists")

// CandidateRepository は候補者データの永続化インターフェース。
type CandidateRepository interface {
	// FindByID は指定IDの候補者を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.CandidateProfile, error)

	// Create は候補者を作成する。
	Create(ctx context.Context, candidate *model.CandidateProfile) error

	// Update は候補者情報を更新する。
	Update(ctx context.Context, candidate *model.CandidateProfile) error

	// DeleteByID は指定IDの候補者を削除する。
	// 関連するセッションはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// SessionRepository は面接セッションの永続化インターフェース。
// すべての書き込みはコミット完了をもって確定とみなす。書き込み失敗は
// 呼び出し元に伝播し、サイレントにコミット扱いしてはならない。
type SessionRepository interface {
	// FindByID は指定IDのセッションを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)

	// ListAll は全セッションを作成日時の降順で返す。
	ListAll(ctx context.Context) ([]*model.Session, error)

	// ListByStatus は指定状態のセッションを返す。起動時のクロック復旧に使用する。
	ListByStatus(ctx context.Context, status model.SessionStatus) ([]*model.Session, error)

	// CountByCandidateID は指定候補者を参照するセッション数を返す。
	// 孤児候補者のカスケード削除判定に使用する。
	CountByCandidateID(ctx context.Context, candidateID string) (int, error)

	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error

	// Update はセッション全体を上書き保存する。
	Update(ctx context.Context, session *model.Session) error

	// UpdateTimers はタイマー状態のみを保存する。毎秒のティックで呼ばれるため、
	// 集約全体の書き換えを避けた専用メソッドとしている。
	UpdateTimers(ctx context.Context, sessionID string, timers map[string]model.TimerState) error

	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
}

// StateRepository は「現在表示中のセッション」ポインタの永続化インターフェース。
type StateRepository interface {
	// CurrentSessionID は現在のセッションIDを返す。未設定の場合は空文字列。
	CurrentSessionID(ctx context.Context) (string, error)

	// SetCurrentSessionID は現在のセッションIDを設定する。
	SetCurrentSessionID(ctx context.Context, sessionID string) error

	// ClearCurrentSessionID は指定IDが現在のセッションである場合のみクリアする。
	ClearCurrentSessionID(ctx context.Context, sessionID string) error
}
