package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/interviewman/internal/model"
)

// PostgresSessionRepo はPostgreSQLを使用した面接セッションリポジトリ。
// 質問・回答・評価・タイマーの各リストはJSONBカラムに集約として格納する。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

// sessionColumns はセッション読み取りで常に選択するカラム列。
const sessionColumns = `id, candidate_id, status, current_question_index,
	question_sequence, answers, evaluations, timers, final_report, created_at, updated_at`

// FindByID は指定IDのセッションを取得する。見つからない場合はnilを返す。
func (r *PostgresSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM interview_sessions WHERE id = $1`, id)

	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	return session, nil
}

// ListAll は全セッションを作成日時の降順で返す。
func (r *PostgresSessionRepo) ListAll(ctx context.Context) ([]*model.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM interview_sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	return collectSessions(rows)
}

// ListByStatus は指定状態のセッションを返す。起動時のクロック復旧に使用する。
func (r *PostgresSessionRepo) ListByStatus(ctx context.Context, status model.SessionStatus) ([]*model.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM interview_sessions WHERE status = $1 ORDER BY created_at DESC`,
		string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions by status: %w", err)
	}
	defer rows.Close()

	return collectSessions(rows)
}

// CountByCandidateID は指定候補者を参照するセッション数を返す。
func (r *PostgresSessionRepo) CountByCandidateID(ctx context.Context, candidateID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM interview_sessions WHERE candidate_id = $1`,
		candidateID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return count, nil
}

// Create はセッションを作成する。
func (r *PostgresSessionRepo) Create(ctx context.Context, session *model.Session) error {
	cols, err := marshalSessionColumns(session)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO interview_sessions
		 (id, candidate_id, status, current_question_index,
		  question_sequence, answers, evaluations, timers, final_report, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		session.ID, session.CandidateID, string(session.Status), session.CurrentQuestionIndex,
		cols.questions, cols.answers, cols.evaluations, cols.timers, cols.finalReport,
		session.CreatedAt, session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// Update はセッション全体を上書き保存する。
func (r *PostgresSessionRepo) Update(ctx context.Context, session *model.Session) error {
	cols, err := marshalSessionColumns(session)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE interview_sessions
		 SET status = $2, current_question_index = $3, question_sequence = $4,
		     answers = $5, evaluations = $6, timers = $7, final_report = $8, updated_at = $9
		 WHERE id = $1`,
		session.ID, string(session.Status), session.CurrentQuestionIndex,
		cols.questions, cols.answers, cols.evaluations, cols.timers, cols.finalReport,
		session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	// 削除済みセッションへの書き戻しを検出する（遅延したゲートウェイ応答の破棄）
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return ErrSessionDeleted
	}
	return nil
}

// UpdateTimers はタイマー状態のみを保存する。
func (r *PostgresSessionRepo) UpdateTimers(ctx context.Context, sessionID string, timers map[string]model.TimerState) error {
	data, err := json.Marshal(timers)
	if err != nil {
		return fmt.Errorf("failed to marshal timers: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE interview_sessions SET timers = $2, updated_at = now() WHERE id = $1`,
		sessionID, data,
	)
	if err != nil {
		return fmt.Errorf("failed to update timers: %w", err)
	}
	return nil
}

// DeleteByID は指定IDのセッションを削除する。
func (r *PostgresSessionRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM interview_sessions WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// sessionJSONColumns はJSONBカラムへ書き込むシリアライズ済みデータ。
type sessionJSONColumns struct {
	questions   []byte
	answers     []byte
	evaluations []byte
	timers      []byte
	finalReport []byte // レポート未生成の場合はnil（SQL NULL）
}

func marshalSessionColumns(session *model.Session) (*sessionJSONColumns, error) {
	cols := &sessionJSONColumns{}
	var err error

	if cols.questions, err = marshalList(session.QuestionSequence); err != nil {
		return nil, fmt.Errorf("failed to marshal question_sequence: %w", err)
	}
	if cols.answers, err = marshalList(session.Answers); err != nil {
		return nil, fmt.Errorf("failed to marshal answers: %w", err)
	}
	if cols.evaluations, err = marshalList(session.Evaluations); err != nil {
		return nil, fmt.Errorf("failed to marshal evaluations: %w", err)
	}

	timers := session.Timers
	if timers == nil {
		timers = map[string]model.TimerState{}
	}
	if cols.timers, err = json.Marshal(timers); err != nil {
		return nil, fmt.Errorf("failed to marshal timers: %w", err)
	}

	if session.FinalReport != nil {
		if cols.finalReport, err = json.Marshal(session.FinalReport); err != nil {
			return nil, fmt.Errorf("failed to marshal final_report: %w", err)
		}
	}
	return cols, nil
}

// marshalList はnilスライスを空のJSON配列として書き込む。
func marshalList[T any](list []T) ([]byte, error) {
	if list == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(list)
}

// rowScanner はsql.Rowとsql.Rowsの共通部分。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*model.Session, error) {
	s := &model.Session{}
	var (
		status      string
		questions   []byte
		answers     []byte
		evaluations []byte
		timers      []byte
		finalReport []byte
	)

	err := row.Scan(
		&s.ID, &s.CandidateID, &status, &s.CurrentQuestionIndex,
		&questions, &answers, &evaluations, &timers, &finalReport,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Status = model.SessionStatus(status)
	if err := json.Unmarshal(questions, &s.QuestionSequence); err != nil {
		return nil, fmt.Errorf("failed to unmarshal question_sequence: %w", err)
	}
	if err := json.Unmarshal(answers, &s.Answers); err != nil {
		return nil, fmt.Errorf("failed to unmarshal answers: %w", err)
	}
	if err := json.Unmarshal(evaluations, &s.Evaluations); err != nil {
		return nil, fmt.Errorf("failed to unmarshal evaluations: %w", err)
	}
	if err := json.Unmarshal(timers, &s.Timers); err != nil {
		return nil, fmt.Errorf("failed to unmarshal timers: %w", err)
	}
	if len(finalReport) > 0 {
		report := &model.FinalReport{}
		if err := json.Unmarshal(finalReport, report); err != nil {
			return nil, fmt.Errorf("failed to unmarshal final_report: %w", err)
		}
		s.FinalReport = report
	}
	return s, nil
}

func collectSessions(rows *sql.Rows) ([]*model.Session, error) {
	var sessions []*model.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}
	return sessions, nil
}

// compile-time interface check
var _ SessionRepository = (*PostgresSessionRepo)(nil)
