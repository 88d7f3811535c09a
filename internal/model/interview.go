// Package model はドメインモデルを定義する。
package model

import "time"

// Difficulty は質問の難易度を表す。
type Difficulty string

const (
	// DifficultyEasy は易しい質問（制限時間20秒）。
	DifficultyEasy Difficulty = "easy"
	// DifficultyMedium は中程度の質問（制限時間60秒）。
	DifficultyMedium Difficulty = "medium"
	// DifficultyHard は難しい質問（制限時間120秒）。
	DifficultyHard Difficulty = "hard"
)

// ValidDifficulty は難易度が定義済みの値かを返す。
func ValidDifficulty(d Difficulty) bool {
	return d == DifficultyEasy || d == DifficultyMedium || d == DifficultyHard
}

// SessionStatus はセッションの状態機械の値を表す。
// 遷移: not-started → in-progress ⇄ paused、in-progress → completed。
// completedは終端状態。
type SessionStatus string

const (
	// StatusNotStarted は面接開始前の状態。
	StatusNotStarted SessionStatus = "not-started"
	// StatusInProgress は面接進行中の状態。
	StatusInProgress SessionStatus = "in-progress"
	// StatusPaused は一時停止中の状態。in-progressからのみ遷移可能。
	StatusPaused SessionStatus = "paused"
	// StatusCompleted は面接完了の終端状態。
	StatusCompleted SessionStatus = "completed"
)

// QuestionCount は1セッションあたりの質問数。
const QuestionCount = 6

// Question は1つの面接質問を表す。生成後はイミュータブルで、
// 生成を要求したセッションが排他的に所有する。
type Question struct {
	ID         string     `json:"id"`
	Text       string     `json:"text"`
	Difficulty Difficulty `json:"difficulty"`
	// Index はシーケンス内の位置（0〜5）。
	Index int    `json:"index"`
	Hint  string `json:"hint,omitempty"`
}

// Answer は1つの質問に対する候補者の回答を表す。
// 質問ごとに1回だけ作成され、作成後はイミュータブル。
type Answer struct {
	ID          string    `json:"id"`
	QuestionID  string    `json:"question_id"`
	CandidateID string    `json:"candidate_id"`
	Text        string    `json:"text"`
	SubmittedAt time.Time `json:"submitted_at"`
	// TimeTakenSeconds はスロットの制限時間から提出時の残り時間を引いた値（下限0）。
	TimeTakenSeconds int `json:"time_taken_seconds"`
	// AutoSubmitted はタイマー満了による強制提出ならtrue。
	AutoSubmitted bool `json:"auto_submitted"`
}

// Rubric は評価の3つのサブスコアを表す。
type Rubric struct {
	Correctness float64 `json:"correctness"`
	Clarity     float64 `json:"clarity"`
	Depth       float64 `json:"depth"`
}

// Evaluation は1つの回答に対する採点結果を表す。
// Ungradedは外部評価の失敗によるフォールバック値であることを示し、
// 「未採点」を「低得点」と区別する。
type Evaluation struct {
	ID       string `json:"id"`
	AnswerID string `json:"answer_id"`
	// Score は0〜10のスコア。
	Score       float64   `json:"score"`
	Feedback    string    `json:"feedback"`
	Rubric      Rubric    `json:"rubric"`
	Ungraded    bool      `json:"ungraded,omitempty"`
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// PerQuestionScore は最終レポート内の質問ごとのスコア。
type PerQuestionScore struct {
	QuestionID string  `json:"question_id"`
	Score      float64 `json:"score"`
}

// 最終レポートの推薦区分。
const (
	RecommendationHire     = "Hire"
	RecommendationConsider = "Consider"
	RecommendationReject   = "Reject"
)

// FinalReport はセッション完了時の総合レポートを表す。
type FinalReport struct {
	// FinalScore は0〜100の総合スコア。
	FinalScore        float64            `json:"final_score"`
	Summary           string             `json:"summary"`
	Recommendation    string             `json:"recommendation"`
	PerQuestionScores []PerQuestionScore `json:"per_question_scores"`
}

// TimerState は1スロットのカウントダウン状態を表す。
type TimerState struct {
	RemainingSeconds int       `json:"remaining_seconds"`
	LastTickAt       time.Time `json:"last_tick_at"`
}

// Session は面接セッションの集約ルート。
// 候補者1名をちょうど1つ参照し、質問・回答・評価のリストを所有する。
type Session struct {
	ID          string `json:"id"`
	CandidateID string `json:"candidate_id"`
	// QuestionSequence は出題順の質問リスト（追記のみ）。
	QuestionSequence []Question `json:"question_sequence"`
	// CurrentQuestionIndex は0〜6。6はセッション完了を意味する。
	CurrentQuestionIndex int `json:"current_question_index"`
	// Answers は提出順の回答リスト。
	Answers []Answer `json:"answers"`
	// Evaluations は評価完了順のリスト。再評価で順序が変わりうるため、
	// 参照は常にAnswerIDで行うこと（位置で引いてはならない）。
	Evaluations []Evaluation  `json:"evaluations"`
	Status      SessionStatus `json:"status"`
	// Timers はスロットキー（slot_0〜slot_5）から残り時間へのマッピング。
	Timers      map[string]TimerState `json:"timers"`
	FinalReport *FinalReport          `json:"final_report,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// CurrentQuestion は現在のスロットの質問を返す。
// まだ生成されていない場合はnilを返す。
func (s *Session) CurrentQuestion() *Question {
	if s.CurrentQuestionIndex < 0 || s.CurrentQuestionIndex >= len(s.QuestionSequence) {
		return nil
	}
	return &s.QuestionSequence[s.CurrentQuestionIndex]
}

// AnswerFor は指定質問IDに対する回答を返す。存在しない場合はnil。
func (s *Session) AnswerFor(questionID string) *Answer {
	for i := range s.Answers {
		if s.Answers[i].QuestionID == questionID {
			return &s.Answers[i]
		}
	}
	return nil
}

// EvaluationFor は指定回答IDに対する評価を返す。存在しない場合はnil。
func (s *Session) EvaluationFor(answerID string) *Evaluation {
	for i := range s.Evaluations {
		if s.Evaluations[i].AnswerID == answerID {
			return &s.Evaluations[i]
		}
	}
	return nil
}

// QuestionByID は指定IDの質問を返す。存在しない場合はnil。
func (s *Session) QuestionByID(questionID string) *Question {
	for i := range s.QuestionSequence {
		if s.QuestionSequence[i].ID == questionID {
			return &s.QuestionSequence[i]
		}
	}
	return nil
}
