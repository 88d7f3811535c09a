package interview

import (
	"context"
	"time"

	"github.com/hitoshi/interviewman/internal/model"
)

// TimelineEntry はチャット形式の履歴の1要素。
// Roleがinterviewerなら質問、candidateなら回答を表す。
type TimelineEntry struct {
	Role string `json:"role"`
	Text string `json:"text"`
	// QuestionID は対応する質問のID。回答エントリにも付与される。
	QuestionID string     `json:"question_id"`
	Difficulty string     `json:"difficulty,omitempty"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
	// Evaluation は回答エントリに紐づく採点結果。未評価の場合はnil。
	Evaluation *model.Evaluation `json:"evaluation,omitempty"`
	// AutoSubmitted は回答エントリがタイマー満了による提出ならtrue。
	AutoSubmitted bool `json:"auto_submitted,omitempty"`
}

// Timeline は質問→回答→評価の連鎖をチャット履歴の形で返す。
// 質問は出題順に並び、回答済みの質問の直後にその回答が続く。
// 現在の質問が未回答の場合、末尾は質問エントリで終わる。
func (s *Service) Timeline(ctx context.Context, sessionID string) ([]TimelineEntry, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, model.NewSessionNotFoundError(sessionID)
	}

	entries := make([]TimelineEntry, 0, len(session.QuestionSequence)*2)
	for _, q := range session.QuestionSequence {
		entries = append(entries, TimelineEntry{
			Role:       "interviewer",
			Text:       q.Text,
			QuestionID: q.ID,
			Difficulty: string(q.Difficulty),
		})

		answer := session.AnswerFor(q.ID)
		if answer == nil {
			continue
		}
		submittedAt := answer.SubmittedAt
		entries = append(entries, TimelineEntry{
			Role:          "candidate",
			Text:          answer.Text,
			QuestionID:    q.ID,
			Timestamp:     &submittedAt,
			Evaluation:    session.EvaluationFor(answer.ID),
			AutoSubmitted: answer.AutoSubmitted,
		})
	}
	return entries, nil
}
