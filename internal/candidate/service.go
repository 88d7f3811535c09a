// Package candidate は候補者プロフィールの編集と履歴書の取り込みを提供する。
package candidate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/interviewman/internal/model"
	"github.com/hitoshi/interviewman/internal/repository"
	"github.com/hitoshi/interviewman/internal/resume"
	"github.com/hitoshi/interviewman/internal/security"
)

// ResumeGateway は履歴書の外部パースのインターフェース。
// 同意がない場合は呼び出し側でスキップする。
type ResumeGateway interface {
	Parse(ctx context.Context, candidate *model.CandidateProfile, resumeText string) (resume.ParsedFields, error)
}

// ProfileUpdate はプロフィールの部分更新。nilのフィールドは変更しない。
type ProfileUpdate struct {
	Name    *string               `json:"name"`
	Email   *string               `json:"email"`
	Phone   *string               `json:"phone"`
	Consent *model.PrivacyConsent `json:"consent"`
}

// IntakeResult は履歴書取り込みの結果。
type IntakeResult struct {
	// Confident は抽出テキストが十分な長さと語数を持つか。
	// falseの場合、クライアントは手入力を促すべき。
	Confident bool                    `json:"confident"`
	Parsed    resume.ParsedFields     `json:"parsed"`
	Candidate *model.CandidateProfile `json:"candidate"`
}

// Service は候補者プロフィールの業務ロジック。
type Service struct {
	candidates repository.CandidateRepository
	parser     ResumeGateway
	sanitizer  security.TextSanitizerService
	logger     *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(candidates repository.CandidateRepository, parser ResumeGateway, sanitizer security.TextSanitizerService, logger *slog.Logger) *Service {
	return &Service{
		candidates: candidates,
		parser:     parser,
		sanitizer:  sanitizer,
		logger:     logger,
	}
}

// Get は指定IDの候補者を返す。
func (s *Service) Get(ctx context.Context, candidateID string) (*model.CandidateProfile, error) {
	candidate, err := s.candidates.FindByID(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	if candidate == nil {
		return nil, model.NewCandidateNotFoundError(candidateID)
	}
	return candidate, nil
}

// UpdateProfile はプロフィールを部分更新する。
// nilでないフィールドのみを上書きし、テキストはサニタイズしてから保存する。
func (s *Service) UpdateProfile(ctx context.Context, candidateID string, update ProfileUpdate) (*model.CandidateProfile, error) {
	candidate, err := s.candidates.FindByID(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	if candidate == nil {
		return nil, model.NewCandidateNotFoundError(candidateID)
	}

	if update.Name != nil {
		name := s.sanitizer.Sanitize(*update.Name)
		candidate.Name = &name
	}
	if update.Email != nil {
		email := s.sanitizer.Sanitize(*update.Email)
		candidate.Email = &email
	}
	if update.Phone != nil {
		phone := s.sanitizer.Sanitize(*update.Phone)
		candidate.Phone = &phone
	}
	if update.Consent != nil {
		candidate.Consent = *update.Consent
	}
	candidate.UpdatedAt = time.Now()

	if err := s.candidates.Update(ctx, candidate); err != nil {
		return nil, fmt.Errorf("候補者プロフィールの更新に失敗しました: %w", err)
	}
	return candidate, nil
}

// IntakeResume は履歴書ファイルを取り込み、氏名・メール・電話番号を抽出して
// プロフィールを埋める。外部パースは同意がある場合のみ実行し、失敗しても
// ローカルパースの結果で続行する。抽出済みのフィールドは、プロフィールの
// 該当フィールドが空の場合のみ反映する（手入力を上書きしない）。
func (s *Service) IntakeResume(ctx context.Context, candidateID, filename string, data []byte) (*IntakeResult, error) {
	candidate, err := s.candidates.FindByID(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	if candidate == nil {
		return nil, model.NewCandidateNotFoundError(candidateID)
	}

	extracted, err := resume.ExtractDocumentText(filename, data)
	if err != nil {
		return nil, err
	}

	text := s.sanitizer.Sanitize(extracted.Text)
	local := resume.ParseLocal(text)

	parsed := local
	if candidate.Consent.ExternalParsing {
		external, err := s.parser.Parse(ctx, candidate, text)
		if err != nil {
			s.logger.Warn("履歴書の外部パースに失敗しました。ローカル結果で続行します",
				slog.String("candidate_id", candidateID),
				slog.String("error", err.Error()),
			)
		} else {
			parsed = resume.Merge(external, local)
		}
	}

	applyIfEmpty(&candidate.Name, parsed.Name)
	applyIfEmpty(&candidate.Email, parsed.Email)
	applyIfEmpty(&candidate.Phone, parsed.Phone)

	now := time.Now()
	candidate.ResumeFilename = filename
	candidate.ResumeText = text
	candidate.ParsedAt = &now
	candidate.UpdatedAt = now

	if err := s.candidates.Update(ctx, candidate); err != nil {
		return nil, fmt.Errorf("履歴書取り込み結果の保存に失敗しました: %w", err)
	}

	return &IntakeResult{
		Confident: extracted.OK,
		Parsed:    parsed,
		Candidate: candidate,
	}, nil
}

// applyIfEmpty はdstが未設定の場合のみvalueを反映する。
func applyIfEmpty(dst **string, value *string) {
	if value == nil || *value == "" {
		return
	}
	if *dst != nil && **dst != "" {
		return
	}
	v := *value
	*dst = &v
}
