package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/interviewman/internal/model"
)

// PostgresCandidateRepo はPostgreSQLを使用した候補者リポジトリ。
type PostgresCandidateRepo struct {
	db *sql.DB
}

// NewPostgresCandidateRepo はPostgresCandidateRepoを生成する。
func NewPostgresCandidateRepo(db *sql.DB) *PostgresCandidateRepo {
	return &PostgresCandidateRepo{db: db}
}

// FindByID は指定IDの候補者を取得する。見つからない場合はnilを返す。
func (r *PostgresCandidateRepo) FindByID(ctx context.Context, id string) (*model.CandidateProfile, error) {
	c := &model.CandidateProfile{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, email, phone, resume_filename, resume_text, parsed_at,
		        consent_parsing, consent_evaluation, created_at, updated_at
		 FROM candidates
		 WHERE id = $1`,
		id,
	).Scan(
		&c.ID, &c.Name, &c.Email, &c.Phone, &c.ResumeFilename, &c.ResumeText, &c.ParsedAt,
		&c.Consent.ExternalParsing, &c.Consent.ExternalEvaluation, &c.CreatedAt, &c.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find candidate: %w", err)
	}

	return c, nil
}

// Create は候補者を作成する。
func (r *PostgresCandidateRepo) Create(ctx context.Context, candidate *model.CandidateProfile) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO candidates (id, name, email, phone, resume_filename, resume_text, parsed_at,
		                         consent_parsing, consent_evaluation, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		candidate.ID, candidate.Name, candidate.Email, candidate.Phone,
		candidate.ResumeFilename, candidate.ResumeText, candidate.ParsedAt,
		candidate.Consent.ExternalParsing, candidate.Consent.ExternalEvaluation,
		candidate.CreatedAt, candidate.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create candidate: %w", err)
	}
	return nil
}

// Update は候補者情報を更新する。
func (r *PostgresCandidateRepo) Update(ctx context.Context, candidate *model.CandidateProfile) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE candidates
		 SET name = $2, email = $3, phone = $4, resume_filename = $5, resume_text = $6,
		     parsed_at = $7, consent_parsing = $8, consent_evaluation = $9, updated_at = $10
		 WHERE id = $1`,
		candidate.ID, candidate.Name, candidate.Email, candidate.Phone,
		candidate.ResumeFilename, candidate.ResumeText, candidate.ParsedAt,
		candidate.Consent.ExternalParsing, candidate.Consent.ExternalEvaluation,
		candidate.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update candidate: %w", err)
	}
	return nil
}

// DeleteByID は指定IDの候補者を削除する。
// 関連するセッションはCASCADE削除される。
func (r *PostgresCandidateRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM candidates WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete candidate: %w", err)
	}
	return nil
}

// compile-time interface check
var _ CandidateRepository = (*PostgresCandidateRepo)(nil)
