package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/interviewman/internal/candidate"
	"github.com/hitoshi/interviewman/internal/model"
)

// maxResumeBytes は履歴書アップロードの最大サイズ（1MB）。
const maxResumeBytes = 1 << 20

// CandidateServiceInterface は候補者ハンドラーが必要とするサービスインターフェース。
type CandidateServiceInterface interface {
	// Get は候補者を取得する。
	Get(ctx context.Context, candidateID string) (*model.CandidateProfile, error)
	// UpdateProfile はプロフィールを部分更新する。
	UpdateProfile(ctx context.Context, candidateID string, update candidate.ProfileUpdate) (*model.CandidateProfile, error)
	// IntakeResume は履歴書を取り込みプロフィールを埋める。
	IntakeResume(ctx context.Context, candidateID, filename string, data []byte) (*candidate.IntakeResult, error)
}

// CandidateHandler は候補者プロフィール管理のHTTPハンドラー。
type CandidateHandler struct {
	service CandidateServiceInterface
}

// NewCandidateHandler はCandidateHandlerを生成する。
func NewCandidateHandler(service CandidateServiceInterface) *CandidateHandler {
	return &CandidateHandler{service: service}
}

// uploadResumeRequest は履歴書アップロードリクエストのボディ。
// クライアント側でファイルをテキストとして読み取り、JSONで送信する。
type uploadResumeRequest struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// GetCandidate は候補者詳細を返す。
// GET /api/candidates/:id
func (h *CandidateHandler) GetCandidate(w http.ResponseWriter, r *http.Request) {
	profile, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(profile)
}

// UpdateProfile はプロフィールと同意フラグを部分更新する。
// PATCH /api/candidates/:id
func (h *CandidateHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	candidateID := chi.URLParam(r, "id")

	var update candidate.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	profile, err := h.service.UpdateProfile(r.Context(), candidateID, update)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(profile)
}

// UploadResume は履歴書を取り込み、抽出したフィールドでプロフィールを埋める。
// POST /api/candidates/:id/resume
func (h *CandidateHandler) UploadResume(w http.ResponseWriter, r *http.Request) {
	candidateID := chi.URLParam(r, "id")

	var req uploadResumeRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxResumeBytes)).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。サイズ上限は1MBです。",
		})
		return
	}

	result, err := h.service.IntakeResume(r.Context(), candidateID, req.Filename, []byte(req.Content))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}
