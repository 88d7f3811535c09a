package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/interviewman/internal/candidate"
	"github.com/hitoshi/interviewman/internal/model"
	"github.com/hitoshi/interviewman/internal/resume"
)

// mockCandidateService はCandidateServiceInterfaceのモック実装。
type mockCandidateService struct {
	getFn           func(ctx context.Context, candidateID string) (*model.CandidateProfile, error)
	updateProfileFn func(ctx context.Context, candidateID string, update candidate.ProfileUpdate) (*model.CandidateProfile, error)
	intakeResumeFn  func(ctx context.Context, candidateID, filename string, data []byte) (*candidate.IntakeResult, error)
}

func (m *mockCandidateService) Get(ctx context.Context, candidateID string) (*model.CandidateProfile, error) {
	return m.getFn(ctx, candidateID)
}

func (m *mockCandidateService) UpdateProfile(ctx context.Context, candidateID string, update candidate.ProfileUpdate) (*model.CandidateProfile, error) {
	return m.updateProfileFn(ctx, candidateID, update)
}

func (m *mockCandidateService) IntakeResume(ctx context.Context, candidateID, filename string, data []byte) (*candidate.IntakeResult, error) {
	return m.intakeResumeFn(ctx, candidateID, filename, data)
}

// candidateRouter はテスト用に候補者ルートのみを組み立てる。
func candidateRouter(h *CandidateHandler) http.Handler {
	r := chi.NewRouter()
	r.Route("/api/candidates/{id}", func(r chi.Router) {
		r.Get("/", h.GetCandidate)
		r.Patch("/", h.UpdateProfile)
		r.Post("/resume", h.UploadResume)
	})
	return r
}

func strPtr(s string) *string { return &s }

// TestCandidateHandler_GetCandidate は候補者詳細の取得を検証する。
func TestCandidateHandler_GetCandidate(t *testing.T) {
	service := &mockCandidateService{
		getFn: func(ctx context.Context, candidateID string) (*model.CandidateProfile, error) {
			return &model.CandidateProfile{ID: candidateID, Name: strPtr("山田太郎")}, nil
		},
	}
	h := NewCandidateHandler(service)

	req := httptest.NewRequest(http.MethodGet, "/api/candidates/c1", nil)
	rec := httptest.NewRecorder()
	candidateRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp model.CandidateProfile
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ID != "c1" || resp.Name == nil || *resp.Name != "山田太郎" {
		t.Errorf("profile = %+v", resp)
	}
}

// TestCandidateHandler_GetCandidate_NotFound は404変換を検証する。
func TestCandidateHandler_GetCandidate_NotFound(t *testing.T) {
	service := &mockCandidateService{
		getFn: func(ctx context.Context, candidateID string) (*model.CandidateProfile, error) {
			return nil, model.NewCandidateNotFoundError(candidateID)
		},
	}
	h := NewCandidateHandler(service)

	req := httptest.NewRequest(http.MethodGet, "/api/candidates/missing", nil)
	rec := httptest.NewRecorder()
	candidateRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

// TestCandidateHandler_UpdateProfile は部分更新リクエストがそのまま
// サービスへ渡ることを検証する。
func TestCandidateHandler_UpdateProfile(t *testing.T) {
	var received candidate.ProfileUpdate
	service := &mockCandidateService{
		updateProfileFn: func(ctx context.Context, candidateID string, update candidate.ProfileUpdate) (*model.CandidateProfile, error) {
			received = update
			return &model.CandidateProfile{ID: candidateID, Email: update.Email}, nil
		},
	}
	h := NewCandidateHandler(service)

	body := bytes.NewBufferString(`{"email":"taro@example.com","consent":{"external_evaluation":true}}`)
	req := httptest.NewRequest(http.MethodPatch, "/api/candidates/c1", body)
	rec := httptest.NewRecorder()
	candidateRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if received.Email == nil || *received.Email != "taro@example.com" {
		t.Errorf("Email = %v", received.Email)
	}
	if received.Name != nil {
		t.Errorf("Name = %v, absent field should stay nil", received.Name)
	}
	if received.Consent == nil || !received.Consent.ExternalEvaluation {
		t.Errorf("Consent = %v", received.Consent)
	}
}

// TestCandidateHandler_UpdateProfile_InvalidBody は不正JSONで400が返ることを検証する。
func TestCandidateHandler_UpdateProfile_InvalidBody(t *testing.T) {
	h := NewCandidateHandler(&mockCandidateService{})

	req := httptest.NewRequest(http.MethodPatch, "/api/candidates/c1", bytes.NewBufferString("{broken"))
	rec := httptest.NewRecorder()
	candidateRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

// TestCandidateHandler_UploadResume は履歴書取り込み結果が返ることを検証する。
func TestCandidateHandler_UploadResume(t *testing.T) {
	var receivedFilename string
	var receivedData []byte
	service := &mockCandidateService{
		intakeResumeFn: func(ctx context.Context, candidateID, filename string, data []byte) (*candidate.IntakeResult, error) {
			receivedFilename = filename
			receivedData = data
			return &candidate.IntakeResult{
				Confident: true,
				Parsed:    resume.ParsedFields{Name: strPtr("山田太郎")},
				Candidate: &model.CandidateProfile{ID: candidateID},
			}, nil
		},
	}
	h := NewCandidateHandler(service)

	body := bytes.NewBufferString(`{"filename":"resume.txt","content":"山田太郎\ntaro@example.com"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/candidates/c1/resume", body)
	rec := httptest.NewRecorder()
	candidateRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if receivedFilename != "resume.txt" {
		t.Errorf("filename = %q", receivedFilename)
	}
	if string(receivedData) != "山田太郎\ntaro@example.com" {
		t.Errorf("data = %q", receivedData)
	}
	var resp candidate.IntakeResult
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Confident {
		t.Error("Confident should be true")
	}
}

// TestCandidateHandler_UploadResume_UnsupportedFormat は未対応形式で415が
// 返ることを検証する。
func TestCandidateHandler_UploadResume_UnsupportedFormat(t *testing.T) {
	service := &mockCandidateService{
		intakeResumeFn: func(ctx context.Context, candidateID, filename string, data []byte) (*candidate.IntakeResult, error) {
			return nil, model.NewUnsupportedFormatError(filename)
		},
	}
	h := NewCandidateHandler(service)

	body := bytes.NewBufferString(`{"filename":"resume.pdf","content":"binary"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/candidates/c1/resume", body)
	rec := httptest.NewRecorder()
	candidateRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnsupportedMediaType)
	}
}
