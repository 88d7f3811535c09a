package interview

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/interviewman/internal/metrics"
	"github.com/hitoshi/interviewman/internal/model"
	"github.com/hitoshi/interviewman/internal/repository"
)

// --- モック ---

// memCandidateRepo はインメモリの候補者リポジトリ。
type memCandidateRepo struct {
	mu sync.Mutex
	m  map[string]*model.CandidateProfile
}

func newMemCandidateRepo() *memCandidateRepo {
	return &memCandidateRepo{m: make(map[string]*model.CandidateProfile)}
}

func (r *memCandidateRepo) FindByID(ctx context.Context, id string) (*model.CandidateProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.m[id]
	if !ok {
		return nil, nil
	}
	return copyValue(c), nil
}

func (r *memCandidateRepo) Create(ctx context.Context, candidate *model.CandidateProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[candidate.ID] = copyValue(candidate)
	return nil
}

func (r *memCandidateRepo) Update(ctx context.Context, candidate *model.CandidateProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[candidate.ID] = copyValue(candidate)
	return nil
}

func (r *memCandidateRepo) DeleteByID(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.m, id)
	return nil
}

// memSessionRepo はインメモリのセッションリポジトリ。
// FindByIDはディープコピーを返し、DBからの再読込と同じ分離性を再現する。
type memSessionRepo struct {
	mu sync.Mutex
	m  map[string]*model.Session
	// findHook は読み取りのたびに呼ばれる。読み書きの合間への
	// 並行操作の割り込みをテストで再現するために使う。
	findHook func(id string)
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{m: make(map[string]*model.Session)}
}

func (r *memSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findHook != nil {
		r.findHook(id)
	}
	s, ok := r.m[id]
	if !ok {
		return nil, nil
	}
	return copyValue(s), nil
}

func (r *memSessionRepo) ListAll(ctx context.Context) ([]*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Session
	for _, s := range r.m {
		out = append(out, copyValue(s))
	}
	return out, nil
}

func (r *memSessionRepo) ListByStatus(ctx context.Context, status model.SessionStatus) ([]*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Session
	for _, s := range r.m {
		if s.Status == status {
			out = append(out, copyValue(s))
		}
	}
	return out, nil
}

func (r *memSessionRepo) CountByCandidateID(ctx context.Context, candidateID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, s := range r.m {
		if s.CandidateID == candidateID {
			count++
		}
	}
	return count, nil
}

func (r *memSessionRepo) Create(ctx context.Context, session *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[session.ID] = copyValue(session)
	return nil
}

func (r *memSessionRepo) Update(ctx context.Context, session *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.m[session.ID]; !ok {
		return repository.ErrSessionDeleted
	}
	r.m[session.ID] = copyValue(session)
	return nil
}

func (r *memSessionRepo) UpdateTimers(ctx context.Context, sessionID string, timers map[string]model.TimerState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.m[sessionID]
	if !ok {
		return repository.ErrSessionDeleted
	}
	s.Timers = copyValue(&model.Session{Timers: timers}).Timers
	return nil
}

func (r *memSessionRepo) DeleteByID(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.m, id)
	return nil
}

// memStateRepo はインメモリの現在セッションポインタ。
type memStateRepo struct {
	mu      sync.Mutex
	current string
}

func (r *memStateRepo) CurrentSessionID(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current, nil
}

func (r *memStateRepo) SetCurrentSessionID(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = sessionID
	return nil
}

func (r *memStateRepo) ClearCurrentSessionID(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == sessionID {
		r.current = ""
	}
	return nil
}

// copyValue はJSON経由のディープコピーを行う。
func copyValue[T any](v *T) *T {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		panic(err)
	}
	return &out
}

// stubQuestionGateway は連番IDの質問を返すスタブ。
type stubQuestionGateway struct {
	mu    sync.Mutex
	calls int
}

func (g *stubQuestionGateway) Generate(ctx context.Context, candidate *model.CandidateProfile, difficulty model.Difficulty, index int, previous []model.Question) model.Question {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return model.Question{
		ID:         fmt.Sprintf("q-%d-%d", index, g.calls),
		Text:       fmt.Sprintf("質問 %d", index),
		Difficulty: difficulty,
		Index:      index,
	}
}

// stubEvaluatorGateway は固定スコアの評価を返すスタブ。
// beforeReturnを設定すると、評価確定前（ゲートウェイ応答中）の割り込みを再現できる。
type stubEvaluatorGateway struct {
	mu           sync.Mutex
	calls        int
	score        float64
	beforeReturn func()
}

func (g *stubEvaluatorGateway) Evaluate(ctx context.Context, candidate *model.CandidateProfile, question model.Question, answerText string, answerID string) model.Evaluation {
	g.mu.Lock()
	g.calls++
	n := g.calls
	hook := g.beforeReturn
	score := g.score
	g.mu.Unlock()

	if hook != nil {
		hook()
	}
	return model.Evaluation{
		ID:          fmt.Sprintf("eval-%d", n),
		AnswerID:    answerID,
		Score:       score,
		Feedback:    "よくできました",
		EvaluatedAt: time.Now(),
	}
}

// stubFinalizerGateway は固定レポートまたはエラーを返すスタブ。
type stubFinalizerGateway struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (g *stubFinalizerGateway) Finalize(ctx context.Context, session *model.Session) (*model.FinalReport, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return &model.FinalReport{
		FinalScore:     float64(70 + g.calls),
		Summary:        fmt.Sprintf("総評 %d", g.calls),
		Recommendation: model.RecommendationConsider,
	}, nil
}

// nopSanitizer はテスト用のサニタイザー。前後の空白のみ除去相当の恒等変換。
type nopSanitizer struct{}

func (nopSanitizer) Sanitize(raw string) string { return raw }

// --- テストヘルパー ---

type testEnv struct {
	svc        *Service
	candidates *memCandidateRepo
	sessions   *memSessionRepo
	state      *memStateRepo
	questions  *stubQuestionGateway
	evaluator  *stubEvaluatorGateway
	finalizer  *stubFinalizerGateway
}

// newTestEnv はテスト用のServiceを構築する。
// クロック間隔は1時間に設定し、ティックはテストから直接駆動する。
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		candidates: newMemCandidateRepo(),
		sessions:   newMemSessionRepo(),
		state:      &memStateRepo{},
		questions:  &stubQuestionGateway{},
		evaluator:  &stubEvaluatorGateway{score: 7},
		finalizer:  &stubFinalizerGateway{},
	}

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	env.svc = NewService(
		env.candidates, env.sessions, env.state,
		env.questions, env.evaluator, env.finalizer,
		nopSanitizer{}, metrics.Nop{}, logger,
		ServiceConfig{
			Plan:          DefaultPlan(),
			ClockInterval: time.Hour,
			RearmDelay:    time.Millisecond,
		},
	)
	t.Cleanup(env.svc.Shutdown)
	return env
}

// createStartedSession は完全なプロフィールを持つセッションを作成して開始する。
func (env *testEnv) createStartedSession(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	sessionID, err := env.svc.CreateSession(ctx)
	if err != nil {
		t.Fatalf("CreateSession returned error: %v", err)
	}
	env.fillProfile(t, sessionID)

	if err := env.svc.Start(ctx, sessionID); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	return sessionID
}

// fillProfile はセッションの候補者に必須フィールドを設定する。
func (env *testEnv) fillProfile(t *testing.T, sessionID string) {
	t.Helper()
	ctx := context.Background()

	session, err := env.sessions.FindByID(ctx, sessionID)
	if err != nil || session == nil {
		t.Fatalf("session %s not found", sessionID)
	}
	candidate, _ := env.candidates.FindByID(ctx, session.CandidateID)
	name, email, phone := "山田太郎", "taro@example.com", "090-1234-5678"
	candidate.Name = &name
	candidate.Email = &email
	candidate.Phone = &phone
	if err := env.candidates.Update(ctx, candidate); err != nil {
		t.Fatalf("candidate update failed: %v", err)
	}
}

// waitRearm は提出ロックの解除猶予を確実に越えるまで待つ。
func waitRearm() {
	time.Sleep(20 * time.Millisecond)
}

// --- テスト ---

// TestService_CreateSession はセッション作成と現在ポインタの更新を検証する。
func TestService_CreateSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sessionID, err := env.svc.CreateSession(ctx)
	if err != nil {
		t.Fatalf("CreateSession returned error: %v", err)
	}

	session, err := env.svc.GetSession(ctx, sessionID)
	if err != nil {
		t.Fatalf("GetSession returned error: %v", err)
	}
	if session.Status != model.StatusNotStarted {
		t.Errorf("Status = %q, want %q", session.Status, model.StatusNotStarted)
	}

	candidate, _ := env.candidates.FindByID(ctx, session.CandidateID)
	if candidate == nil {
		t.Fatal("expected blank candidate to be created")
	}
	if candidate.ProfileComplete() {
		t.Error("blank candidate should not have a complete profile")
	}

	current, _ := env.svc.CurrentSessionID(ctx)
	if current != sessionID {
		t.Errorf("CurrentSessionID = %q, want %q", current, sessionID)
	}
}

// TestService_Start_ProfileIncomplete はプロフィール未完了時の開始拒否を検証する。
func TestService_Start_ProfileIncomplete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sessionID, _ := env.svc.CreateSession(ctx)

	err := env.svc.Start(ctx, sessionID)
	if err == nil {
		t.Fatal("expected error for incomplete profile, got nil")
	}
	apiErr, ok := err.(*model.APIError)
	if !ok || apiErr.Code != model.ErrCodeProfileIncomplete {
		t.Fatalf("error = %v, want code %s", err, model.ErrCodeProfileIncomplete)
	}

	// セッションはnot-startedのまま
	session, _ := env.svc.GetSession(ctx, sessionID)
	if session.Status != model.StatusNotStarted {
		t.Errorf("Status = %q, want %q", session.Status, model.StatusNotStarted)
	}
	if env.svc.clock.Running(sessionID) {
		t.Error("clock should not run for a session that failed to start")
	}
}

// TestService_Start はタイマー初期化・質問生成・クロック開始を検証する。
func TestService_Start(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sessionID := env.createStartedSession(t)

	session, _ := env.svc.GetSession(ctx, sessionID)
	if session.Status != model.StatusInProgress {
		t.Fatalf("Status = %q, want %q", session.Status, model.StatusInProgress)
	}

	// 6スロット分のタイマーが構成の制限時間で初期化される
	plan := DefaultPlan()
	for i := 0; i < model.QuestionCount; i++ {
		timer, ok := session.Timers[SlotKey(i)]
		if !ok {
			t.Fatalf("timer for %s not initialized", SlotKey(i))
		}
		if timer.RemainingSeconds != plan.Slots[i].Seconds {
			t.Errorf("%s remaining = %d, want %d", SlotKey(i), timer.RemainingSeconds, plan.Slots[i].Seconds)
		}
	}

	// スロット0の質問が生成済み
	if len(session.QuestionSequence) != 1 {
		t.Fatalf("question count = %d, want 1", len(session.QuestionSequence))
	}
	if session.QuestionSequence[0].Index != 0 {
		t.Errorf("question index = %d, want 0", session.QuestionSequence[0].Index)
	}

	if !env.svc.clock.Running(sessionID) {
		t.Error("clock should be running after start")
	}
}

// TestService_Start_InvalidTransition は二重開始の拒否を検証する。
func TestService_Start_InvalidTransition(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sessionID := env.createStartedSession(t)

	err := env.svc.Start(ctx, sessionID)
	apiErr, ok := err.(*model.APIError)
	if !ok || apiErr.Code != model.ErrCodeInvalidTransition {
		t.Fatalf("error = %v, want code %s", err, model.ErrCodeInvalidTransition)
	}
}

// TestService_SubmitAnswer は回答の記録・評価・インデックス前進・次質問生成を検証する。
func TestService_SubmitAnswer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sessionID := env.createStartedSession(t)

	if err := env.svc.SubmitAnswer(ctx, sessionID, "私の回答です", false); err != nil {
		t.Fatalf("SubmitAnswer returned error: %v", err)
	}

	session, _ := env.svc.GetSession(ctx, sessionID)
	if len(session.Answers) != 1 {
		t.Fatalf("answer count = %d, want 1", len(session.Answers))
	}
	answer := session.Answers[0]
	if answer.Text != "私の回答です" {
		t.Errorf("answer text = %q", answer.Text)
	}
	if answer.AutoSubmitted {
		t.Error("manual submission should not be flagged auto_submitted")
	}
	// 未ティックのため経過時間は0
	if answer.TimeTakenSeconds != 0 {
		t.Errorf("TimeTakenSeconds = %d, want 0", answer.TimeTakenSeconds)
	}

	if got := session.EvaluationFor(answer.ID); got == nil {
		t.Error("expected evaluation for submitted answer")
	} else if got.Score != 7 {
		t.Errorf("score = %v, want 7", got.Score)
	}

	if session.CurrentQuestionIndex != 1 {
		t.Errorf("CurrentQuestionIndex = %d, want 1", session.CurrentQuestionIndex)
	}
	if len(session.QuestionSequence) != 2 {
		t.Errorf("question count = %d, want 2 (next question generated)", len(session.QuestionSequence))
	}
}

// TestService_SubmitAnswer_ExactlyOnce は同時提出のうちちょうど1件だけが
// 記録されることを検証する。
func TestService_SubmitAnswer_ExactlyOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// 解除猶予を長くし、遅れて到着した提出が次の質問に流れ込まないようにする
	env.svc.rearmDelay = time.Second

	sessionID := env.createStartedSession(t)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			// 敗者はエラーではなく静かに破棄される
			if err := env.svc.SubmitAnswer(ctx, sessionID, fmt.Sprintf("回答%d", n), false); err != nil {
				t.Errorf("SubmitAnswer returned error: %v", err)
			}
		}(i)
	}
	wg.Wait()
	waitRearm()

	session, _ := env.svc.GetSession(ctx, sessionID)
	// 勝者の1件だけがスロット0の回答として記録される
	count := 0
	for _, a := range session.Answers {
		if q := session.QuestionByID(a.QuestionID); q != nil && q.Index == 0 {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("slot 0 answer count = %d, want exactly 1", count)
	}
	if session.CurrentQuestionIndex != 1 {
		t.Errorf("CurrentQuestionIndex = %d, want 1", session.CurrentQuestionIndex)
	}
}

// TestService_SubmitAnswer_PartialElapsed は経過時間の途中での手動提出を検証する。
// スロット0（20秒）を15ティック減算した時点の提出は、所要時間15秒として記録される。
func TestService_SubmitAnswer_PartialElapsed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sessionID := env.createStartedSession(t)

	for i := 0; i < 15; i++ {
		env.svc.tick(sessionID)
	}

	if err := env.svc.SubmitAnswer(ctx, sessionID, "B-treeで索引を構成します", false); err != nil {
		t.Fatalf("SubmitAnswer returned error: %v", err)
	}
	waitRearm()

	session, _ := env.svc.GetSession(ctx, sessionID)
	if len(session.Answers) != 1 {
		t.Fatalf("answer count = %d, want 1", len(session.Answers))
	}
	answer := session.Answers[0]
	if answer.TimeTakenSeconds != 15 {
		t.Errorf("TimeTakenSeconds = %d, want 15", answer.TimeTakenSeconds)
	}
	if answer.AutoSubmitted {
		t.Error("manual submission should not be marked auto_submitted")
	}
}

// TestService_SubmitAnswer_PauseDuringChain は提出連鎖の途中に割り込んだ
// pauseのコミットが回答記録の書き戻しで上書きされないことを検証する。
// 回答記録の読み書きはランタイムミューテックス下で行われるため、pauseは
// 書き込みの確定後に直列化され、最終状態はpausedのまま残る。
func TestService_SubmitAnswer_PauseDuringChain(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sessionID := env.createStartedSession(t)

	// 提出連鎖の回答記録の読み取り（SubmitAnswer自身の読み取りの次）で
	// 並行するPauseを発行する。
	var once sync.Once
	pauseDone := make(chan error, 1)
	reads := 0
	env.sessions.findHook = func(id string) {
		if id != sessionID {
			return
		}
		reads++
		if reads == 2 {
			once.Do(func() {
				go func() {
					pauseDone <- env.svc.Pause(context.Background(), sessionID)
				}()
			})
		}
	}

	if err := env.svc.SubmitAnswer(ctx, sessionID, "回答", false); err != nil {
		t.Fatalf("SubmitAnswer returned error: %v", err)
	}
	if err := <-pauseDone; err != nil {
		t.Fatalf("Pause returned error: %v", err)
	}
	waitRearm()

	session, _ := env.svc.GetSession(ctx, sessionID)
	if session.Status != model.StatusPaused {
		t.Fatalf("Status = %q, want %q (pause must survive the submission chain)", session.Status, model.StatusPaused)
	}
	if len(session.Answers) != 1 {
		t.Errorf("answer count = %d, want 1", len(session.Answers))
	}
	if env.svc.clock.Running(sessionID) {
		t.Error("clock should stay stopped after pause")
	}
}

// TestService_Tick はタイマー減算と下限0を検証する。
func TestService_Tick(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sessionID := env.createStartedSession(t)

	env.svc.tick(sessionID)
	env.svc.tick(sessionID)

	session, _ := env.svc.GetSession(ctx, sessionID)
	timer := session.Timers[SlotKey(0)]
	if timer.RemainingSeconds != 18 {
		t.Fatalf("remaining = %d, want 18", timer.RemainingSeconds)
	}
}

// TestService_Tick_AutoSubmitAtZero は残り0秒での自動提出を検証する。
// 追加のティックが重複提出を起こさないことも確認する。
func TestService_Tick_AutoSubmitAtZero(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sessionID := env.createStartedSession(t)

	// スロット0は20秒。20ティックで0になり自動提出が発火する。
	for i := 0; i < 20; i++ {
		env.svc.tick(sessionID)
	}
	waitRearm()

	session, _ := env.svc.GetSession(ctx, sessionID)
	if len(session.Answers) != 1 {
		t.Fatalf("answer count = %d, want 1", len(session.Answers))
	}
	answer := session.Answers[0]
	if !answer.AutoSubmitted {
		t.Error("expected auto_submitted answer")
	}
	if answer.Text != "" {
		t.Errorf("auto-submitted text = %q, want empty", answer.Text)
	}
	if answer.TimeTakenSeconds != 20 {
		t.Errorf("TimeTakenSeconds = %d, want 20", answer.TimeTakenSeconds)
	}
	if session.CurrentQuestionIndex != 1 {
		t.Errorf("CurrentQuestionIndex = %d, want 1", session.CurrentQuestionIndex)
	}
}

// TestService_PauseResume は一時停止と再開で残り時間が保存されることを検証する。
func TestService_PauseResume(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sessionID := env.createStartedSession(t)

	env.svc.tick(sessionID)
	env.svc.tick(sessionID)
	env.svc.tick(sessionID)

	if err := env.svc.Pause(ctx, sessionID); err != nil {
		t.Fatalf("Pause returned error: %v", err)
	}
	if env.svc.clock.Running(sessionID) {
		t.Error("clock should stop while paused")
	}

	session, _ := env.svc.GetSession(ctx, sessionID)
	if session.Status != model.StatusPaused {
		t.Fatalf("Status = %q, want %q", session.Status, model.StatusPaused)
	}

	if err := env.svc.Resume(ctx, sessionID); err != nil {
		t.Fatalf("Resume returned error: %v", err)
	}
	if !env.svc.clock.Running(sessionID) {
		t.Error("clock should run after resume")
	}

	// 残り時間はリセットされない
	session, _ = env.svc.GetSession(ctx, sessionID)
	if got := session.Timers[SlotKey(0)].RemainingSeconds; got != 17 {
		t.Errorf("remaining after resume = %d, want 17", got)
	}
}

// TestService_Pause_FromNotStarted は不正な遷移の拒否を検証する。
func TestService_Pause_FromNotStarted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sessionID, _ := env.svc.CreateSession(ctx)

	err := env.svc.Pause(ctx, sessionID)
	apiErr, ok := err.(*model.APIError)
	if !ok || apiErr.Code != model.ErrCodeInvalidTransition {
		t.Fatalf("error = %v, want code %s", err, model.ErrCodeInvalidTransition)
	}
}

// TestService_End は手動終了を検証する。レポートは生成されない。
func TestService_End(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sessionID := env.createStartedSession(t)

	if err := env.svc.End(ctx, sessionID); err != nil {
		t.Fatalf("End returned error: %v", err)
	}

	session, _ := env.svc.GetSession(ctx, sessionID)
	if session.Status != model.StatusCompleted {
		t.Fatalf("Status = %q, want %q", session.Status, model.StatusCompleted)
	}
	if session.FinalReport != nil {
		t.Error("manual end should not generate a final report")
	}
	if env.svc.clock.Running(sessionID) {
		t.Error("clock should stop after end")
	}

	// 完了後の再終了は拒否される
	err := env.svc.End(ctx, sessionID)
	apiErr, ok := err.(*model.APIError)
	if !ok || apiErr.Code != model.ErrCodeInvalidTransition {
		t.Fatalf("error = %v, want code %s", err, model.ErrCodeInvalidTransition)
	}
}

// TestService_FullInterview は6問の通し実行を検証する。
// 全問回答後にcompletedへ遷移し、最終レポートが保存される。
func TestService_FullInterview(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sessionID := env.createStartedSession(t)

	for i := 0; i < model.QuestionCount; i++ {
		if err := env.svc.SubmitAnswer(ctx, sessionID, fmt.Sprintf("回答 %d", i), false); err != nil {
			t.Fatalf("SubmitAnswer %d returned error: %v", i, err)
		}
		waitRearm()
	}

	session, _ := env.svc.GetSession(ctx, sessionID)
	if session.Status != model.StatusCompleted {
		t.Fatalf("Status = %q, want %q", session.Status, model.StatusCompleted)
	}
	if session.CurrentQuestionIndex != model.QuestionCount {
		t.Errorf("CurrentQuestionIndex = %d, want %d", session.CurrentQuestionIndex, model.QuestionCount)
	}
	if len(session.Answers) != model.QuestionCount {
		t.Errorf("answer count = %d, want %d", len(session.Answers), model.QuestionCount)
	}
	if len(session.Evaluations) != model.QuestionCount {
		t.Errorf("evaluation count = %d, want %d", len(session.Evaluations), model.QuestionCount)
	}
	if session.FinalReport == nil {
		t.Fatal("expected final report after completion")
	}
	if env.svc.clock.Running(sessionID) {
		t.Error("clock should stop after completion")
	}
}

// TestService_FinalizeSoftFailure は最終化失敗時にセッションがcompletedのまま
// 残り、後からFinalizeで再実行できることを検証する。
func TestService_FinalizeSoftFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.finalizer.err = fmt.Errorf("llm unavailable")

	sessionID := env.createStartedSession(t)
	for i := 0; i < model.QuestionCount; i++ {
		if err := env.svc.SubmitAnswer(ctx, sessionID, "回答", false); err != nil {
			t.Fatalf("SubmitAnswer returned error: %v", err)
		}
		waitRearm()
	}

	session, _ := env.svc.GetSession(ctx, sessionID)
	if session.Status != model.StatusCompleted {
		t.Fatalf("Status = %q, want %q", session.Status, model.StatusCompleted)
	}
	if session.FinalReport != nil {
		t.Fatal("report should be absent after finalizer failure")
	}

	// ゲートウェイ復旧後の再実行
	env.finalizer.mu.Lock()
	env.finalizer.err = nil
	env.finalizer.mu.Unlock()

	report, err := env.svc.Finalize(ctx, sessionID)
	if err != nil {
		t.Fatalf("Finalize returned error: %v", err)
	}
	if report == nil {
		t.Fatal("expected report from retry")
	}
}

// TestService_Finalize_Replaces は再実行でレポート全体が置き換わることを検証する。
func TestService_Finalize_Replaces(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sessionID := env.createStartedSession(t)
	if err := env.svc.End(ctx, sessionID); err != nil {
		t.Fatalf("End returned error: %v", err)
	}

	first, err := env.svc.Finalize(ctx, sessionID)
	if err != nil {
		t.Fatalf("first Finalize returned error: %v", err)
	}
	second, err := env.svc.Finalize(ctx, sessionID)
	if err != nil {
		t.Fatalf("second Finalize returned error: %v", err)
	}

	if first.Summary == second.Summary {
		t.Error("expected second finalize to replace the report")
	}

	session, _ := env.svc.GetSession(ctx, sessionID)
	if session.FinalReport.Summary != second.Summary {
		t.Errorf("stored summary = %q, want %q", session.FinalReport.Summary, second.Summary)
	}
}

// TestService_Finalize_NotComplete は未完了セッションの最終化拒否を検証する。
func TestService_Finalize_NotComplete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sessionID := env.createStartedSession(t)

	_, err := env.svc.Finalize(ctx, sessionID)
	apiErr, ok := err.(*model.APIError)
	if !ok || apiErr.Code != model.ErrCodeSessionNotComplete {
		t.Fatalf("error = %v, want code %s", err, model.ErrCodeSessionNotComplete)
	}
}

// TestService_ReEvaluate は評価リストの不可分な全置換を検証する。
// 置換後の評価数は回答数とちょうど一致する。
func TestService_ReEvaluate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sessionID := env.createStartedSession(t)
	for i := 0; i < 3; i++ {
		if err := env.svc.SubmitAnswer(ctx, sessionID, "回答", false); err != nil {
			t.Fatalf("SubmitAnswer returned error: %v", err)
		}
		waitRearm()
	}

	before, _ := env.svc.GetSession(ctx, sessionID)
	oldIDs := make(map[string]bool)
	for _, e := range before.Evaluations {
		oldIDs[e.ID] = true
	}

	env.evaluator.mu.Lock()
	env.evaluator.score = 9
	env.evaluator.mu.Unlock()

	if err := env.svc.ReEvaluate(ctx, sessionID); err != nil {
		t.Fatalf("ReEvaluate returned error: %v", err)
	}

	after, _ := env.svc.GetSession(ctx, sessionID)
	if len(after.Evaluations) != len(after.Answers) {
		t.Fatalf("evaluation count = %d, want %d", len(after.Evaluations), len(after.Answers))
	}
	for _, e := range after.Evaluations {
		if oldIDs[e.ID] {
			t.Errorf("evaluation %s survived re-evaluation", e.ID)
		}
		if e.Score != 9 {
			t.Errorf("score = %v, want 9", e.Score)
		}
	}
}

// TestService_DeleteSession はセッション削除・ポインタのクリア・
// 孤児候補者のカスケード削除を検証する。
func TestService_DeleteSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sessionID := env.createStartedSession(t)
	session, _ := env.svc.GetSession(ctx, sessionID)
	candidateID := session.CandidateID

	if err := env.svc.DeleteSession(ctx, sessionID); err != nil {
		t.Fatalf("DeleteSession returned error: %v", err)
	}

	if _, err := env.svc.GetSession(ctx, sessionID); err == nil {
		t.Error("expected SESSION_NOT_FOUND after delete")
	}

	current, _ := env.svc.CurrentSessionID(ctx)
	if current != "" {
		t.Errorf("CurrentSessionID = %q, want empty", current)
	}

	// セッションを失った候補者も削除される
	candidate, _ := env.candidates.FindByID(ctx, candidateID)
	if candidate != nil {
		t.Error("orphaned candidate should be cascade-deleted")
	}

	if env.svc.clock.Running(sessionID) {
		t.Error("clock should stop on delete")
	}
}

// TestService_DeleteDuringEvaluation は評価応答待ちの間に削除された
// セッションへ結果が書き戻されないことを検証する。
func TestService_DeleteDuringEvaluation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sessionID := env.createStartedSession(t)

	// 評価ゲートウェイの応答中にセッションを削除する
	env.evaluator.beforeReturn = func() {
		env.evaluator.beforeReturn = nil
		if err := env.svc.DeleteSession(ctx, sessionID); err != nil {
			t.Errorf("DeleteSession returned error: %v", err)
		}
	}

	if err := env.svc.SubmitAnswer(ctx, sessionID, "回答", false); err != nil {
		t.Fatalf("SubmitAnswer returned error: %v", err)
	}

	// 遅延応答は破棄され、セッションは復活しない
	session, _ := env.sessions.FindByID(ctx, sessionID)
	if session != nil {
		t.Fatal("deleted session must not be resurrected by a late gateway response")
	}
}

// TestService_ResumeClocks は起動時復旧で進行中セッションのクロックのみが
// 再開されることを検証する。
func TestService_ResumeClocks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	running := env.createStartedSession(t)
	env.svc.clock.Stop(running) // プロセス再起動を再現

	pausedID, _ := env.svc.CreateSession(ctx)

	if err := env.svc.ResumeClocks(ctx); err != nil {
		t.Fatalf("ResumeClocks returned error: %v", err)
	}

	if !env.svc.clock.Running(running) {
		t.Error("in-progress session clock should be restarted")
	}
	if env.svc.clock.Running(pausedID) {
		t.Error("not-started session clock should stay stopped")
	}
}

// TestService_Timeline は質問と回答の時系列の並びを検証する。
func TestService_Timeline(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sessionID := env.createStartedSession(t)
	if err := env.svc.SubmitAnswer(ctx, sessionID, "最初の回答", false); err != nil {
		t.Fatalf("SubmitAnswer returned error: %v", err)
	}

	entries, err := env.svc.Timeline(ctx, sessionID)
	if err != nil {
		t.Fatalf("Timeline returned error: %v", err)
	}

	// 質問0 → 回答0 → 質問1（未回答）の3エントリ
	if len(entries) != 3 {
		t.Fatalf("entry count = %d, want 3", len(entries))
	}
	if entries[0].Role != "interviewer" {
		t.Errorf("entries[0].Role = %q, want interviewer", entries[0].Role)
	}
	if entries[1].Role != "candidate" {
		t.Errorf("entries[1].Role = %q, want candidate", entries[1].Role)
	}
	if entries[1].Text != "最初の回答" {
		t.Errorf("entries[1].Text = %q", entries[1].Text)
	}
	if entries[1].Evaluation == nil {
		t.Error("answer entry should carry its evaluation")
	}
	if entries[2].Role != "interviewer" {
		t.Errorf("entries[2].Role = %q, want interviewer", entries[2].Role)
	}
}

// TestService_Snapshot はタイマー配信用スナップショットを検証する。
func TestService_Snapshot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sessionID := env.createStartedSession(t)
	env.svc.tick(sessionID)

	snap, err := env.svc.Snapshot(ctx, sessionID)
	if err != nil {
		t.Fatalf("Snapshot returned error: %v", err)
	}
	if snap.Status != model.StatusInProgress {
		t.Errorf("Status = %q, want %q", snap.Status, model.StatusInProgress)
	}
	if snap.QuestionIndex != 0 {
		t.Errorf("QuestionIndex = %d, want 0", snap.QuestionIndex)
	}
	if snap.RemainingSeconds != 19 {
		t.Errorf("RemainingSeconds = %d, want 19", snap.RemainingSeconds)
	}
}
