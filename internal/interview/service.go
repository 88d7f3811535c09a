package interview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/interviewman/internal/metrics"
	"github.com/hitoshi/interviewman/internal/model"
	"github.com/hitoshi/interviewman/internal/repository"
	"github.com/hitoshi/interviewman/internal/security"
)

// QuestionGateway は質問生成のインターフェース。
// 実装は失敗時にフォールバック質問を返し、エラーを返さない。
type QuestionGateway interface {
	Generate(ctx context.Context, candidate *model.CandidateProfile, difficulty model.Difficulty, index int, previous []model.Question) model.Question
}

// EvaluatorGateway は回答採点のインターフェース。
// 実装は失敗時に未採点フォールバック評価を返し、エラーを返さない。
type EvaluatorGateway interface {
	Evaluate(ctx context.Context, candidate *model.CandidateProfile, question model.Question, answerText string, answerID string) model.Evaluation
}

// FinalizerGateway は最終レポート生成のインターフェース。
// 失敗はエラーとして返る（ソフト失敗。セッションはcompletedのまま残る）。
type FinalizerGateway interface {
	Finalize(ctx context.Context, session *model.Session) (*model.FinalReport, error)
}

// ServiceConfig はServiceの動作パラメータ。
type ServiceConfig struct {
	Plan Plan
	// ClockInterval はカウントダウンの減算間隔。
	ClockInterval time.Duration
	// RearmDelay は提出連鎖の完了後、提出ロックを解除するまでの猶予。
	// 次の質問のタイマーが解除直後のロックに飛び込むレースを避ける。
	RearmDelay time.Duration
	// OpTimeout はティック起点の内部操作に適用するタイムアウト。
	OpTimeout time.Duration
}

// Service は面接セッションの状態機械。
// セッション列（6スロット）の進行、タイマー規則、提出ロック、
// ゲートウェイ連携、状態遷移を所有する。
// プロセスごとに1回構築し、§のすべての操作を公開メソッドとして提供する。
// セッション間で共有される可変状態は永続化層のみであり、
// セッションごとの操作はセッション単位のロックで直列化される。
type Service struct {
	candidates repository.CandidateRepository
	sessions   repository.SessionRepository
	state      repository.StateRepository
	questions  QuestionGateway
	evaluator  EvaluatorGateway
	finalizer  FinalizerGateway
	sanitizer  security.TextSanitizerService
	collector  metrics.MetricsCollector
	logger     *slog.Logger

	plan       Plan
	clock      *Clock
	rearmDelay time.Duration
	opTimeout  time.Duration

	mu       sync.Mutex
	runtimes map[string]*sessionRuntime
}

// sessionRuntime は1セッション分のインメモリ実行状態。
// submittingが提出ロック: タイマー満了による自動提出と手動提出のうち、
// ちょうど1つだけが回答を記録する。
type sessionRuntime struct {
	mu         sync.Mutex
	submitting bool
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	candidates repository.CandidateRepository,
	sessions repository.SessionRepository,
	state repository.StateRepository,
	questions QuestionGateway,
	evaluator EvaluatorGateway,
	finalizer FinalizerGateway,
	sanitizer security.TextSanitizerService,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	cfg ServiceConfig,
) *Service {
	if len(cfg.Plan.Slots) == 0 {
		cfg.Plan = DefaultPlan()
	}
	if cfg.RearmDelay <= 0 {
		cfg.RearmDelay = 500 * time.Millisecond
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = 30 * time.Second
	}

	s := &Service{
		candidates: candidates,
		sessions:   sessions,
		state:      state,
		questions:  questions,
		evaluator:  evaluator,
		finalizer:  finalizer,
		sanitizer:  sanitizer,
		collector:  collector,
		logger:     logger,
		plan:       cfg.Plan,
		rearmDelay: cfg.RearmDelay,
		opTimeout:  cfg.OpTimeout,
		runtimes:   make(map[string]*sessionRuntime),
	}
	s.clock = NewClock(cfg.ClockInterval, s.tick, logger)
	return s
}

// runtime は指定セッションの実行状態を取得（なければ作成）する。
func (s *Service) runtime(sessionID string) *sessionRuntime {
	s.mu.Lock()
	defer s.mu.Unlock()

	rt, ok := s.runtimes[sessionID]
	if !ok {
		rt = &sessionRuntime{}
		s.runtimes[sessionID] = rt
	}
	return rt
}

// CreateSession は空の候補者と未開始セッションを作成し、
// 現在セッションポインタを新しいセッションへ向ける。
func (s *Service) CreateSession(ctx context.Context) (string, error) {
	now := time.Now()

	candidate := &model.CandidateProfile{
		ID:        uuid.New().String(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.candidates.Create(ctx, candidate); err != nil {
		return "", fmt.Errorf("セッション用候補者の作成に失敗しました: %w", err)
	}

	session := &model.Session{
		ID:          uuid.New().String(),
		CandidateID: candidate.ID,
		Status:      model.StatusNotStarted,
		Timers:      map[string]model.TimerState{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return "", fmt.Errorf("セッションの作成に失敗しました: %w", err)
	}

	if err := s.state.SetCurrentSessionID(ctx, session.ID); err != nil {
		return "", fmt.Errorf("現在セッションの更新に失敗しました: %w", err)
	}

	s.logger.Info("セッションを作成しました",
		slog.String("session_id", session.ID),
		slog.String("candidate_id", candidate.ID),
	)
	return session.ID, nil
}

// Start は面接を開始する（not-started → in-progress）。
// 候補者プロフィールが未完了の場合はバリデーションエラーを返し、
// セッションはnot-startedのまま残る。
// 6スロット分のタイマーを初期化するが、既存のタイマーは上書きしない（冪等）。
// 遷移後、スロット0の質問生成を要求してクロックを開始する。
func (s *Service) Start(ctx context.Context, sessionID string) error {
	rt := s.runtime(sessionID)
	rt.mu.Lock()

	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		rt.mu.Unlock()
		return err
	}
	if session == nil {
		rt.mu.Unlock()
		return model.NewSessionNotFoundError(sessionID)
	}
	if session.Status != model.StatusNotStarted {
		rt.mu.Unlock()
		return model.NewInvalidTransitionError(session.Status, "start")
	}

	candidate, err := s.candidates.FindByID(ctx, session.CandidateID)
	if err != nil {
		rt.mu.Unlock()
		return err
	}
	if candidate == nil {
		rt.mu.Unlock()
		return model.NewCandidateNotFoundError(session.CandidateID)
	}
	if !candidate.ProfileComplete() {
		rt.mu.Unlock()
		return model.NewProfileIncompleteError(candidate.MissingFields())
	}

	if session.Timers == nil {
		session.Timers = map[string]model.TimerState{}
	}
	now := time.Now()
	for i, slot := range s.plan.Slots {
		key := SlotKey(i)
		if _, ok := session.Timers[key]; !ok {
			session.Timers[key] = model.TimerState{
				RemainingSeconds: slot.Seconds,
				LastTickAt:       now,
			}
		}
	}
	session.Status = model.StatusInProgress
	session.UpdatedAt = now

	if err := s.sessions.Update(ctx, session); err != nil {
		rt.mu.Unlock()
		return fmt.Errorf("セッションの開始に失敗しました: %w", err)
	}
	rt.mu.Unlock()

	s.collector.RecordSessionStarted()
	s.logger.Info("面接を開始しました", slog.String("session_id", sessionID))

	// 質問0の生成。ゲートウェイ呼び出しはロック外で行い、pauseをブロックしない。
	s.ensureQuestion(ctx, sessionID)
	s.clock.Start(sessionID)
	return nil
}

// SubmitAnswer は現在の質問に対する回答を提出する。
// 提出ロックにより、タイマー満了による自動提出との競合はちょうど一方のみが
// 記録される。敗者の試行はエラーではなく静かに破棄される。
// 現在の質問が存在しない場合も防御的にno-opとする。
func (s *Service) SubmitAnswer(ctx context.Context, sessionID, text string, autoSubmitted bool) error {
	rt := s.runtime(sessionID)
	rt.mu.Lock()

	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		rt.mu.Unlock()
		return err
	}
	if session == nil {
		rt.mu.Unlock()
		return model.NewSessionNotFoundError(sessionID)
	}
	if session.Status != model.StatusInProgress {
		rt.mu.Unlock()
		return model.NewInvalidTransitionError(session.Status, "submit")
	}
	if session.CurrentQuestion() == nil {
		// 質問生成前の提出、または重複提出。no-op。
		rt.mu.Unlock()
		return nil
	}
	if rt.submitting {
		// 提出レースの敗者。
		rt.mu.Unlock()
		return nil
	}
	rt.submitting = true
	rt.mu.Unlock()

	return s.completeSubmission(ctx, sessionID, text, autoSubmitted)
}

// completeSubmission は提出の副作用連鎖を実行する:
// 回答記録 → 評価 → インデックス前進 → 次の質問生成 or 最終化。
// 呼び出し時点で提出ロックは取得済みであり、連鎖の完了後、
// 猶予時間を置いてからロックを解除する。
// 回答記録と評価マージの読み書きはランタイムミューテックス下で行い、
// 並行するpause/endのコミットを上書きしない。ゲートウェイ呼び出しのみ
// ロック外で実行する。
// 評価ゲートウェイの失敗は連鎖を止めない（フォールバック評価で続行）。
func (s *Service) completeSubmission(ctx context.Context, sessionID, text string, autoSubmitted bool) error {
	defer s.rearm(sessionID)

	rt := s.runtime(sessionID)

	rt.mu.Lock()
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		rt.mu.Unlock()
		return err
	}
	if session == nil {
		// 提出処理中に削除された。破棄。
		rt.mu.Unlock()
		return nil
	}

	question := session.CurrentQuestion()
	if question == nil {
		rt.mu.Unlock()
		return nil
	}

	slot := s.plan.Slots[question.Index]
	key := SlotKey(question.Index)
	remaining := 0
	if t, ok := session.Timers[key]; ok {
		remaining = t.RemainingSeconds
	}
	timeTaken := slot.Seconds - remaining
	if timeTaken < 0 {
		timeTaken = 0
	}

	answer := model.Answer{
		ID:               uuid.New().String(),
		QuestionID:       question.ID,
		CandidateID:      session.CandidateID,
		Text:             s.sanitizer.Sanitize(text),
		SubmittedAt:      time.Now(),
		TimeTakenSeconds: timeTaken,
		AutoSubmitted:    autoSubmitted,
	}
	session.Answers = append(session.Answers, answer)
	session.UpdatedAt = time.Now()

	// 回答は評価より先に確定させる。評価が失敗しても回答は失われない。
	if err := s.sessions.Update(ctx, session); err != nil {
		rt.mu.Unlock()
		if errors.Is(err, repository.ErrSessionDeleted) {
			return nil
		}
		return fmt.Errorf("回答の保存に失敗しました: %w", err)
	}
	rt.mu.Unlock()
	s.collector.RecordSubmission(autoSubmitted)

	candidate, err := s.candidates.FindByID(ctx, session.CandidateID)
	if err != nil {
		s.logger.Warn("評価用の候補者取得に失敗しました", slog.String("error", err.Error()))
	}

	// 評価ゲートウェイはエラーを返さない（失敗時は未採点フォールバック）。
	evaluation := s.evaluator.Evaluate(ctx, candidate, *question, answer.Text, answer.ID)

	// ゲートウェイ応答待ちの間にセッションが変化した可能性があるため
	// ロックを取り直して再読込し、冪等にマージする。削除済みなら破棄。
	rt.mu.Lock()
	session, err = s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		rt.mu.Unlock()
		return err
	}
	if session == nil {
		rt.mu.Unlock()
		return nil
	}

	if session.EvaluationFor(answer.ID) == nil {
		session.Evaluations = append(session.Evaluations, evaluation)
	}

	nextIndex := question.Index + 1
	if nextIndex > model.QuestionCount {
		nextIndex = model.QuestionCount
	}
	if nextIndex > session.CurrentQuestionIndex {
		session.CurrentQuestionIndex = nextIndex
	}

	completed := session.CurrentQuestionIndex >= model.QuestionCount
	if completed && session.Status != model.StatusCompleted {
		session.Status = model.StatusCompleted
	}
	session.UpdatedAt = time.Now()

	if err := s.sessions.Update(ctx, session); err != nil {
		rt.mu.Unlock()
		if errors.Is(err, repository.ErrSessionDeleted) {
			return nil
		}
		return fmt.Errorf("評価の保存に失敗しました: %w", err)
	}
	rt.mu.Unlock()

	if completed {
		s.clock.Stop(sessionID)
		s.collector.RecordSessionCompleted()
		s.logger.Info("面接が完了しました", slog.String("session_id", sessionID))

		// 最終化はソフト失敗。失敗してもセッションはcompletedのまま残り、
		// Finalizeで後から再実行できる。
		if err := s.storeFinalReport(ctx, sessionID); err != nil {
			s.logger.Warn("最終レポートの生成に失敗しました",
				slog.String("session_id", sessionID),
				slog.String("error", err.Error()),
			)
		}
		return nil
	}

	s.ensureQuestion(ctx, sessionID)
	return nil
}

// rearm は猶予時間の経過後に提出ロックを解除する。
// 即時解除すると、次の質問のタイマーが解除直後のロックに飛び込む
// レースが起きるため、短い遅延を保証する。
func (s *Service) rearm(sessionID string) {
	rt := s.runtime(sessionID)
	time.AfterFunc(s.rearmDelay, func() {
		rt.mu.Lock()
		rt.submitting = false
		rt.mu.Unlock()
	})
}

// ensureQuestion は現在のスロットの質問が未生成であれば生成して記録する。
// ゲートウェイはフォールバックを内蔵しているため、この操作が
// 面接を停滞させることはない。応答適用前にセッションを再読込し、
// すでに質問が存在する・削除済みの場合は結果を破棄する。
func (s *Service) ensureQuestion(ctx context.Context, sessionID string) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil || session == nil {
		return
	}
	index := session.CurrentQuestionIndex
	if index >= model.QuestionCount || len(session.QuestionSequence) > index {
		return
	}

	slot := s.plan.Slots[index]
	candidate, err := s.candidates.FindByID(ctx, session.CandidateID)
	if err != nil {
		s.logger.Warn("質問生成用の候補者取得に失敗しました", slog.String("error", err.Error()))
	}

	question := s.questions.Generate(ctx, candidate, slot.Difficulty, index, session.QuestionSequence)

	// 応答待ちの間の変化を確認してから記録する
	session, err = s.sessions.FindByID(ctx, sessionID)
	if err != nil || session == nil {
		return
	}
	if len(session.QuestionSequence) > index || session.CurrentQuestionIndex != index {
		return
	}

	session.QuestionSequence = append(session.QuestionSequence, question)
	session.UpdatedAt = time.Now()
	if err := s.sessions.Update(ctx, session); err != nil && !errors.Is(err, repository.ErrSessionDeleted) {
		s.logger.Error("質問の保存に失敗しました",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
	}
}

// tick は1ティック分の減算を行う。Clockから毎秒呼び出される。
// 現在の質問が存在する場合のみ減算し、残り0になった瞬間に
// 提出ロックを取得できたときだけ自動提出を発火する（ちょうど1回）。
func (s *Service) tick(sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opTimeout)
	defer cancel()

	rt := s.runtime(sessionID)
	rt.mu.Lock()

	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		rt.mu.Unlock()
		return
	}
	if session == nil || session.Status != model.StatusInProgress {
		rt.mu.Unlock()
		s.clock.Stop(sessionID)
		return
	}
	if session.CurrentQuestion() == nil {
		// 質問生成待ちの間はカウントダウンしない
		rt.mu.Unlock()
		return
	}

	key := SlotKey(session.CurrentQuestionIndex)
	timer, ok := session.Timers[key]
	if !ok {
		rt.mu.Unlock()
		return
	}

	fire := false
	if timer.RemainingSeconds > 0 {
		timer.RemainingSeconds--
		timer.LastTickAt = time.Now()
		session.Timers[key] = timer

		if err := s.sessions.UpdateTimers(ctx, sessionID, session.Timers); err != nil {
			s.logger.Warn("タイマー状態の保存に失敗しました",
				slog.String("session_id", sessionID),
				slog.String("error", err.Error()),
			)
		}
	}

	// 減算とゼロ判定と提出ロックの取得はロック内で不可分に行う。
	// 手動提出と同時に発生しても、提出経路はちょうど1つだけが勝つ。
	if timer.RemainingSeconds <= 0 && !rt.submitting {
		rt.submitting = true
		fire = true
	}
	rt.mu.Unlock()

	if fire {
		s.collector.RecordAutoSubmitWon()
		s.logger.Info("制限時間が満了したため自動提出します",
			slog.String("session_id", sessionID),
			slog.Int("question_index", session.CurrentQuestionIndex),
		)
		if err := s.completeSubmission(ctx, sessionID, "", true); err != nil {
			s.logger.Error("自動提出の処理に失敗しました",
				slog.String("session_id", sessionID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Pause は面接を一時停止する（in-progress → paused）。クロックを停止するが、
// 実行中のゲートウェイ呼び出しはキャンセルしない（遅延応答は冪等にマージされる）。
func (s *Service) Pause(ctx context.Context, sessionID string) error {
	rt := s.runtime(sessionID)
	rt.mu.Lock()
	defer rt.mu.Unlock()

	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if session == nil {
		return model.NewSessionNotFoundError(sessionID)
	}
	if session.Status != model.StatusInProgress {
		return model.NewInvalidTransitionError(session.Status, "pause")
	}

	session.Status = model.StatusPaused
	session.UpdatedAt = time.Now()
	if err := s.sessions.Update(ctx, session); err != nil {
		return fmt.Errorf("セッションの一時停止に失敗しました: %w", err)
	}

	s.clock.Stop(sessionID)
	s.logger.Info("面接を一時停止しました", slog.String("session_id", sessionID))
	return nil
}

// Resume は一時停止中の面接を再開する（paused → in-progress）。
// タイマーの残り時間はリセットされない。
func (s *Service) Resume(ctx context.Context, sessionID string) error {
	rt := s.runtime(sessionID)
	rt.mu.Lock()

	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		rt.mu.Unlock()
		return err
	}
	if session == nil {
		rt.mu.Unlock()
		return model.NewSessionNotFoundError(sessionID)
	}
	if session.Status != model.StatusPaused {
		rt.mu.Unlock()
		return model.NewInvalidTransitionError(session.Status, "resume")
	}

	session.Status = model.StatusInProgress
	session.UpdatedAt = time.Now()
	if err := s.sessions.Update(ctx, session); err != nil {
		rt.mu.Unlock()
		return fmt.Errorf("セッションの再開に失敗しました: %w", err)
	}
	rt.mu.Unlock()

	// 停止中に質問生成が中断していた場合の回復
	s.ensureQuestion(ctx, sessionID)
	s.clock.Start(sessionID)
	s.logger.Info("面接を再開しました", slog.String("session_id", sessionID))
	return nil
}

// End は面接を手動で終了する（in-progress/paused → completed）。
// インデックスに関係なく強制終了し、最終レポートは生成しない
// （必要であればFinalizeを明示的に呼び出す）。
func (s *Service) End(ctx context.Context, sessionID string) error {
	rt := s.runtime(sessionID)
	rt.mu.Lock()
	defer rt.mu.Unlock()

	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if session == nil {
		return model.NewSessionNotFoundError(sessionID)
	}
	if session.Status != model.StatusInProgress && session.Status != model.StatusPaused {
		return model.NewInvalidTransitionError(session.Status, "end")
	}

	session.Status = model.StatusCompleted
	session.UpdatedAt = time.Now()
	if err := s.sessions.Update(ctx, session); err != nil {
		return fmt.Errorf("セッションの終了に失敗しました: %w", err)
	}

	s.clock.Stop(sessionID)
	s.collector.RecordSessionCompleted()
	s.logger.Info("面接を手動終了しました", slog.String("session_id", sessionID))
	return nil
}

// ReEvaluate は既存の全回答に対して評価を再生成し、評価リスト全体を
// 不可分に置き換える。古い評価と新しい評価が混在した状態が
// 読み取られることはなく、回答数Nに対して評価はちょうどN件になる。
func (s *Service) ReEvaluate(ctx context.Context, sessionID string) error {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if session == nil {
		return model.NewSessionNotFoundError(sessionID)
	}

	candidate, err := s.candidates.FindByID(ctx, session.CandidateID)
	if err != nil {
		s.logger.Warn("再評価用の候補者取得に失敗しました", slog.String("error", err.Error()))
	}

	// ゲートウェイ呼び出しはロック外で行い、完成したリストのみを適用する
	newEvaluations := make([]model.Evaluation, 0, len(session.Answers))
	for _, answer := range session.Answers {
		question := session.QuestionByID(answer.QuestionID)
		if question == nil {
			// 回答は必ず質問を参照している。参照切れは破損データなのでスキップ。
			s.logger.Error("回答が存在しない質問を参照しています",
				slog.String("session_id", sessionID),
				slog.String("answer_id", answer.ID),
			)
			continue
		}
		newEvaluations = append(newEvaluations, s.evaluator.Evaluate(ctx, candidate, *question, answer.Text, answer.ID))
	}

	rt := s.runtime(sessionID)
	rt.mu.Lock()
	defer rt.mu.Unlock()

	session, err = s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if session == nil {
		return model.NewSessionNotFoundError(sessionID)
	}

	session.Evaluations = newEvaluations
	session.UpdatedAt = time.Now()
	if err := s.sessions.Update(ctx, session); err != nil {
		if errors.Is(err, repository.ErrSessionDeleted) {
			return model.NewSessionNotFoundError(sessionID)
		}
		return fmt.Errorf("再評価の保存に失敗しました: %w", err)
	}

	s.logger.Info("セッションを再評価しました",
		slog.String("session_id", sessionID),
		slog.Int("evaluation_count", len(newEvaluations)),
	)
	return nil
}

// Finalize は完了済みセッションの最終レポートを生成して保存する。
// 冪等であり、再実行のたびに保存済みレポートを完全に置き換える（マージしない）。
func (s *Service) Finalize(ctx context.Context, sessionID string) (*model.FinalReport, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, model.NewSessionNotFoundError(sessionID)
	}
	if session.Status != model.StatusCompleted {
		return nil, model.NewSessionNotCompleteError()
	}

	if err := s.storeFinalReport(ctx, sessionID); err != nil {
		return nil, err
	}

	session, err = s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, model.NewSessionNotFoundError(sessionID)
	}
	return session.FinalReport, nil
}

// storeFinalReport はレポートを生成し、再読込したセッションに保存する。
func (s *Service) storeFinalReport(ctx context.Context, sessionID string) error {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if session == nil {
		return nil
	}

	report, err := s.finalizer.Finalize(ctx, session)
	if err != nil {
		return err
	}

	session, err = s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if session == nil {
		return nil
	}

	session.FinalReport = report
	session.UpdatedAt = time.Now()
	if err := s.sessions.Update(ctx, session); err != nil {
		if errors.Is(err, repository.ErrSessionDeleted) {
			return nil
		}
		return fmt.Errorf("最終レポートの保存に失敗しました: %w", err)
	}
	return nil
}

// DeleteSession はセッションを削除する。クロックを停止し、
// 現在セッションポインタが削除対象を指していた場合はクリアする。
// 候補者がほかのセッションから参照されていなければ、候補者も併せて削除する。
func (s *Service) DeleteSession(ctx context.Context, sessionID string) error {
	rt := s.runtime(sessionID)
	rt.mu.Lock()
	defer rt.mu.Unlock()

	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if session == nil {
		return model.NewSessionNotFoundError(sessionID)
	}

	s.clock.Stop(sessionID)

	if err := s.sessions.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("セッションの削除に失敗しました: %w", err)
	}
	if err := s.state.ClearCurrentSessionID(ctx, sessionID); err != nil {
		return fmt.Errorf("現在セッションのクリアに失敗しました: %w", err)
	}

	// 孤児になった候補者のカスケード削除
	count, err := s.sessions.CountByCandidateID(ctx, session.CandidateID)
	if err != nil {
		return fmt.Errorf("候補者の参照確認に失敗しました: %w", err)
	}
	if count == 0 {
		if err := s.candidates.DeleteByID(ctx, session.CandidateID); err != nil {
			return fmt.Errorf("候補者の削除に失敗しました: %w", err)
		}
	}

	s.mu.Lock()
	delete(s.runtimes, sessionID)
	s.mu.Unlock()

	s.logger.Info("セッションを削除しました", slog.String("session_id", sessionID))
	return nil
}

// GetSession は指定IDのセッションを返す。
func (s *Service) GetSession(ctx context.Context, sessionID string) (*model.Session, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, model.NewSessionNotFoundError(sessionID)
	}
	return session, nil
}

// ListSessions は全セッションを作成日時の降順で返す。ダッシュボード用。
func (s *Service) ListSessions(ctx context.Context) ([]*model.Session, error) {
	return s.sessions.ListAll(ctx)
}

// GetCurrentQuestion は現在のスロットの質問を返す。
// 質問が未生成の場合はnilを返す（エラーではない）。
func (s *Service) GetCurrentQuestion(ctx context.Context, sessionID string) (*model.Question, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, model.NewSessionNotFoundError(sessionID)
	}
	return session.CurrentQuestion(), nil
}

// CurrentSessionID は現在セッションポインタを返す。未設定の場合は空文字列。
func (s *Service) CurrentSessionID(ctx context.Context) (string, error) {
	return s.state.CurrentSessionID(ctx)
}

// TimerSnapshot はWebSocket配信用のタイマー状態。
type TimerSnapshot struct {
	Status           model.SessionStatus `json:"status"`
	QuestionIndex    int                 `json:"question_index"`
	QuestionID       string              `json:"question_id,omitempty"`
	RemainingSeconds int                 `json:"remaining_seconds"`
}

// Snapshot は現在のスロットのタイマー状態を返す。
func (s *Service) Snapshot(ctx context.Context, sessionID string) (*TimerSnapshot, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, model.NewSessionNotFoundError(sessionID)
	}

	snap := &TimerSnapshot{
		Status:        session.Status,
		QuestionIndex: session.CurrentQuestionIndex,
	}
	if q := session.CurrentQuestion(); q != nil {
		snap.QuestionID = q.ID
	}
	if session.CurrentQuestionIndex < model.QuestionCount {
		if t, ok := session.Timers[SlotKey(session.CurrentQuestionIndex)]; ok {
			snap.RemainingSeconds = t.RemainingSeconds
		}
	}
	return snap, nil
}

// ResumeClocks は起動時の復旧処理。永続化済みのin-progressセッションの
// クロックを再開する。残り時間は最後にコミットされた値から引き継ぐ。
func (s *Service) ResumeClocks(ctx context.Context) error {
	sessions, err := s.sessions.ListByStatus(ctx, model.StatusInProgress)
	if err != nil {
		return fmt.Errorf("進行中セッションの取得に失敗しました: %w", err)
	}

	for _, session := range sessions {
		s.clock.Start(session.ID)
	}

	if len(sessions) > 0 {
		s.logger.Info("進行中セッションのクロックを再開しました",
			slog.Int("session_count", len(sessions)),
		)
	}
	return nil
}

// Shutdown は全クロックを停止する。プロセス終了時に使用する。
func (s *Service) Shutdown() {
	s.clock.StopAll()
}
