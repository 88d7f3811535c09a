package interview

import (
	"log/slog"
	"sync"
	"time"
)

// Clock はセッションごとのカウントダウンを駆動する。
// 実行中のセッション1つにつき1本のティッカーゴルーチンを持ち、
// 一定間隔でティックコールバックを呼び出す。
// 残り時間の減算・ゼロ判定・自動提出の発火はコールバック側（Service.tick）の責務。
type Clock struct {
	interval time.Duration
	tick     func(sessionID string)
	logger   *slog.Logger

	mu      sync.Mutex
	running map[string]chan struct{}
}

// NewClock はClockの新しいインスタンスを生成する。
// intervalが0以下の場合はデフォルト値1秒を使用する。
func NewClock(interval time.Duration, tick func(sessionID string), logger *slog.Logger) *Clock {
	if interval <= 0 {
		interval = time.Second
	}
	return &Clock{
		interval: interval,
		tick:     tick,
		logger:   logger,
		running:  make(map[string]chan struct{}),
	}
}

// Start は指定セッションのティックを開始する。
// すでに実行中の場合は何もしない（pause/resumeで経過時間がリセットされない）。
func (c *Clock) Start(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.running[sessionID]; ok {
		return
	}

	stopCh := make(chan struct{})
	c.running[sessionID] = stopCh

	go c.run(sessionID, stopCh)
}

// run は1セッション分のティックループ。
// あるセッションのティック処理（ゲートウェイ呼び出しを含む自動提出連鎖）が
// 遅くても、他のセッションのループは独立しているため影響を受けない。
func (c *Clock) run(sessionID string, stopCh chan struct{}) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.logger.Debug("クロックを開始しました", slog.String("session_id", sessionID))

	for {
		select {
		case <-stopCh:
			c.logger.Debug("クロックを停止しました", slog.String("session_id", sessionID))
			return
		case <-ticker.C:
			c.tick(sessionID)
		}
	}
}

// Stop は指定セッションのティックを停止する。提出は行わない
// （pause・手動提出後・セッション完了時に使用する）。
func (c *Clock) Stop(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if stopCh, ok := c.running[sessionID]; ok {
		close(stopCh)
		delete(c.running, sessionID)
	}
}

// StopAll は全セッションのティックを停止する。シャットダウン時に使用する。
func (c *Clock) StopAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, stopCh := range c.running {
		close(stopCh)
		delete(c.running, id)
	}
}

// Running は指定セッションのティックが実行中かを返す。
func (c *Clock) Running(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.running[sessionID]
	return ok
}
