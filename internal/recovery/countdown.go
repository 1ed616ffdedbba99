package recovery

import (
	"context"
	"sync"
	"time"
)

// Countdown は1秒刻みのカウントダウンタイマー。
// クールダウン判定では永続化された最終送信時刻からの再計算と
// 併用され、プロセス生存中の残り秒数の下限を与える。
type Countdown struct {
	mu        sync.Mutex
	remaining int64
	running   bool
}

// NewCountdown はCountdownを生成する。
func NewCountdown() *Countdown {
	return &Countdown{}
}

// Reset は残り秒数を設定する。実行中のループがあればその値から継続する。
func (c *Countdown) Reset(seconds int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remaining = seconds
}

// Remaining は現在の残り秒数を返す。
func (c *Countdown) Remaining() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Tick はカウントを1秒進め、進めた後の残り秒数を返す。
// 残りが0のときは何もしない（負の値にはならない）。
func (c *Countdown) Tick() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.remaining > 0 {
		c.remaining--
	}
	return c.remaining
}

// Start はカウントダウンループを開始する。
// すでにループが実行中の場合は二重起動せず、即座にfalseを返す。
// ループは残りが0になるかctxがキャンセルされるまで、interval間隔でTickを呼ぶ。
// ループを開始した場合はループ終了後にtrueを返す。
func (c *Countdown) Start(ctx context.Context, interval time.Duration) bool {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return false
	}
	c.running = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return true
		case <-ticker.C:
			if c.Tick() == 0 {
				return true
			}
		}
	}
}
