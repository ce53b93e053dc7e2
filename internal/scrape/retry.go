package scrape

import (
	"context"
	"fmt"
	"time"
)

// RetryPolicy は固定回数・固定間隔のリトライ方針。
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultRetryPolicy は2回試行・2秒間隔のリトライ方針。
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 2, Delay: 2 * time.Second}

// RetryFunc は試行ごとに呼ばれる処理。attemptは1始まり。
type RetryFunc func(ctx context.Context, attempt int) error

// OnRetryFunc は次の試行を待つ前に呼ばれる。
type OnRetryFunc func(attempt int, err error, delay time.Duration)

// Do はopが成功するかMaxAttemptsに達するまで実行する。
// すべて失敗した場合は最後のエラーをラップして返す。
// コンテキストが終了した場合は待機を打ち切り、コンテキストのエラーを返す。
func (p RetryPolicy) Do(ctx context.Context, op RetryFunc, onRetry OnRetryFunc) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = op(ctx, attempt)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return fmt.Errorf("attempt %d/%d: %w", attempt, attempts, ctx.Err())
		}
		if attempt == attempts {
			break
		}

		if onRetry != nil {
			onRetry(attempt, lastErr, p.Delay)
		}

		timer := time.NewTimer(p.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("attempt %d/%d: %w", attempt, attempts, ctx.Err())
		case <-timer.C:
		}
	}

	return fmt.Errorf("attempt %d/%d: %w", attempts, attempts, lastErr)
}
