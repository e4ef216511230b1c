package telegram

import (
	"context"
	"sync"
	"time"
)

// SendLimiter is a token-bucket throttle for outbound bot API calls.
// Telegram rejects bots that send faster than roughly thirty messages
// per second, so every send goes through Wait first.
type SendLimiter struct {
	mu     sync.Mutex
	rate   time.Duration
	burst  int
	now    func() time.Time
	sleep  func(context.Context, time.Duration) error
	onWait func(time.Duration)

	tokens int
	last   time.Time
}

// NewSendLimiter constructs a limiter that refills one token every rate.
// onWait is invoked with the time spent blocked; it may be nil.
func NewSendLimiter(rate time.Duration, burst int, onWait func(time.Duration)) *SendLimiter {
	limiter := &SendLimiter{
		rate:   rate,
		burst:  burst,
		now:    time.Now,
		sleep:  sleepWithContext,
		onWait: onWait,
	}
	limiter.tokens = burst
	limiter.last = limiter.now()
	return limiter
}

// Wait blocks until a token is available or the context ends.
func (l *SendLimiter) Wait(ctx context.Context) error {
	if l == nil || l.rate <= 0 || l.burst <= 0 {
		if ctx == nil {
			return nil
		}
		return ctx.Err()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var waited time.Duration
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		l.mu.Lock()
		now := l.now()
		l.refill(now)
		if l.tokens > 0 {
			l.tokens--
			l.mu.Unlock()
			if waited > 0 && l.onWait != nil {
				l.onWait(waited)
			}
			return nil
		}
		wait := l.rate - now.Sub(l.last)
		l.mu.Unlock()
		if wait <= 0 {
			continue
		}
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
		waited += wait
	}
}

func (l *SendLimiter) refill(now time.Time) {
	if l.rate <= 0 {
		l.tokens = l.burst
		l.last = now
		return
	}
	elapsed := now.Sub(l.last)
	if elapsed < l.rate {
		return
	}
	add := int(elapsed / l.rate)
	if add <= 0 {
		return
	}
	l.tokens += add
	if l.tokens > l.burst {
		l.tokens = l.burst
	}
	l.last = l.last.Add(time.Duration(add) * l.rate)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
