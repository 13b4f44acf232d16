package ratelimiting

import (
	"context"
	"slices"
	"sync"
	"time"
)

// RequestLimiter runs operations against an upstream that allows a fixed
// number of requests per sliding window
type RequestLimiter interface {
	// Limit waits for a free slot and runs operation. Returns false without
	// running operation if ctx would expire before it could finish.
	Limit(ctx context.Context, maxOperationTime time.Duration, operation func()) bool
}

type windowLimitRequestLimiter struct {
	window    time.Duration
	nowFunc   func() time.Time
	afterFunc func(time.Duration) <-chan time.Time

	slots chan struct{}

	// Completion times of the last `limit` requests, oldest first
	history []time.Time
	mutex   sync.Mutex
}

func NewWindowLimitRequestLimiter(
	limit int,
	window time.Duration,
	nowFunc func() time.Time,
	afterFunc func(time.Duration) <-chan time.Time,
) *windowLimitRequestLimiter {
	slots := make(chan struct{}, limit)
	history := make([]time.Time, limit)
	outsideWindow := nowFunc().Add(-window)
	for i := range limit {
		slots <- struct{}{}
		history[i] = outsideWindow
	}

	return &windowLimitRequestLimiter{
		window:    window,
		nowFunc:   nowFunc,
		afterFunc: afterFunc,
		slots:     slots,
		history:   history,
	}
}

func insertSorted(times []time.Time, t time.Time) []time.Time {
	i, _ := slices.BinarySearchFunc(times, t, func(a, b time.Time) int {
		return a.Compare(b)
	})
	return slices.Insert(times, i, t)
}

func (l *windowLimitRequestLimiter) Limit(ctx context.Context, maxOperationTime time.Duration, operation func()) bool {
	select {
	case <-l.slots:
		defer func() {
			l.slots <- struct{}{}
		}()
	case <-ctx.Done():
		return false
	}

	oldest, ok := l.takeOldest(ctx, maxOperationTime)
	if !ok {
		return false
	}

	// Put back the request we took, or the one we made
	finished := oldest
	defer func() {
		l.mutex.Lock()
		defer l.mutex.Unlock()
		l.history = insertSorted(l.history, finished)
	}()

	if wait := l.waitFor(oldest); wait > 0 {
		select {
		case <-ctx.Done():
			return false
		case <-l.afterFunc(wait):
		}
	}

	operation()
	finished = l.nowFunc()
	return true
}

func (l *windowLimitRequestLimiter) waitFor(request time.Time) time.Duration {
	return l.window - l.nowFunc().Sub(request)
}

func (l *windowLimitRequestLimiter) takeOldest(ctx context.Context, maxOperationTime time.Duration) (time.Time, bool) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	oldest := l.history[0]

	if deadline, ok := ctx.Deadline(); ok {
		untilDeadline := deadline.Sub(l.nowFunc())
		if l.waitFor(oldest)+maxOperationTime > untilDeadline {
			return time.Time{}, false
		}
	}

	l.history = l.history[1:]
	return oldest, true
}

var _ RequestLimiter = (*windowLimitRequestLimiter)(nil)
