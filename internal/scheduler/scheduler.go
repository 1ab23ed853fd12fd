package scheduler

import (
	"context"
	"time"

	"github.com/Luigik28/rizzo-trading-agent/internal/logger"
)

// Task 为一次调度执行；返回的错误只记录日志，不会中断循环。
type Task func(ctx context.Context) error

// Scheduler 以固定间隔循环执行任务。
// Align=true 时首轮对齐到 Interval 的整点边界（再加 Offset），否则从启动时刻起算。
type Scheduler struct {
	Name           string
	Interval       time.Duration
	Offset         time.Duration
	Align          bool
	RunImmediately bool

	nowFn func() time.Time
}

func New(name string, interval, offset time.Duration) *Scheduler {
	return &Scheduler{
		Name:     name,
		Interval: interval,
		Offset:   offset,
		nowFn:    time.Now,
	}
}

// RunOnce 执行单轮任务，供非连续模式使用。
func (s *Scheduler) RunOnce(ctx context.Context, task Task) error {
	if task == nil {
		return nil
	}
	return task(ctx)
}

// Start 阻塞直到 ctx 结束。
func (s *Scheduler) Start(ctx context.Context, task Task) {
	if s == nil {
		return
	}
	prefix := s.prefix()
	if task == nil {
		logger.Warnf("%s: task is nil, exit", prefix)
		return
	}
	if s.Interval <= 0 {
		logger.Warnf("%s: invalid interval=%s, exit", prefix, s.Interval)
		return
	}
	if s.Offset < 0 {
		logger.Warnf("%s: negative offset=%s, clamp to 0", prefix, s.Offset)
		s.Offset = 0
	}
	if s.nowFn == nil {
		s.nowFn = time.Now
	}

	startAt := s.nowFn().UTC()
	logger.Infof("%s: started interval=%s offset=%s align=%v run_immediately=%v at=%s",
		prefix, s.Interval, s.Offset, s.Align, s.RunImmediately, startAt.Format(time.RFC3339))

	if s.RunImmediately {
		logger.Infof("%s: RunImmediately=true, execute once before loop", prefix)
		s.run(ctx, task)
	}

	anchor := s.firstAt(startAt)
	nextAt := anchor
	for {
		now := s.nowFn().UTC()
		if !nextAt.After(now) {
			nextAt = nextFixedTimeAfter(anchor, s.Interval, now)
		}
		wait := nextAt.Sub(now)
		logger.Infof("%s: 下次执行=%s (in %s) | uptime=%s",
			prefix,
			nextAt.Format(time.RFC3339),
			wait.Truncate(time.Second),
			now.Sub(startAt).Truncate(time.Second),
		)
		if !waitUntil(ctx, wait) {
			logger.Infof("%s: ctx done, exit", prefix)
			return
		}
		s.run(ctx, task)
		nextAt = nextFixedTimeAfter(anchor, s.Interval, s.nowFn().UTC())
	}
}

func (s *Scheduler) run(ctx context.Context, task Task) {
	if ctx.Err() != nil {
		return
	}
	started := s.nowFn()
	if err := task(ctx); err != nil {
		logger.Errorf("%s: task failed after %s: %v", s.prefix(), s.nowFn().Sub(started).Truncate(time.Millisecond), err)
	}
}

func (s *Scheduler) prefix() string {
	if s.Name == "" {
		return "Scheduler"
	}
	return "Scheduler[" + s.Name + "]"
}

// firstAt 计算首轮执行时刻。
func (s *Scheduler) firstAt(now time.Time) time.Time {
	now = now.UTC()
	if !s.Align {
		return now.Add(s.Interval)
	}
	return now.Truncate(s.Interval).Add(s.Interval).Add(s.Offset)
}

func waitUntil(ctx context.Context, wait time.Duration) bool {
	if wait <= 0 {
		select {
		case <-ctx.Done():
			return false
		default:
			return true
		}
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// nextFixedTimeAfter 返回 anchor + k*interval 中第一个严格晚于 now 的时刻。
func nextFixedTimeAfter(anchor time.Time, interval time.Duration, now time.Time) time.Time {
	anchor = anchor.UTC()
	now = now.UTC()
	if interval <= 0 {
		return now
	}
	delta := now.Sub(anchor)
	if delta < 0 {
		return anchor
	}
	k := delta / interval
	return anchor.Add((k + 1) * interval)
}
