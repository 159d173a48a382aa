package infra

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focusguard/internal/domain"
)

// AlarmHandler is called on its own goroutine when an alarm fires.
type AlarmHandler func(ctx context.Context, key domain.AlarmKey)

// PendingAlarm describes an alarm that has not fired yet.
type PendingAlarm struct {
	Key domain.AlarmKey
	Due time.Time
}

type timerEntry struct {
	timer *time.Timer
	due   time.Time
	seq   uint64
}

// TimerScheduler implements domain.Scheduler with in-process timers.
// At most one timer is pending per AlarmKey.
type TimerScheduler struct {
	mu      sync.Mutex
	timers  map[domain.AlarmKey]*timerEntry
	seq     uint64
	handler AlarmHandler
	baseCtx context.Context
	now     func() time.Time
	logger  *zap.Logger
}

// NewTimerScheduler creates a scheduler whose alarms call handler with baseCtx.
// Handler may be set later with SetHandler, before the first alarm fires.
func NewTimerScheduler(baseCtx context.Context, handler AlarmHandler, logger *zap.Logger) *TimerScheduler {
	return &TimerScheduler{
		timers:  make(map[domain.AlarmKey]*timerEntry),
		handler: handler,
		baseCtx: baseCtx,
		now:     time.Now,
		logger:  logger,
	}
}

// SetHandler replaces the fire handler. The engine and scheduler reference
// each other, so one side is wired after construction.
func (s *TimerScheduler) SetHandler(handler AlarmHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = handler
}

// Create schedules key, replacing any pending alarm with the same key.
func (s *TimerScheduler) Create(ctx context.Context, key domain.AlarmKey, delay time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked(key)

	s.seq++
	entry := &timerEntry{due: s.now().Add(delay), seq: s.seq}
	seq := s.seq
	entry.timer = time.AfterFunc(delay, func() { s.fire(key, seq) })
	s.timers[key] = entry
	return nil
}

// Clear cancels the pending alarm for key, if any.
func (s *TimerScheduler) Clear(ctx context.Context, key domain.AlarmKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked(key)
	return nil
}

func (s *TimerScheduler) stopLocked(key domain.AlarmKey) {
	if e, ok := s.timers[key]; ok {
		e.timer.Stop()
		delete(s.timers, key)
	}
}

// fire runs the handler unless the alarm was replaced or cleared after
// its timer had already started.
func (s *TimerScheduler) fire(key domain.AlarmKey, seq uint64) {
	s.mu.Lock()
	e, ok := s.timers[key]
	if !ok || e.seq != seq {
		s.mu.Unlock()
		return
	}
	delete(s.timers, key)
	handler := s.handler
	s.mu.Unlock()

	if handler == nil {
		s.logger.Warn("alarm fired with no handler", zap.Stringer("alarm", key))
		return
	}
	if s.baseCtx.Err() != nil {
		return
	}
	s.logger.Debug("alarm fired", zap.Stringer("alarm", key))
	handler(s.baseCtx, key)
}

// Pending returns pending alarms ordered by due time.
func (s *TimerScheduler) Pending() []PendingAlarm {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]PendingAlarm, 0, len(s.timers))
	for k, e := range s.timers {
		out = append(out, PendingAlarm{Key: k, Due: e.due})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Due.Equal(out[j].Due) {
			return out[i].Key.String() < out[j].Key.String()
		}
		return out[i].Due.Before(out[j].Due)
	})
	return out
}

// Stop cancels every pending alarm.
func (s *TimerScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.timers {
		s.stopLocked(k)
	}
}

// Ensure TimerScheduler implements domain.Scheduler.
var _ domain.Scheduler = (*TimerScheduler)(nil)
