package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focusguard/internal/domain"
	"github.com/eliteGoblin/focusd/focusguard/internal/matcher"
)

// Decision reasons.
const (
	ReasonSessionBlocked = "session blocked"
	ReasonAllowList      = "allow list"
	ReasonBlockGroup     = "block group"
	ReasonNoRule         = "no rule matched"
	ReasonUnrelated      = "unrelated to focus topic"
	ReasonRelated        = "related to focus topic"
	ReasonNotComplete    = "tab not complete or inactive"
	ReasonSubframe       = "subframe navigation"
	ReasonNotManual      = "not in manual mode"
	ReasonTabGone        = "tab no longer exists"
	ReasonNavigatedAway  = "tab navigated away"
	ReasonSettings       = "settings unavailable"
	ReasonWarned         = "warned, hard block scheduled"
	ReasonHardBlock      = "hard block reached"
	ReasonUnknownAlarm   = "unknown alarm type"
)

// EngineConfig holds decision engine configuration.
type EngineConfig struct {
	BlockedPageURL     string                     // Where blocked tabs are sent
	WarnNotification   domain.Notification        // Shown when the warn alarm fires
	ParseFailurePolicy matcher.ParseFailurePolicy // How unparseable URLs are treated
}

// DefaultEngineConfig returns default engine configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		BlockedPageURL: "chrome-extension://mindgard/extension/blocked.html",
		WarnNotification: domain.Notification{
			Title:   "Stay on task",
			Message: "This page seems off-topic. You will be blocked in 5 minutes if you stay.",
			IconURL: "icon.png",
		},
		ParseFailurePolicy: matcher.DefaultParseFailurePolicy,
	}
}

// Engine decides, per navigation event, whether a tab is redirected to the
// blocked page, and drives the AI-mode warn -> hard-block escalation.
//
// Every handler catches its own failures: host actions are best-effort and
// logged, storage failures abort the handler without side effects.
type Engine struct {
	config         EngineConfig
	settings       *SettingsService
	sessionBlocked domain.SessionBlockList
	scheduler      domain.Scheduler
	tabs           domain.TabController
	notifier       domain.Notifier
	judge          domain.RelevanceJudge
	matcher        matcher.Matcher
	logger         *zap.Logger
}

// NewEngine creates a decision engine.
func NewEngine(
	config EngineConfig,
	settings *SettingsService,
	sessionBlocked domain.SessionBlockList,
	scheduler domain.Scheduler,
	tabs domain.TabController,
	notifier domain.Notifier,
	judge domain.RelevanceJudge,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		config:         config,
		settings:       settings,
		sessionBlocked: sessionBlocked,
		scheduler:      scheduler,
		tabs:           tabs,
		notifier:       notifier,
		judge:          judge,
		matcher:        matcher.New(config.ParseFailurePolicy),
		logger:         logger,
	}
}

func decide(action domain.Action, reason string) domain.Decision {
	return domain.Decision{Action: action, Reason: reason}
}

// OnTabUpdated handles a tab that finished loading.
func (e *Engine) OnTabUpdated(ctx context.Context, ev domain.TabUpdatedEvent) domain.Decision {
	if ev.Status != domain.TabStatusComplete || !ev.Tab.Active {
		return decide(domain.ActionNone, ReasonNotComplete)
	}
	url := ev.Tab.URL

	if e.isSessionBlocked(ctx, url) {
		e.redirect(ctx, ev.TabID, url)
		return decide(domain.ActionRedirect, ReasonSessionBlocked)
	}

	settings, err := e.settings.Load(ctx)
	if err != nil {
		e.logger.Warn("tab update ignored", zap.Int("tab", ev.TabID), zap.Error(err))
		return decide(domain.ActionNone, ReasonSettings)
	}

	e.logger.Debug("tab updated",
		zap.Int("tab", ev.TabID),
		zap.String("url", url),
		zap.String("mode", string(settings.FocusMode)))

	if settings.FocusMode == domain.ModeManual {
		return e.enforceManual(ctx, ev.TabID, url, settings)
	}
	return e.assess(ctx, ev.TabID, ev.Tab, settings)
}

// OnNavigationCommitted handles a committed navigation. Manual mode, top frame only.
func (e *Engine) OnNavigationCommitted(ctx context.Context, ev domain.NavigationCommittedEvent) domain.Decision {
	if ev.FrameID != 0 {
		return decide(domain.ActionNone, ReasonSubframe)
	}
	return e.enforceManualOnly(ctx, ev.TabID, ev.URL)
}

// OnTabActivated handles the user switching tabs. Manual mode only.
func (e *Engine) OnTabActivated(ctx context.Context, ev domain.TabActivatedEvent) domain.Decision {
	tab, err := e.tabs.Get(ctx, ev.TabID)
	if err != nil || tab == nil {
		e.logger.Debug("activated tab unavailable", zap.Int("tab", ev.TabID), zap.Error(err))
		return decide(domain.ActionNone, ReasonTabGone)
	}
	return e.enforceManualOnly(ctx, ev.TabID, tab.URL)
}

func (e *Engine) enforceManualOnly(ctx context.Context, tabID int, url string) domain.Decision {
	if e.isSessionBlocked(ctx, url) {
		e.redirect(ctx, tabID, url)
		return decide(domain.ActionRedirect, ReasonSessionBlocked)
	}
	settings, err := e.settings.Load(ctx)
	if err != nil {
		e.logger.Warn("navigation ignored", zap.Int("tab", tabID), zap.Error(err))
		return decide(domain.ActionNone, ReasonSettings)
	}
	if settings.FocusMode != domain.ModeManual {
		return decide(domain.ActionNone, ReasonNotManual)
	}
	return e.enforceManual(ctx, tabID, url, settings)
}

// enforceManual applies allow list, then merged block groups.
func (e *Engine) enforceManual(ctx context.Context, tabID int, url string, settings domain.Settings) domain.Decision {
	d := e.evaluateManual(url, settings)
	if d.Action == domain.ActionRedirect {
		e.redirect(ctx, tabID, url)
	}
	return d
}

func (e *Engine) evaluateManual(url string, settings domain.Settings) domain.Decision {
	if m, ok := e.matcher.MatchAllowed(url, settings.AllowedDomains); ok {
		e.logger.Debug("allow list matched",
			zap.String("url", url),
			zap.String("entry", m.Entry),
			zap.String("kind", string(m.Kind)))
		return decide(domain.ActionAllow, ReasonAllowList)
	}
	blocked := matcher.MergeBlockedDomains(settings.BlockedGroups)
	if e.matcher.IsBlockedByDomain(url, blocked) {
		return decide(domain.ActionRedirect, ReasonBlockGroup)
	}
	return decide(domain.ActionNone, ReasonNoRule)
}

// assess runs the AI-mode verdict and starts or cancels escalation.
func (e *Engine) assess(ctx context.Context, tabID int, tab domain.Tab, settings domain.Settings) domain.Decision {
	verdict := e.judge.Judge(ctx, settings.CurrentFocusTopic, tab)
	if verdict == domain.VerdictUnrelated {
		key := domain.AlarmKey{Type: domain.AlarmWarn, TabID: tabID, URL: tab.URL}
		e.schedule(ctx, key, minutes(settings.WarnMinutes))
		return decide(domain.ActionWarnScheduled, ReasonUnrelated)
	}

	for _, t := range []domain.AlarmType{domain.AlarmWarn, domain.AlarmHard} {
		e.clear(ctx, domain.AlarmKey{Type: t, TabID: tabID, URL: tab.URL})
	}
	return decide(domain.ActionTimersCleared, ReasonRelated)
}

// OnAlarm handles an escalation alarm. The tab must still be on the alarm's URL.
func (e *Engine) OnAlarm(ctx context.Context, key domain.AlarmKey) domain.Decision {
	tab, err := e.tabs.Get(ctx, key.TabID)
	if err != nil || tab == nil {
		e.logger.Debug("alarm for closed tab", zap.Stringer("alarm", key), zap.Error(err))
		return decide(domain.ActionStale, ReasonTabGone)
	}
	if tab.URL != key.URL {
		e.logger.Debug("alarm for navigated tab",
			zap.Stringer("alarm", key),
			zap.String("current", tab.URL))
		return decide(domain.ActionStale, ReasonNavigatedAway)
	}

	switch key.Type {
	case domain.AlarmWarn:
		n := e.config.WarnNotification
		n.ID = uuid.New().String()
		if err := e.notifier.Notify(ctx, n); err != nil {
			e.logger.Warn("failed to show warning", zap.Int("tab", key.TabID), zap.Error(err))
		}

		settings, err := e.settings.Load(ctx)
		hardMinutes := DefaultHardBlockMinutes
		if err != nil {
			e.logger.Warn("using default hard block delay", zap.Error(err))
		} else {
			hardMinutes = settings.HardBlockMinutes
		}
		hard := domain.AlarmKey{Type: domain.AlarmHard, TabID: key.TabID, URL: key.URL}
		e.schedule(ctx, hard, minutes(hardMinutes))
		return decide(domain.ActionHardScheduled, ReasonWarned)

	case domain.AlarmHard:
		if err := e.sessionBlocked.Add(ctx, key.URL); err != nil {
			e.logger.Warn("failed to record session block", zap.String("url", key.URL), zap.Error(err))
		}
		e.logger.Info("url blocked for session",
			zap.Int("tab", key.TabID),
			zap.String("url", key.URL))
		e.redirect(ctx, key.TabID, key.URL)
		return decide(domain.ActionSessionBlock, ReasonHardBlock)

	default:
		return decide(domain.ActionNone, ReasonUnknownAlarm)
	}
}

// Evaluate reports what manual-mode rules would do for url, without side effects.
func (e *Engine) Evaluate(ctx context.Context, url string) (domain.Decision, error) {
	blocked, err := e.sessionBlocked.Has(ctx, url)
	if err != nil {
		return domain.Decision{}, err
	}
	if blocked {
		return decide(domain.ActionRedirect, ReasonSessionBlocked), nil
	}
	settings, err := e.settings.Load(ctx)
	if err != nil {
		return domain.Decision{}, err
	}
	return e.evaluateManual(url, settings), nil
}

func (e *Engine) isSessionBlocked(ctx context.Context, url string) bool {
	blocked, err := e.sessionBlocked.Has(ctx, url)
	if err != nil {
		e.logger.Warn("failed to read session blocks", zap.Error(err))
		return false
	}
	return blocked
}

// schedule replaces any pending alarm with the same key.
func (e *Engine) schedule(ctx context.Context, key domain.AlarmKey, delay time.Duration) {
	e.clear(ctx, key)
	if err := e.scheduler.Create(ctx, key, delay); err != nil {
		e.logger.Warn("failed to schedule alarm", zap.Stringer("alarm", key), zap.Error(err))
		return
	}
	e.logger.Debug("alarm scheduled", zap.Stringer("alarm", key), zap.Duration("delay", delay))
}

func (e *Engine) clear(ctx context.Context, key domain.AlarmKey) {
	if err := e.scheduler.Clear(ctx, key); err != nil {
		e.logger.Warn("failed to clear alarm", zap.Stringer("alarm", key), zap.Error(err))
	}
}

// redirect sends the tab to the blocked page. Best-effort.
func (e *Engine) redirect(ctx context.Context, tabID int, url string) {
	if err := e.tabs.Redirect(ctx, tabID, e.config.BlockedPageURL); err != nil {
		e.logger.Warn("redirect failed", zap.Int("tab", tabID), zap.Error(err))
		return
	}
	e.logger.Info("redirected tab",
		zap.Int("tab", tabID),
		zap.String("url", url))
}

func minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}
