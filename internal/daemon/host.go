// Package daemon runs the native messaging host session.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/eliteGoblin/focusd/focusguard/internal/domain"
	"github.com/eliteGoblin/focusd/focusguard/internal/infra"
)

// ErrHostClosed is returned by requests issued after the session ended.
var ErrHostClosed = errors.New("native messaging session closed")

// classificationConfidence is reported with every classification reply.
const classificationConfidence = 0.8

// EventHandler receives browser events. Implemented by usecase.Engine.
type EventHandler interface {
	OnTabUpdated(ctx context.Context, ev domain.TabUpdatedEvent) domain.Decision
	OnTabActivated(ctx context.Context, ev domain.TabActivatedEvent) domain.Decision
	OnNavigationCommitted(ctx context.Context, ev domain.NavigationCommittedEvent) domain.Decision
	OnAlarm(ctx context.Context, key domain.AlarmKey) domain.Decision
}

// HostConfig holds host session configuration.
type HostConfig struct {
	RequestTimeout time.Duration // Deadline for get_tab round trips
	MaxHandlers    int           // Concurrent event handlers
}

// DefaultHostConfig returns default host configuration.
func DefaultHostConfig() HostConfig {
	return HostConfig{
		RequestTimeout: 5 * time.Second,
		MaxHandlers:    16,
	}
}

type frameResult struct {
	body []byte
	err  error
}

// Host speaks the native messaging protocol on a reader/writer pair (stdin/stdout).
// It dispatches browser events to an EventHandler and implements
// domain.TabController and domain.Notifier over the same channel.
type Host struct {
	config     HostConfig
	reader     *infra.FrameReader
	writer     *infra.FrameWriter
	classifier domain.ContentClassifier
	logger     *zap.Logger

	mu      sync.Mutex
	pending map[string]chan inboundMessage
	closed  bool
}

// NewHost creates a host. classifier may be nil.
func NewHost(config HostConfig, r io.Reader, w io.Writer, classifier domain.ContentClassifier, logger *zap.Logger) *Host {
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = DefaultHostConfig().RequestTimeout
	}
	if config.MaxHandlers <= 0 {
		config.MaxHandlers = DefaultHostConfig().MaxHandlers
	}
	return &Host{
		config:     config,
		reader:     infra.NewFrameReader(r),
		writer:     infra.NewFrameWriter(w),
		classifier: classifier,
		logger:     logger,
		pending:    make(map[string]chan inboundMessage),
	}
}

// Run serves the session until the browser closes the channel (returns nil),
// ctx is cancelled, or the channel breaks. MaxHandlers bounds how many events
// are handled at once; events beyond that wait without stalling the reader.
func (h *Host) Run(ctx context.Context, handler EventHandler) error {
	h.logger.Info("native messaging session started")
	defer h.shutdown()

	frames := make(chan frameResult)
	done := make(chan struct{})
	defer close(done)
	go h.readFrames(frames, done)

	handlerCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	sem := semaphore.NewWeighted(int64(h.config.MaxHandlers))
	var handlers sync.WaitGroup

	err := h.receive(ctx, frames, func(msg inboundMessage) {
		handlers.Add(1)
		go func() {
			defer handlers.Done()
			if err := sem.Acquire(handlerCtx, 1); err != nil {
				return
			}
			defer sem.Release(1)
			h.dispatch(handlerCtx, handler, msg)
		}()
	})
	if err != nil {
		cancel()
	}
	handlers.Wait()

	h.logger.Info("native messaging session ended", zap.Error(err))
	return err
}

// receive reads frames until the browser closes the channel or ctx ends.
// Responses resolve pending requests inline; every other message goes to
// enqueue, which must not block.
func (h *Host) receive(ctx context.Context, frames <-chan frameResult, enqueue func(inboundMessage)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fr := <-frames:
			if fr.err != nil {
				// Nothing can answer a pending request any more.
				h.shutdown()
				if errors.Is(fr.err, io.EOF) {
					h.logger.Info("browser closed native messaging channel")
					return nil
				}
				return fmt.Errorf("failed to read message: %w", fr.err)
			}
			var msg inboundMessage
			if err := json.Unmarshal(fr.body, &msg); err != nil {
				h.logger.Warn("dropping malformed message", zap.Error(err))
				continue
			}
			if msg.Type == MsgResponse {
				h.resolve(msg)
				continue
			}
			enqueue(msg)
		}
	}
}

func (h *Host) readFrames(out chan<- frameResult, done <-chan struct{}) {
	for {
		body, err := h.reader.ReadFrame()
		select {
		case out <- frameResult{body: body, err: err}:
		case <-done:
			return
		}
		if err != nil {
			return
		}
	}
}

// dispatch routes one event. Handlers never fail; decisions are logged.
func (h *Host) dispatch(ctx context.Context, handler EventHandler, msg inboundMessage) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("event handler panicked",
				zap.String("type", msg.Type),
				zap.Any("panic", r))
		}
	}()

	var d domain.Decision
	switch msg.Type {
	case MsgTabUpdated:
		if msg.Tab == nil {
			h.logger.Warn("tab_updated without tab", zap.Int("tab", msg.TabID))
			return
		}
		tab := *msg.Tab
		if tab.ID == 0 {
			tab.ID = msg.TabID
		}
		d = handler.OnTabUpdated(ctx, domain.TabUpdatedEvent{TabID: msg.TabID, Status: msg.Status, Tab: tab})
	case MsgTabActivated:
		d = handler.OnTabActivated(ctx, domain.TabActivatedEvent{TabID: msg.TabID})
	case MsgNavigationCommitted:
		d = handler.OnNavigationCommitted(ctx, domain.NavigationCommittedEvent{
			TabID: msg.TabID, URL: msg.URL, FrameID: msg.FrameID,
		})
	case MsgAlarm:
		key, ok := domain.ParseAlarmName(msg.Name)
		if !ok {
			h.logger.Debug("ignoring foreign alarm", zap.String("name", msg.Name))
			return
		}
		d = handler.OnAlarm(ctx, key)
	case MsgClassify:
		h.classify(ctx, msg)
		return
	default:
		h.logger.Warn("unknown message type", zap.String("type", msg.Type))
		return
	}

	h.logger.Debug("event handled",
		zap.String("type", msg.Type),
		zap.Int("tab", msg.TabID),
		zap.String("action", string(d.Action)),
		zap.String("reason", d.Reason))
}

// classify answers a content script's classification request.
func (h *Host) classify(ctx context.Context, msg inboundMessage) {
	if h.classifier == nil || msg.Page == nil || msg.Page.URL == "" {
		return
	}
	label, err := h.classifier.Classify(ctx, *msg.Page)
	if err != nil {
		h.logger.Debug("classification failed", zap.String("url", msg.Page.URL), zap.Error(err))
		return
	}
	h.send(outboundMessage{
		Type:    MsgClassification,
		TabID:   msg.TabID,
		Payload: &classificationReply{URL: msg.Page.URL, Label: label, Confidence: classificationConfidence},
	})
}

// --- domain.TabController implementation ---

// Get asks the extension for the tab. Errors when the tab is gone or the
// extension does not answer within RequestTimeout.
func (h *Host) Get(ctx context.Context, tabID int) (*domain.Tab, error) {
	id := uuid.New().String()
	reply := make(chan inboundMessage, 1)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrHostClosed
	}
	h.pending[id] = reply
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.pending, id)
		h.mu.Unlock()
	}()

	if err := h.writer.WriteJSON(outboundMessage{Type: MsgGetTab, ID: id, TabID: tabID}); err != nil {
		return nil, fmt.Errorf("failed to request tab %d: %w", tabID, err)
	}

	timer := time.NewTimer(h.config.RequestTimeout)
	defer timer.Stop()

	select {
	case msg, ok := <-reply:
		if !ok {
			return nil, ErrHostClosed
		}
		if msg.Error != "" {
			return nil, fmt.Errorf("tab %d: %s", tabID, msg.Error)
		}
		if msg.Tab == nil {
			return nil, fmt.Errorf("tab %d not found", tabID)
		}
		return msg.Tab, nil
	case <-timer.C:
		return nil, fmt.Errorf("timed out waiting for tab %d", tabID)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Redirect tells the extension to navigate the tab.
func (h *Host) Redirect(ctx context.Context, tabID int, url string) error {
	return h.writer.WriteJSON(outboundMessage{Type: MsgRedirect, TabID: tabID, URL: url})
}

// --- domain.Notifier implementation ---

// Notify asks the extension to show a notification.
func (h *Host) Notify(ctx context.Context, n domain.Notification) error {
	return h.writer.WriteJSON(outboundMessage{Type: MsgNotify, Notification: &n})
}

func (h *Host) send(msg outboundMessage) {
	if err := h.writer.WriteJSON(msg); err != nil {
		h.logger.Warn("failed to send message", zap.String("type", msg.Type), zap.Error(err))
	}
}

func (h *Host) resolve(msg inboundMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	reply, ok := h.pending[msg.ID]
	if !ok {
		h.logger.Debug("response for unknown request", zap.String("id", msg.ID))
		return
	}
	select {
	case reply <- msg:
	default:
	}
}

// shutdown fails every outstanding request.
func (h *Host) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, reply := range h.pending {
		close(reply)
		delete(h.pending, id)
	}
}

// Ensure Host implements the browser-facing ports.
var (
	_ domain.TabController = (*Host)(nil)
	_ domain.Notifier      = (*Host)(nil)
)
