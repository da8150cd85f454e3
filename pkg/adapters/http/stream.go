package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/scalux/scalux/internal/logging"
	"github.com/scalux/scalux/pkg/domain"
	"github.com/scalux/scalux/pkg/modetree"
)

// ReloadTopic is the stream every client without a session subscribes to.
// Session IDs are never empty, so it cannot collide with one.
const ReloadTopic = ""

// StreamManager fans messages out to active SSE connections, keyed by topic.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{}
	logger      *slog.Logger
}

// NewStreamManager creates an empty manager. A nil logger discards output.
func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a buffered channel for topic. The returned func
// unregisters and closes it.
func (sm *StreamManager) Subscribe(topic string) (<-chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	if _, ok := sm.subscribers[topic]; !ok {
		sm.subscribers[topic] = make(map[chan<- string]struct{})
	}
	sm.subscribers[topic][ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			sm.mu.Lock()
			defer sm.mu.Unlock()
			if subs, ok := sm.subscribers[topic]; ok {
				delete(subs, ch)
				if len(subs) == 0 {
					delete(sm.subscribers, topic)
				}
			}
			close(ch)
		})
	}
}

// Subscribers reports how many connections listen on topic.
func (sm *StreamManager) Subscribers(topic string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[topic])
}

// Broadcast delivers msg to every subscriber of topic.
// Slow clients with a full buffer miss the message.
func (sm *StreamManager) Broadcast(topic string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[topic] {
		select {
		case ch <- msg:
		default:
			sm.logger.Warn("SSE: client buffer full, dropping message", "topic", topic)
		}
	}
}

// PublishDiff sends a session diff to the subscribers of that session.
func (sm *StreamManager) PublishDiff(diff *domain.StateDiff) {
	if diff == nil {
		return
	}
	data, err := json.Marshal(diff)
	if err != nil {
		sm.logger.Error("SSE: failed to encode diff", "session_id", diff.SessionID, "error", err)
		return
	}
	sm.Broadcast(diff.SessionID, string(data))
}

// Hooks streams the diff of every committed transition. Register it on the
// session manager so changes made outside the HTTP API reach subscribers too.
func (sm *StreamManager) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTransition: func(_ context.Context, e *domain.TransitionEvent) {
			sm.PublishDiff(e.Diff)
		},
	}
}

type reloadEvent struct {
	Event string `json:"event"`
	Modes int    `json:"modes"`
}

// PublishReload notifies global subscribers that a new tree is active.
// Its signature fits scalux.WithReloadHook.
func (sm *StreamManager) PublishReload(tree *modetree.Tree) {
	data, _ := json.Marshal(reloadEvent{Event: "reload", Modes: tree.Len()})
	sm.Broadcast(ReloadTopic, string(data))
}
