package app

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/yourusername/ytrelay-go/internal/domain"
)

// ProgressHub maps client identifiers to their live progress sinks. At most
// one sink is registered per identifier.
type ProgressHub struct {
	logger  *zap.Logger
	mu      sync.RWMutex
	sinks   map[string]domain.ProgressSink
	waiters map[string][]chan struct{}
}

// Subscription is the handle returned by Subscribe
type Subscription struct {
	hub      *ProgressHub
	clientID string
	sink     domain.ProgressSink
	once     sync.Once
}

// NewProgressHub creates an empty hub
func NewProgressHub(logger *zap.Logger) *ProgressHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressHub{
		logger:  logger,
		sinks:   make(map[string]domain.ProgressSink),
		waiters: make(map[string][]chan struct{}),
	}
}

// Subscribe registers sink for clientID, replacing and closing any sink that
// was registered before.
func (h *ProgressHub) Subscribe(clientID string, sink domain.ProgressSink) *Subscription {
	h.mu.Lock()
	prev, replaced := h.sinks[clientID]
	h.sinks[clientID] = sink
	waiters := h.waiters[clientID]
	delete(h.waiters, clientID)
	h.mu.Unlock()

	for _, w := range waiters {
		close(w)
	}

	if replaced && prev != sink {
		h.logger.Debug("Replacing progress subscriber", zap.String("client_id", clientID))
		h.closeSink(clientID, prev)
	}

	h.logger.Debug("Progress subscriber attached", zap.String("client_id", clientID))

	return &Subscription{hub: h, clientID: clientID, sink: sink}
}

// Close removes the subscription if it is still the registered one. It does
// not close the sink; the owner of the connection does that.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.removeIf(s.clientID, s.sink)
	})
}

// ClientID returns the identifier this subscription was registered under
func (s *Subscription) ClientID() string {
	return s.clientID
}

// Unsubscribe removes whatever sink is registered for clientID
func (h *ProgressHub) Unsubscribe(clientID string) {
	h.mu.Lock()
	_, ok := h.sinks[clientID]
	delete(h.sinks, clientID)
	h.mu.Unlock()

	if ok {
		h.logger.Debug("Progress subscriber detached", zap.String("client_id", clientID))
	}
}

func (h *ProgressHub) removeIf(clientID string, sink domain.ProgressSink) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, ok := h.sinks[clientID]; ok && current == sink {
		delete(h.sinks, clientID)
		return true
	}
	return false
}

// SendTo delivers event to the sink registered for clientID. A missing
// subscriber is not an error. A failing sink is dropped and closed; no other
// subscriber is affected.
func (h *ProgressHub) SendTo(ctx context.Context, clientID string, event domain.ProgressEvent) {
	h.mu.RLock()
	sink, ok := h.sinks[clientID]
	h.mu.RUnlock()

	if !ok {
		h.logger.Debug("No subscriber for progress event",
			zap.String("client_id", clientID),
			zap.String("status", string(event.Status)))
		return
	}

	if err := sink.Send(ctx, event); err != nil {
		h.logger.Warn("Dropping progress subscriber after send failure",
			zap.String("client_id", clientID),
			zap.Error(err))
		if h.removeIf(clientID, sink) {
			h.closeSink(clientID, sink)
		}
	}
}

// Broadcast sends event to every subscriber, ignoring individual failures
func (h *ProgressHub) Broadcast(ctx context.Context, event domain.ProgressEvent) {
	h.mu.RLock()
	snapshot := make(map[string]domain.ProgressSink, len(h.sinks))
	for id, sink := range h.sinks {
		snapshot[id] = sink
	}
	h.mu.RUnlock()

	for id, sink := range snapshot {
		if err := sink.Send(ctx, event); err != nil {
			h.logger.Debug("Broadcast send failed", zap.String("client_id", id), zap.Error(err))
		}
	}
}

// WaitForSubscriber blocks until clientID is subscribed or ctx is done
func (h *ProgressHub) WaitForSubscriber(ctx context.Context, clientID string) bool {
	h.mu.Lock()
	if _, ok := h.sinks[clientID]; ok {
		h.mu.Unlock()
		return true
	}
	ch := make(chan struct{})
	h.waiters[clientID] = append(h.waiters[clientID], ch)
	h.mu.Unlock()

	select {
	case <-ch:
		return true
	case <-ctx.Done():
		h.dropWaiter(clientID, ch)
		return false
	}
}

func (h *ProgressHub) dropWaiter(clientID string, ch chan struct{}) {
	h.mu.Lock()
	defer h.mu.Unlock()

	waiters := h.waiters[clientID]
	for i, w := range waiters {
		if w == ch {
			waiters = append(waiters[:i], waiters[i+1:]...)
			break
		}
	}
	if len(waiters) == 0 {
		delete(h.waiters, clientID)
	} else {
		h.waiters[clientID] = waiters
	}
}

// IsSubscribed reports whether clientID currently has a sink
func (h *ProgressHub) IsSubscribed(clientID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.sinks[clientID]
	return ok
}

// Count returns the number of live subscribers
func (h *ProgressHub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sinks)
}

func (h *ProgressHub) closeSink(clientID string, sink domain.ProgressSink) {
	if err := sink.Close(); err != nil {
		h.logger.Debug("Closing progress sink failed", zap.String("client_id", clientID), zap.Error(err))
	}
}
