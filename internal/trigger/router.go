package trigger

import (
	"sync"
)

const (
	defaultSubscriberCapacity = 100
	defaultBacklogLimit       = 50
	defaultDedupeWindow       = 1024
)

// RouterOption customizes Router construction.
type RouterOption func(*Router)

// Router delivers accepted trigger events to subscribers with buffering,
// redelivery deduplication, and bounded channel semantics. Webhook providers
// redeliver on timeouts; dropping duplicates here keeps reruns from being
// scheduled for the same delivery.
type Router struct {
	mu           sync.RWMutex
	subscribers  map[*subscriber]struct{}
	backlog      []Event
	recentIDs    map[string]struct{}
	recentOrder  []string
	channelSize  int
	backlogLimit int
	dedupeWindow int
	logger       Logger
}

// Subscription represents an active event subscription.
type Subscription struct {
	Events <-chan Event
	cancel func()
}

// Close terminates the subscription.
func (s Subscription) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

// NewRouter constructs a router with sane defaults.
func NewRouter(opts ...RouterOption) *Router {
	r := &Router{
		subscribers:  map[*subscriber]struct{}{},
		recentIDs:    map[string]struct{}{},
		recentOrder:  make([]string, 0, defaultDedupeWindow),
		channelSize:  defaultSubscriberCapacity,
		backlogLimit: defaultBacklogLimit,
		dedupeWindow: defaultDedupeWindow,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// RouterWithLogger injects a logger for drop/diagnostic messages.
func RouterWithLogger(logger Logger) RouterOption {
	return func(r *Router) {
		r.logger = logger
	}
}

// RouterWithSubscriberCapacity overrides the buffered channel size per subscriber.
func RouterWithSubscriberCapacity(cap int) RouterOption {
	return func(r *Router) {
		if cap > 0 {
			r.channelSize = cap
		}
	}
}

// RouterWithBacklogLimit overrides the backlog size for pre-subscription buffering.
func RouterWithBacklogLimit(limit int) RouterOption {
	return func(r *Router) {
		if limit > 0 {
			r.backlogLimit = limit
		}
	}
}

// RouterWithDedupeWindow controls how many recent delivery IDs are retained.
func RouterWithDedupeWindow(size int) RouterOption {
	return func(r *Router) {
		if size > 0 {
			r.dedupeWindow = size
		}
	}
}

// Subscribe registers for all routed events.
func (r *Router) Subscribe() Subscription {
	sub := newSubscriber(r.channelSize, r.logger)
	var backlog []Event
	r.mu.Lock()
	r.subscribers[sub] = struct{}{}
	if len(r.backlog) > 0 {
		backlog = append(backlog, r.backlog...)
		r.backlog = nil
	}
	r.mu.Unlock()
	for _, event := range backlog {
		sub.deliver(event)
	}
	return Subscription{
		Events: sub.channel(),
		cancel: func() {
			r.removeSubscriber(sub)
		},
	}
}

// HandleEvent satisfies the EventProcessor interface.
func (r *Router) HandleEvent(event Event) error {
	r.Route(event)
	return nil
}

// Route delivers the event to subscribers or buffers it when none exist.
// Redeliveries (same delivery ID within the window) are silently dropped.
func (r *Router) Route(event Event) {
	if event.DeliveryID != "" && r.isDuplicate(event.DeliveryID) {
		if r.logger != nil {
			r.logger.Printf("trigger: duplicate delivery %s dropped", event.DeliveryID)
		}
		return
	}
	r.mu.RLock()
	subs := make([]*subscriber, 0, len(r.subscribers))
	for sub := range r.subscribers {
		subs = append(subs, sub)
	}
	r.mu.RUnlock()
	if len(subs) == 0 {
		r.bufferEvent(event)
		return
	}
	for _, sub := range subs {
		sub.deliver(event)
	}
}

func (r *Router) removeSubscriber(sub *subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subscribers, sub)
	sub.close()
}

func (r *Router) bufferEvent(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.backlog) >= r.backlogLimit {
		r.backlog = r.backlog[1:]
		if r.logger != nil {
			r.logger.Printf("trigger: backlog drop (limit %d)", r.backlogLimit)
		}
	}
	r.backlog = append(r.backlog, event)
}

func (r *Router) isDuplicate(deliveryID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, seen := r.recentIDs[deliveryID]; seen {
		return true
	}
	r.recentIDs[deliveryID] = struct{}{}
	r.recentOrder = append(r.recentOrder, deliveryID)
	if len(r.recentOrder) > r.dedupeWindow {
		oldest := r.recentOrder[0]
		r.recentOrder = r.recentOrder[1:]
		delete(r.recentIDs, oldest)
	}
	return false
}

type subscriber struct {
	events  chan Event
	logger  Logger
	closeMu sync.Mutex
	closed  bool
}

func newSubscriber(size int, logger Logger) *subscriber {
	if size <= 0 {
		size = defaultSubscriberCapacity
	}
	return &subscriber{events: make(chan Event, size), logger: logger}
}

func (s *subscriber) channel() <-chan Event {
	return s.events
}

// deliver places the event on the channel, dropping when the subscriber has
// fallen too far behind. A dropped trigger is logged, never blocks the server.
// The close mutex is held across the send so a concurrent close cannot leave
// us writing to a closed channel; the send is non-blocking, so the critical
// section stays short.
func (s *subscriber) deliver(event Event) {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.events <- event:
	default:
		if s.logger != nil {
			s.logger.Printf("trigger: subscriber full, dropped delivery %s", event.DeliveryID)
		}
	}
}

func (s *subscriber) close() {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.events)
}
