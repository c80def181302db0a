package realtime

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/example/tripplanner/internal/metrics"
	"github.com/example/tripplanner/internal/models"
)

// TripWatcher opens live listeners on trips. Implemented by db.TripRepository.
type TripWatcher interface {
	Watch(ctx context.Context, tripID string, fn func(*models.Trip)) error
	WatchPublic(ctx context.Context, fn func([]*models.Trip)) error
}

// MessageWatcher opens live listeners on trip chats. Implemented by db.MessageRepository.
type MessageWatcher interface {
	WatchByTrip(ctx context.Context, tripID string, fn func([]*models.ChatMessage)) error
}

const publicKey = "public"

// TripWatchHub keeps one database listener per watched trip, shared by every stream that
// shows that trip. The listener is closed when its last subscription goes away. The public
// listing and trip chats are shared the same way.
type TripWatchHub struct {
	trips    TripWatcher
	messages MessageWatcher
	metrics  metrics.Recorder
	logger   *zap.Logger

	mu       sync.Mutex
	base     context.Context
	stop     context.CancelFunc
	tripFeed map[string]*feed[*models.Trip]
	public   map[string]*feed[[]*models.Trip]
	chats    map[string]*feed[[]*models.ChatMessage]
}

// NewTripWatchHub creates a TripWatchHub. messages may be nil when chat streams are not served.
func NewTripWatchHub(trips TripWatcher, messages MessageWatcher, recorder metrics.Recorder, logger *zap.Logger) *TripWatchHub {
	if recorder == nil {
		recorder = metrics.Nop()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	base, stop := context.WithCancel(context.Background())
	return &TripWatchHub{
		trips:    trips,
		messages: messages,
		metrics:  recorder,
		logger:   logger,
		base:     base,
		stop:     stop,
		tripFeed: make(map[string]*feed[*models.Trip]),
		public:   make(map[string]*feed[[]*models.Trip]),
		chats:    make(map[string]*feed[[]*models.ChatMessage]),
	}
}

// WatchTrip subscribes to a trip. Updates carries nil once the trip is deleted.
func (h *TripWatchHub) WatchTrip(tripID string) *Subscription[*models.Trip] {
	return subscribe(h, h.tripFeed, tripID, func(ctx context.Context, fn func(*models.Trip)) error {
		return h.trips.Watch(ctx, tripID, fn)
	})
}

// WatchPublic subscribes to the list of public trips.
func (h *TripWatchHub) WatchPublic() *Subscription[[]*models.Trip] {
	return subscribe(h, h.public, publicKey, h.trips.WatchPublic)
}

// WatchMessages subscribes to the chat of a trip.
func (h *TripWatchHub) WatchMessages(tripID string) *Subscription[[]*models.ChatMessage] {
	return subscribe(h, h.chats, tripID, func(ctx context.Context, fn func([]*models.ChatMessage)) error {
		if h.messages == nil {
			return ErrListenerStopped
		}
		return h.messages.WatchByTrip(ctx, tripID, fn)
	})
}

// subscribe attaches a subscription to feeds[key] and opens the listener for the first one.
func subscribe[T any](h *TripWatchHub, feeds map[string]*feed[T], key string, open func(context.Context, func(T)) error) *Subscription[T] {
	h.mu.Lock()
	defer h.mu.Unlock()

	f, ok := feeds[key]
	if !ok {
		ctx, cancel := context.WithCancel(h.base)
		f = newFeed[T](cancel)
		f.onEmpty = func() { release(h, feeds, key, f) }
		feeds[key] = f
		h.reportWatches()
		go listen(ctx, h, feeds, key, f, open)
	}
	return f.add("")
}

func listen[T any](ctx context.Context, h *TripWatchHub, feeds map[string]*feed[T], key string, f *feed[T], open func(context.Context, func(T)) error) {
	err := open(ctx, f.publish)
	if ctx.Err() != nil {
		return
	}
	if err == nil {
		err = ErrListenerStopped
	}
	h.logger.Warn("Listener stopped", zap.String("key", key), zap.Error(err))

	h.mu.Lock()
	if feeds[key] == f {
		delete(feeds, key)
		h.reportWatches()
	}
	h.mu.Unlock()
	f.shutdown(err)
}

func release[T any](h *TripWatchHub, feeds map[string]*feed[T], key string, f *feed[T]) {
	h.mu.Lock()
	if feeds[key] != f || f.size() > 0 {
		h.mu.Unlock()
		return
	}
	delete(feeds, key)
	h.reportWatches()
	h.mu.Unlock()
	f.shutdown(nil)
}

// ActiveWatches returns the number of open listeners.
func (h *TripWatchHub) ActiveWatches() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.activeLocked()
}

func (h *TripWatchHub) activeLocked() int {
	return len(h.tripFeed) + len(h.public) + len(h.chats)
}

func (h *TripWatchHub) reportWatches() {
	h.metrics.SetActiveTripWatches(h.activeLocked())
}

// Close stops every listener and ends all subscriptions.
func (h *TripWatchHub) Close() {
	h.mu.Lock()
	var stops []func()
	for _, f := range h.tripFeed {
		stops = append(stops, func() { f.shutdown(ErrListenerStopped) })
	}
	for _, f := range h.public {
		stops = append(stops, func() { f.shutdown(ErrListenerStopped) })
	}
	for _, f := range h.chats {
		stops = append(stops, func() { f.shutdown(ErrListenerStopped) })
	}
	clear(h.tripFeed)
	clear(h.public)
	clear(h.chats)
	h.reportWatches()
	h.mu.Unlock()

	for _, stop := range stops {
		stop()
	}
	h.stop()
}
