package realtime

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/tripplanner/internal/metrics"
	"github.com/example/tripplanner/internal/models"
)

const manualFetchTimeout = 15 * time.Second

// NotificationState is what every consumer of a user's notifications sees.
type NotificationState struct {
	Notifications []*models.Notification `json:"notifications"`
	UnreadCount   int                    `json:"unreadCount"`
	Loading       bool                   `json:"loading"`
	Error         string                 `json:"error,omitempty"`
	// Live is false once the listener failed and the list only changes on Refresh.
	Live bool `json:"live"`
}

// NotificationWatcher opens the live listener. Implemented by db.NotificationRepository.
type NotificationWatcher interface {
	WatchByRecipient(ctx context.Context, email string, fn func([]*models.Notification)) error
}

// NotificationLister fetches the list once. Implemented by core.NotificationService.
type NotificationLister interface {
	ListAll(ctx context.Context, recipient string) ([]*models.Notification, error)
}

// NotificationDistributor keeps one live notification listener per signed-in user and
// republishes the list and unread count to every stream of that user.
//
// A listener that fails is not reopened: its error is kept in the state, loading is forced
// off and the list is fetched once by hand. Refresh fetches again on demand.
type NotificationDistributor struct {
	watcher NotificationWatcher
	lister  NotificationLister
	metrics metrics.Recorder
	logger  *zap.Logger

	mu    sync.Mutex
	base  context.Context
	stop  context.CancelFunc
	feeds map[string]*notificationFeed
}

type notificationFeed struct {
	*feed[NotificationState]
	email string

	// stateMu serializes read-modify-write cycles on the published state.
	stateMu sync.Mutex
}

// NewNotificationDistributor creates a NotificationDistributor.
func NewNotificationDistributor(watcher NotificationWatcher, lister NotificationLister, recorder metrics.Recorder, logger *zap.Logger) *NotificationDistributor {
	if recorder == nil {
		recorder = metrics.Nop()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	base, stop := context.WithCancel(context.Background())
	return &NotificationDistributor{
		watcher: watcher,
		lister:  lister,
		metrics: recorder,
		logger:  logger,
		base:    base,
		stop:    stop,
		feeds:   make(map[string]*notificationFeed),
	}
}

// Subscribe attaches a consumer to the notifications of email. session tags the consumer
// so that DropSession can end it when the session is invalidated. The first consumer of an
// e-mail opens the listener.
func (d *NotificationDistributor) Subscribe(email, session string) *Subscription[NotificationState] {
	email = models.NormalizeEmail(email)

	d.mu.Lock()
	defer d.mu.Unlock()

	f, ok := d.feeds[email]
	if !ok {
		ctx, cancel := context.WithCancel(d.base)
		f = &notificationFeed{feed: newFeed[NotificationState](cancel), email: email}
		f.onEmpty = func() { d.release(f) }
		f.publish(NotificationState{Notifications: []*models.Notification{}, Loading: true, Live: true})
		d.feeds[email] = f
		d.metrics.SetActiveNotificationSubscriptions(len(d.feeds))
		go d.run(ctx, f)
	}
	return f.add(session)
}

func (d *NotificationDistributor) run(ctx context.Context, f *notificationFeed) {
	err := d.watcher.WatchByRecipient(ctx, f.email, func(list []*models.Notification) {
		f.stateMu.Lock()
		defer f.stateMu.Unlock()
		if list == nil {
			list = []*models.Notification{}
		}
		f.publish(NotificationState{
			Notifications: list,
			UnreadCount:   models.CountUnread(list),
			Live:          true,
		})
	})
	if ctx.Err() != nil {
		return
	}
	if err == nil {
		err = ErrListenerStopped
	}
	d.logger.Warn("Notification listener failed, falling back to a manual fetch",
		zap.String("email", f.email), zap.Error(err))

	f.stateMu.Lock()
	st, _ := f.current()
	st.Error = err.Error()
	st.Loading = false
	st.Live = false
	f.publish(st)
	f.stateMu.Unlock()

	d.fetch(ctx, f)
}

// fetch loads the list once and publishes it. A fetch error replaces the list with an empty one.
func (d *NotificationDistributor) fetch(ctx context.Context, f *notificationFeed) {
	ctx, cancel := context.WithTimeout(ctx, manualFetchTimeout)
	defer cancel()
	list, err := d.lister.ListAll(ctx, f.email)

	f.stateMu.Lock()
	defer f.stateMu.Unlock()
	st, _ := f.current()
	st.Loading = false
	if err != nil {
		d.logger.Error("Manual notification fetch failed", zap.String("email", f.email), zap.Error(err))
		st.Notifications = []*models.Notification{}
		st.UnreadCount = 0
		st.Error = err.Error()
		f.publish(st)
		return
	}
	if list == nil {
		list = []*models.Notification{}
	}
	st.Notifications = list
	st.UnreadCount = models.CountUnread(list)
	if st.Live {
		st.Error = ""
	}
	f.publish(st)
}

// Refresh fetches the notifications of email once and republishes them. It is a no-op when
// nobody is subscribed.
func (d *NotificationDistributor) Refresh(ctx context.Context, email string) {
	d.mu.Lock()
	f := d.feeds[models.NormalizeEmail(email)]
	d.mu.Unlock()
	if f == nil {
		return
	}
	d.fetch(ctx, f)
}

// State returns the current state for email and whether a listener is open for it.
func (d *NotificationDistributor) State(email string) (NotificationState, bool) {
	d.mu.Lock()
	f := d.feeds[models.NormalizeEmail(email)]
	d.mu.Unlock()
	if f == nil {
		return NotificationState{}, false
	}
	return f.current()
}

func (d *NotificationDistributor) release(f *notificationFeed) {
	d.mu.Lock()
	if d.feeds[f.email] != f || f.size() > 0 {
		d.mu.Unlock()
		return
	}
	delete(d.feeds, f.email)
	d.metrics.SetActiveNotificationSubscriptions(len(d.feeds))
	d.mu.Unlock()
	f.shutdown(nil)
}

// Drop closes the listener of email and ends all of its consumers.
func (d *NotificationDistributor) Drop(email string) {
	email = models.NormalizeEmail(email)
	d.mu.Lock()
	f := d.feeds[email]
	delete(d.feeds, email)
	d.metrics.SetActiveNotificationSubscriptions(len(d.feeds))
	d.mu.Unlock()
	if f != nil {
		f.shutdown(nil)
	}
}

// DropSession ends the consumers that were opened with session. The user's listener stays
// open while other sessions still consume it.
func (d *NotificationDistributor) DropSession(email, session string) {
	d.mu.Lock()
	f := d.feeds[models.NormalizeEmail(email)]
	d.mu.Unlock()
	if f == nil {
		return
	}
	if n := f.removeTagged(session); n > 0 {
		d.logger.Debug("Closed notification streams of invalidated session", zap.String("email", f.email), zap.Int("streams", n))
	}
}

// ActiveSubscriptions returns the number of open listeners.
func (d *NotificationDistributor) ActiveSubscriptions() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.feeds)
}

// Close stops every listener.
func (d *NotificationDistributor) Close() {
	d.mu.Lock()
	feeds := d.feeds
	d.feeds = make(map[string]*notificationFeed)
	d.metrics.SetActiveNotificationSubscriptions(0)
	d.mu.Unlock()
	for _, f := range feeds {
		f.shutdown(ErrListenerStopped)
	}
	d.stop()
}
