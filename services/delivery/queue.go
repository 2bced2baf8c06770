package delivery

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/upb/hms-audit/models"
	"go.uber.org/zap"
)

// ErrQueueStopped is returned by Refresh once Run has returned
var ErrQueueStopped = errors.New("delivery queue stopped")

// AlertSource lists unseen alerts oldest first
type AlertSource interface {
	ListUnseen(ctx context.Context, limit int) ([]*models.Alert, error)
}

// SeenMarker records that an alert was seen without waiting for the store
type SeenMarker interface {
	MarkSeen(id int64) error
}

// Presenter shows a ticket to the user. Present must return promptly; the
// user's answer arrives later through Ticket.Acknowledge or Ticket.Dismiss.
type Presenter interface {
	Present(t *Ticket)
}

// Observer is told how each presented ticket ended
type Observer interface {
	ObserveDelivery(outcome string)
}

// Config controls the queue
type Config struct {
	DisplayTimeout time.Duration
	FetchLimit     int
}

// DefaultConfig returns the default queue settings
func DefaultConfig() Config {
	return Config{DisplayTimeout: 6 * time.Second, FetchLimit: 500}
}

// Queue delivers unseen alerts to a Presenter strictly one at a time, in
// creation order. All queue state lives on the goroutine running Run.
type Queue struct {
	source    AlertSource
	presenter Presenter
	seen      SeenMarker
	navigate  func(*models.Alert)
	observer  Observer
	cfg       Config
	logger    *zap.Logger

	refreshCh chan chan error
	stopped   chan struct{}
	stopOnce  sync.Once
}

// QueueOption configures a Queue
type QueueOption func(*Queue)

// WithNavigation sets the callback run when a ticket is acknowledged
func WithNavigation(fn func(*models.Alert)) QueueOption {
	return func(q *Queue) { q.navigate = fn }
}

// WithObserver sets the delivery observer
func WithObserver(o Observer) QueueOption {
	return func(q *Queue) { q.observer = o }
}

// NewQueue creates a queue
func NewQueue(source AlertSource, presenter Presenter, seen SeenMarker, cfg Config, logger *zap.Logger, opts ...QueueOption) *Queue {
	def := DefaultConfig()
	if cfg.DisplayTimeout <= 0 {
		cfg.DisplayTimeout = def.DisplayTimeout
	}
	if cfg.FetchLimit <= 0 {
		cfg.FetchLimit = def.FetchLimit
	}

	q := &Queue{
		source:    source,
		presenter: presenter,
		seen:      seen,
		cfg:       cfg,
		logger:    logger,
		refreshCh: make(chan chan error),
		stopped:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// loop is the state owned by Run
type loop struct {
	pending []*models.Alert
	known   map[int64]struct{}
	current *Ticket
	timer   *time.Timer
}

// Run fetches unseen alerts and presents them until ctx is cancelled. A
// fetch failure at start is returned; later refresh failures go to the
// caller of Refresh.
func (q *Queue) Run(ctx context.Context) error {
	defer q.stopOnce.Do(func() { close(q.stopped) })

	l := &loop{known: make(map[int64]struct{})}
	if err := q.fetch(ctx, l); err != nil {
		return err
	}

	for {
		q.presentNext(l)

		var timeout <-chan time.Time
		var done <-chan Outcome
		if l.current != nil {
			timeout = l.timer.C
			done = l.current.Done()
		}

		select {
		case <-ctx.Done():
			if l.timer != nil {
				l.timer.Stop()
			}
			return nil

		case reply := <-q.refreshCh:
			reply <- q.fetch(ctx, l)

		case outcome := <-done:
			q.ended(l, outcome)

		case <-timeout:
			l.current.expire()
			q.ended(l, <-l.current.Done())
		}
	}
}

// Refresh asks the running queue to enqueue unseen alerts it does not
// already hold.
func (q *Queue) Refresh(ctx context.Context) error {
	reply := make(chan error, 1)
	select {
	case q.refreshCh <- reply:
	case <-q.stopped:
		return ErrQueueStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) fetch(ctx context.Context, l *loop) error {
	alerts, err := q.source.ListUnseen(ctx, q.cfg.FetchLimit)
	if err != nil {
		return fmt.Errorf("failed to fetch unseen alerts: %w", err)
	}

	added := 0
	for _, a := range alerts {
		if _, ok := l.known[a.ID]; ok {
			continue
		}
		l.known[a.ID] = struct{}{}
		l.pending = append(l.pending, a)
		added++
	}
	slices.SortStableFunc(l.pending, func(a, b *models.Alert) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})

	q.logger.Debug("unseen alerts fetched", zap.Int("fetched", len(alerts)), zap.Int("queued", added))
	return nil
}

func (q *Queue) presentNext(l *loop) {
	if l.current != nil || len(l.pending) == 0 {
		return
	}

	alert := l.pending[0]
	l.pending = l.pending[1:]

	l.current = NewTicket(alert,
		func() {
			if q.navigate != nil {
				q.navigate(alert)
			}
			q.markSeen(alert.ID)
		},
		func() { q.markSeen(alert.ID) },
	)
	if l.timer == nil {
		l.timer = time.NewTimer(q.cfg.DisplayTimeout)
	} else {
		l.timer.Reset(q.cfg.DisplayTimeout)
	}

	q.logger.Debug("presenting alert", zap.Int64("alert_id", alert.ID), zap.String("title", alert.Title))
	q.presenter.Present(l.current)
}

func (q *Queue) ended(l *loop, outcome Outcome) {
	if !l.timer.Stop() {
		select {
		case <-l.timer.C:
		default:
		}
	}
	q.logger.Debug("alert display ended",
		zap.Int64("alert_id", l.current.Alert.ID),
		zap.String("outcome", string(outcome)))
	if q.observer != nil {
		q.observer.ObserveDelivery(string(outcome))
	}
	l.current = nil
}

func (q *Queue) markSeen(id int64) {
	if err := q.seen.MarkSeen(id); err != nil {
		// the alert stays unseen and comes back on the next start
		q.logger.Warn("could not queue mark seen", zap.Int64("alert_id", id), zap.Error(err))
	}
}
