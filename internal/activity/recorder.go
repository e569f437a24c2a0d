// Package activity persists activity events off the request path.
package activity

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/chepyr/go-task-board/shared/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

const EventActivityLogged = "activity_logged"

const (
	defaultQueueSize    = 256
	defaultWriteTimeout = 5 * time.Second
)

var (
	ErrQueueFull = errors.New("activity queue full")
	ErrClosed    = errors.New("activity recorder closed")
)

// Store is the append-only activity log.
type Store interface {
	Insert(ctx context.Context, activity *models.Activity) error
}

type Notifier interface {
	Notify(event string, payload any)
}

type Options struct {
	QueueSize    int
	WriteTimeout time.Duration
	Notifier     Notifier
	Logger       logrus.FieldLogger
}

type entry struct {
	ctx      context.Context
	activity *models.Activity
}

// Recorder queues activities and writes them from a single worker
// goroutine. Writes go through a circuit breaker so a failing store is not
// hammered while the board keeps serving.
type Recorder struct {
	store    Store
	queue    chan entry
	breaker  *gobreaker.CircuitBreaker
	notifier Notifier
	log      logrus.FieldLogger
	timeout  time.Duration

	mutex  sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewRecorder(store Store, opts Options) *Recorder {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	r := &Recorder{
		store:    store,
		queue:    make(chan entry, opts.QueueSize),
		notifier: opts.Notifier,
		log:      opts.Logger,
		timeout:  opts.WriteTimeout,
		done:     make(chan struct{}),
	}
	r.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "activity-store",
		MaxRequests: 1,
		Timeout:     5 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			r.log.WithFields(logrus.Fields{
				"event_id": "CIRCUIT_BREAKER_STATE_CHANGE",
				"breaker":  name,
				"from":     from.String(),
				"to":       to.String(),
			}).Warn("circuit breaker changed state")
		},
	})

	go r.run()
	return r
}

// Record enqueues the activity and returns immediately. The caller's
// cancellation does not abort the write.
func (r *Recorder) Record(ctx context.Context, activity *models.Activity) error {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if r.closed {
		return ErrClosed
	}
	if activity.ID == "" {
		activity.ID = uuid.New().String()
	}

	select {
	case r.queue <- entry{ctx: context.WithoutCancel(ctx), activity: activity}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting activities and waits for the queue to drain or
// ctx to expire.
func (r *Recorder) Close(ctx context.Context) error {
	r.mutex.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mutex.Unlock()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Recorder) run() {
	defer close(r.done)
	for e := range r.queue {
		r.write(e)
	}
}

func (r *Recorder) write(e entry) {
	ctx, cancel := context.WithTimeout(e.ctx, r.timeout)
	defer cancel()

	_, err := r.breaker.Execute(func() (interface{}, error) {
		return nil, r.store.Insert(ctx, e.activity)
	})
	if err != nil {
		fields := logrus.Fields{
			"event_id":    "ACTIVITY_WRITE_FAILED",
			"activity_id": e.activity.ID,
			"task_id":     e.activity.TaskID,
			"action":      e.activity.Action,
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			fields["breaker"] = r.breaker.State().String()
		}
		r.log.WithError(err).WithFields(fields).Error("failed to store activity")
		return
	}

	if r.notifier != nil {
		r.notifier.Notify(EventActivityLogged, e.activity)
	}
}
