package audit

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alverad/inout/internal/logger"
	"github.com/alverad/inout/pkg/inout"
)

var log = logger.ForComponent("audit")

// Recorder bridges store events into the sqlite trail. Events are queued
// on a buffered channel and written by a single background worker so that
// store operations never block on the database.
type Recorder struct {
	store    *Store
	queue    chan inout.Event
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

const queueSize = 256

func NewRecorder(store *Store) *Recorder {
	r := &Recorder{
		store: store,
		queue: make(chan inout.Event, queueSize),
		done:  make(chan struct{}),
	}

	r.wg.Add(1)
	go r.drain()

	return r
}

// Attach installs the recorder as the store's observer.
func (r *Recorder) Attach(s *inout.Store) {
	s.SetObserver(r.observe)
}

func (r *Recorder) observe(ev inout.Event) {
	select {
	case r.queue <- ev:
	case <-r.done:
	default:
		log.Warn("audit queue full, dropping event", "kind", string(ev.Kind), "store", ev.Store)
	}
}

func (r *Recorder) drain() {
	defer r.wg.Done()

	for {
		select {
		case ev := <-r.queue:
			r.write(ev)
		case <-r.done:
			// Flush whatever is still queued.
			for {
				select {
				case ev := <-r.queue:
					r.write(ev)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(ev inout.Event) {
	err := r.store.Append(Event{
		ID:        uuid.NewString(),
		Store:     ev.Store,
		Kind:      string(ev.Kind),
		Hint:      ev.Hint,
		Weight:    ev.Weight,
		OK:        ev.OK,
		Error:     ev.Err,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		log.Error("failed to record audit event", "error", err)
	}
}

// Close stops the worker after flushing queued events. The underlying
// sqlite store is not closed.
func (r *Recorder) Close() {
	r.stopOnce.Do(func() {
		close(r.done)
		r.wg.Wait()
	})
}
