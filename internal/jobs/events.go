package jobs

import (
	"context"
	"sync"

	"github.com/wbt-web-support/video-compress/internal/database"
)

// subscriberBuffer is each subscriber's channel depth. A consumer that
// falls behind misses intermediate snapshots; if even the terminal event
// finds its buffer full, the channel close tells it to read the final
// record from the store.
const subscriberBuffer = 16

// EventType classifies job lifecycle events for SSE relaying.
type EventType string

const (
	// EventProgress carries a Snapshot while the job advances.
	EventProgress EventType = "progress"
	// EventDone carries the final record of a completed or canceled job.
	EventDone EventType = "done"
	// EventError carries the final record of a failed job.
	EventError EventType = "error"
)

// Event is one notification out of a job's fanout. Snapshot is set for
// progress events, Job for terminal ones.
type Event struct {
	Type     EventType
	Snapshot *Snapshot
	Job      *database.Job
}

// Snapshot is the live progress view of a job, readable at any moment
// without touching the database.
type Snapshot struct {
	State   database.JobState `json:"state"`
	Percent float64           `json:"percent"`
	FPS     float64           `json:"fps,omitempty"`
	Speed   float64           `json:"speed,omitempty"`
	Message string            `json:"message,omitempty"`
}

// tracked is the in-memory side of a live job: its cancel lever, latest
// snapshot and subscribers. Terminal jobs leave the map; their state then
// lives only in the database.
type tracked struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	snapshot Snapshot
	subs     map[chan Event]struct{}
	closed   bool
}

// trackJob registers runtime state for a new job under a context derived
// from parent.
func (m *Manager) trackJob(id string, parent context.Context) *tracked {
	ctx, cancel := context.WithCancel(parent)
	t := &tracked{
		ctx:      ctx,
		cancel:   cancel,
		snapshot: Snapshot{State: database.StateQueued, Message: "waiting for a worker"},
		subs:     make(map[chan Event]struct{}),
	}

	m.mu.Lock()
	m.live[id] = t
	m.mu.Unlock()
	return t
}

func (m *Manager) lookup(id string) *tracked {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live[id]
}

// Progress returns the live snapshot for a job. ok is false when the job
// is not live (finished, or never existed); callers should consult the
// store then.
func (m *Manager) Progress(id string) (Snapshot, bool) {
	t := m.lookup(id)
	if t == nil {
		return Snapshot{}, false
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot, true
}

// Subscribe attaches an event channel to a live job, replaying the latest
// snapshot as the first event. The returned func detaches the subscriber;
// the channel is closed by the manager when the job reaches a terminal
// state. ok is false when the job is not live.
func (m *Manager) Subscribe(id string) (events <-chan Event, unsubscribe func(), ok bool) {
	t := m.lookup(id)
	if t == nil {
		return nil, nil, false
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, nil, false
	}

	ch := make(chan Event, subscriberBuffer)
	snap := t.snapshot
	ch <- Event{Type: EventProgress, Snapshot: &snap}
	t.subs[ch] = struct{}{}

	return ch, func() {
		t.mu.Lock()
		delete(t.subs, ch)
		t.mu.Unlock()
	}, true
}

// publishProgress records the newest snapshot and fans it out. Sends never
// block; a full subscriber misses this snapshot.
func (m *Manager) publishProgress(id string, snap Snapshot) {
	t := m.lookup(id)
	if t == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}

	t.snapshot = snap
	ev := Event{Type: EventProgress, Snapshot: &snap}
	for ch := range t.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// finishTracking delivers the terminal event, closes every subscriber and
// drops the job from the live map.
func (m *Manager) finishTracking(id string, ev Event) {
	m.mu.Lock()
	t := m.live[id]
	delete(m.live, id)
	m.mu.Unlock()
	if t == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	for ch := range t.subs {
		select {
		case ch <- ev:
		default:
		}
		close(ch)
	}
	t.subs = nil
	t.cancel()
}
