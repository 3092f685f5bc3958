package presence

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
)

var errAlreadyStarted = errors.New("presence tracker already started; Stop it first")

// Tracker keeps a live view of everyone's presence and asserts the local
// user's liveness. It loads one bulk snapshot on Start, applies every feed
// update after that, and heartbeats {online, last_seen} for the local user
// on a fixed cadence. Heartbeat failures are logged and swallowed; the next
// tick self-heals.
type Tracker struct {
	repo   Repository
	feed   Feed
	logger core.Logger

	currentUserID     string
	heartbeatInterval time.Duration

	mu       sync.RWMutex
	records  map[string]Record
	watchers map[string][]chan Record

	cancel context.CancelFunc
	done   chan struct{}
}

func NewTracker(repo Repository, feed Feed, logger core.Logger, currentUserID string, conf *core.Config) *Tracker {
	interval := conf.Chat.HeartbeatInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Tracker{
		repo:              repo,
		feed:              feed,
		logger:            logger,
		currentUserID:     currentUserID,
		heartbeatInterval: interval,
		records:           make(map[string]Record),
		watchers:          make(map[string][]chan Record),
	}
}

// Start loads the snapshot, subscribes to the change feed and begins the
// heartbeat loop. The first heartbeat is written immediately.
func (t *Tracker) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.cancel != nil {
		t.mu.Unlock()
		return errAlreadyStarted
	}
	t.mu.Unlock()

	snapshot, err := t.repo.FetchSnapshot(ctx)
	if err != nil {
		return errors.Wrap(err, "fetching presence snapshot")
	}

	runCtx, cancel := context.WithCancel(ctx)
	updates, err := t.feed.Subscribe(runCtx)
	if err != nil {
		cancel()
		return errors.Wrap(err, "subscribing to presence feed")
	}

	t.mu.Lock()
	t.records = make(map[string]Record, len(snapshot))
	for _, rec := range snapshot {
		t.records[rec.UserID] = rec
	}
	t.cancel = cancel
	done := make(chan struct{})
	t.done = done
	t.mu.Unlock()

	t.beat(runCtx)

	go t.run(runCtx, updates, done)
	return nil
}

func (t *Tracker) run(ctx context.Context, updates <-chan Record, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(t.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case rec, ok := <-updates:
			if !ok {
				return
			}
			t.apply(rec)
		case <-ticker.C:
			t.beat(ctx)
		}
	}
}

// beat writes one heartbeat; failures are swallowed.
func (t *Tracker) beat(ctx context.Context) {
	if err := t.repo.WriteHeartbeat(ctx, t.currentUserID, time.Now().UTC()); err != nil {
		if t.logger != nil {
			t.logger.Error("presence: heartbeat failed", errors.WithMessage(ErrWrite, err.Error()))
		}
	}
}

// apply installs a feed update and fans it out to watchers. Slow watchers
// miss intermediate updates rather than blocking the feed.
func (t *Tracker) apply(rec Record) {
	t.mu.Lock()
	t.records[rec.UserID] = rec
	watchers := t.watchers[rec.UserID]
	t.mu.Unlock()

	for _, ch := range watchers {
		select {
		case ch <- rec:
		default:
		}
	}
}

// Record returns the last known presence of a user.
func (t *Tracker) Record(userID string) (Record, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.records[userID]
	return rec, ok
}

// IsOnline reports the sticky online flag; no staleness threshold is applied.
func (t *Tracker) IsOnline(userID string) bool {
	rec, ok := t.Record(userID)
	return ok && rec.Online
}

// Snapshot returns a copy of the current view.
func (t *Tracker) Snapshot() []Record {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Record, 0, len(t.records))
	for _, rec := range t.records {
		out = append(out, rec)
	}
	return out
}

// Watch streams presence updates for one user until the tracker stops. The
// channel is buffered by one; only the latest update matters to a UI.
func (t *Tracker) Watch(userID string) <-chan Record {
	ch := make(chan Record, 1)
	t.mu.Lock()
	t.watchers[userID] = append(t.watchers[userID], ch)
	t.mu.Unlock()
	return ch
}

// Stop cancels the loops, waits for them to exit and writes one best-effort
// offline record for the local user. A client that dies without reaching
// Stop leaves its online flag sticky.
func (t *Tracker) Stop() {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	watchers := t.watchers
	t.watchers = make(map[string][]chan Record)
	t.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	for _, chans := range watchers {
		for _, ch := range chans {
			close(ch)
		}
	}

	ctx, cancelOffline := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancelOffline()
	if err := t.repo.SetOnline(ctx, t.currentUserID, false, time.Now().UTC()); err != nil && t.logger != nil {
		t.logger.Warn("presence: offline write failed", err)
	}
}
