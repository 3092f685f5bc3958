package dummydb

import (
	"context"
	"time"

	"github.com/darasahq/darasa/core/presence"
)

type presenceRepository struct {
	db *presenceTable
}

var (
	_ presence.Repository = (*presenceRepository)(nil) // interface compliance checks
	_ presence.Feed       = (*presenceRepository)(nil)
)

// NewPresenceRepository returns an in-memory presence store that doubles as
// its own change feed: every write is broadcast to subscribers, mirroring
// the notify-on-write capability of the real backing store.
func NewPresenceRepository(db *DB) *presenceRepository {
	return &presenceRepository{db: db.presence}
}

func (repo *presenceRepository) FetchSnapshot(_ context.Context) ([]presence.Record, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	records := make([]presence.Record, 0, len(repo.db.table))
	for _, rec := range repo.db.table {
		records = append(records, *rec)
	}
	return records, nil
}

func (repo *presenceRepository) GetRecord(_ context.Context, userID string) (presence.Record, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if rec, ok := repo.db.table[userID]; ok {
		return *rec, nil
	}
	return presence.Record{}, presence.ErrNotFound
}

func (repo *presenceRepository) WriteHeartbeat(_ context.Context, userID string, at time.Time) error {
	repo.db.Lock()
	rec, ok := repo.db.table[userID]
	if !ok {
		rec = &presence.Record{UserID: userID}
		repo.db.table[userID] = rec
	}
	rec.Online = true
	rec.LastSeen = at.UTC()
	rec.UpdatedAt = at.UTC()
	broadcast(repo.db.subs, *rec)
	repo.db.Unlock()
	return nil
}

func (repo *presenceRepository) SetOnline(_ context.Context, userID string, online bool, at time.Time) error {
	repo.db.Lock()
	rec, ok := repo.db.table[userID]
	if !ok {
		rec = &presence.Record{UserID: userID}
		repo.db.table[userID] = rec
	}
	rec.Online = online
	rec.UpdatedAt = at.UTC()
	broadcast(repo.db.subs, *rec)
	repo.db.Unlock()
	return nil
}

func (repo *presenceRepository) Subscribe(ctx context.Context) (<-chan presence.Record, error) {
	ch := make(chan presence.Record, 16)
	repo.db.Lock()
	repo.db.subs = append(repo.db.subs, ch)
	repo.db.Unlock()

	go func() {
		<-ctx.Done()
		repo.db.Lock()
		for i, sub := range repo.db.subs {
			if sub == ch {
				repo.db.subs = append(repo.db.subs[:i], repo.db.subs[i+1:]...)
				break
			}
		}
		repo.db.Unlock()
		close(ch)
	}()
	return ch, nil
}

// broadcast delivers to every subscriber without blocking the writer; a full
// subscriber drops the update. Called with the table lock held, so a send
// can never race a Subscribe cancellation's close.
func broadcast(subs []chan presence.Record, rec presence.Record) {
	for _, sub := range subs {
		select {
		case sub <- rec:
		default:
		}
	}
}
