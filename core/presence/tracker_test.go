package presence_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/presence"
	"github.com/darasahq/darasa/storage/database/dummy"
)

func setup(t *testing.T, currentUserID string) (*presence.Tracker, *dummydb.DB) {
	t.Helper()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	repo := dummydb.NewPresenceRepository(db)
	conf := &core.Config{}
	conf.Chat.HeartbeatInterval = time.Hour // ticks never fire; tests drive writes
	return presence.NewTracker(repo, repo, nil, currentUserID, conf), db
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func Test_Tracker_Start_loadsSnapshot(t *testing.T) {
	tracker, db := setup(t, "me")
	repo := dummydb.NewPresenceRepository(db)
	ctx := context.Background()

	if err := repo.WriteHeartbeat(ctx, "bob", time.Now()); err != nil {
		t.Fatalf("WriteHeartbeat() failed: %v", err)
	}

	if err := tracker.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer tracker.Stop()

	if !tracker.IsOnline("bob") {
		t.Error("IsOnline(bob) = false, want true from the snapshot")
	}

	// the first heartbeat is written immediately and flows back via the feed
	waitFor(t, "own record", func() bool { return tracker.IsOnline("me") })
	rec, err := repo.GetRecord(ctx, "me")
	if err != nil {
		t.Fatalf("GetRecord(me) failed: %v", err)
	}
	if !rec.Online {
		t.Error("stored record for me is offline, want online")
	}
}

func Test_Tracker_Start_alreadyStarted(t *testing.T) {
	tracker, _ := setup(t, "me")
	if err := tracker.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer tracker.Stop()

	if err := tracker.Start(context.Background()); err == nil {
		t.Error("second Start() succeeded, want an error")
	}
}

func Test_Tracker_appliesFeedUpdates(t *testing.T) {
	tracker, db := setup(t, "me")
	repo := dummydb.NewPresenceRepository(db)
	ctx := context.Background()

	if err := tracker.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer tracker.Stop()

	if tracker.IsOnline("bob") {
		t.Fatal("IsOnline(bob) = true before any write")
	}

	if err := repo.WriteHeartbeat(ctx, "bob", time.Now()); err != nil {
		t.Fatalf("WriteHeartbeat() failed: %v", err)
	}
	waitFor(t, "bob online", func() bool { return tracker.IsOnline("bob") })

	if err := repo.SetOnline(ctx, "bob", false, time.Now()); err != nil {
		t.Fatalf("SetOnline() failed: %v", err)
	}
	waitFor(t, "bob offline", func() bool { return !tracker.IsOnline("bob") })
}

func Test_Tracker_onlineIsSticky(t *testing.T) {
	tracker, db := setup(t, "me")
	repo := dummydb.NewPresenceRepository(db)
	ctx := context.Background()

	// the last heartbeat is an hour old; the flag alone decides
	if err := repo.WriteHeartbeat(ctx, "bob", time.Now().Add(-time.Hour)); err != nil {
		t.Fatalf("WriteHeartbeat() failed: %v", err)
	}

	if err := tracker.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer tracker.Stop()

	if !tracker.IsOnline("bob") {
		t.Error("IsOnline(bob) = false, want true regardless of heartbeat age")
	}
	rec, ok := tracker.Record("bob")
	if !ok {
		t.Fatal("Record(bob) missing")
	}
	if time.Since(rec.LastSeen) < 30*time.Minute {
		t.Errorf("rec.LastSeen = %v, want the stale timestamp preserved", rec.LastSeen)
	}
}

func Test_Tracker_Watch(t *testing.T) {
	tracker, db := setup(t, "me")
	repo := dummydb.NewPresenceRepository(db)
	ctx := context.Background()

	if err := tracker.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer tracker.Stop()

	updates := tracker.Watch("bob")
	if err := repo.WriteHeartbeat(ctx, "bob", time.Now()); err != nil {
		t.Fatalf("WriteHeartbeat() failed: %v", err)
	}

	select {
	case rec := <-updates:
		if rec.UserID != "bob" || !rec.Online {
			t.Errorf("got update %+v, want bob online", rec)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Watch() never delivered the update")
	}
}

func Test_Tracker_Stop(t *testing.T) {
	tracker, db := setup(t, "me")
	repo := dummydb.NewPresenceRepository(db)
	ctx := context.Background()

	if err := tracker.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	updates := tracker.Watch("bob")

	tracker.Stop()
	tracker.Stop() // idempotent

	// the local user's flag was flipped off on the way out
	rec, err := repo.GetRecord(ctx, "me")
	if err != nil {
		t.Fatalf("GetRecord(me) failed: %v", err)
	}
	if rec.Online {
		t.Error("record for me still online after Stop()")
	}

	// watcher channels are closed
	select {
	case _, ok := <-updates:
		if ok {
			t.Error("got an update after Stop(), want closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("watcher channel not closed after Stop()")
	}
}

type failingHeartbeatRepo struct {
	presence.Repository
}

func (r failingHeartbeatRepo) WriteHeartbeat(context.Context, string, time.Time) error {
	return errors.WithMessage(presence.ErrWrite, "disk on fire")
}

func Test_Tracker_heartbeatFailureIsSwallowed(t *testing.T) {
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	repo := dummydb.NewPresenceRepository(db)
	conf := &core.Config{}
	conf.Chat.HeartbeatInterval = time.Hour
	tracker := presence.NewTracker(failingHeartbeatRepo{repo}, repo, nil, "me", conf)

	// Start still succeeds; the failed beat is logged and dropped
	if err := tracker.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	tracker.Stop()
}
