package presence

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("presence record not found")

	// ErrWrite means a heartbeat or online-flag write failed; callers swallow
	// it and retry on the next tick.
	ErrWrite = errors.New("presence write failed")
)

type (
	Repository interface {
		// FetchSnapshot returns the presence of every known user.
		FetchSnapshot(ctx context.Context) ([]Record, error)
		GetRecord(ctx context.Context, userID string) (Record, error)
		// WriteHeartbeat upserts {online: true, last_seen: at} for the user.
		WriteHeartbeat(ctx context.Context, userID string, at time.Time) error
		// SetOnline flips only the online flag, leaving last_seen at the last
		// heartbeat.
		SetOnline(ctx context.Context, userID string, online bool, at time.Time) error
	}

	// Feed is the change-feed collaborator contract: deliver every insert or
	// update of a presence record to the subscriber until ctx is cancelled.
	// The backing store provides this as a broadcast capability; it is the
	// one push-style dependency of the messaging subsystem.
	Feed interface {
		Subscribe(ctx context.Context) (<-chan Record, error)
	}
)
