package sqlxrepos

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/presence"
)

// presence_changes is raised by the trigger installed in the presence
// migration; its payload is the changed row as JSON.
const presenceChannel = "presence_changes"

type presenceFeed struct {
	connURL string
	logger  core.Logger
}

var _ presence.Feed = (*presenceFeed)(nil)

// NewPresenceFeed returns a presence.Feed backed by postgres LISTEN/NOTIFY.
func NewPresenceFeed(connURL string, logger core.Logger) *presenceFeed {
	return &presenceFeed{connURL: connURL, logger: logger}
}

func (f *presenceFeed) Subscribe(ctx context.Context) (<-chan presence.Record, error) {
	listener := pq.NewListener(f.connURL, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil && f.logger != nil {
			f.logger.Warn("presence feed: listener event", err)
		}
	})
	if err := listener.Listen(presenceChannel); err != nil {
		_ = listener.Close()
		return nil, errors.Wrap(err, "listening on presence channel")
	}

	ch := make(chan presence.Record, 16)
	go func() {
		defer close(ch)
		defer func() { _ = listener.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case n := <-listener.Notify:
				if n == nil { // reconnect event; pending changes were re-sent by the trigger on next write
					continue
				}
				var rec presence.Record
				if err := json.Unmarshal([]byte(n.Extra), &rec); err != nil {
					if f.logger != nil {
						f.logger.Error("presence feed: bad payload", err)
					}
					continue
				}
				select {
				case ch <- rec:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch, nil
}
