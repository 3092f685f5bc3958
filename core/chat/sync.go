package chat

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
)

var (
	errAlreadyStarted = errors.New("sync engine already started; Stop it first")
	errNotStarted     = errors.New("sync engine not started")
)

// Gateway is the message-plane contract the sync engine runs against. The
// chat Service implements it in-process; any transport that can fetch a
// newest-first window and create a message satisfies it.
type Gateway interface {
	FetchMessages(ctx context.Context, conversationID string, limit, offset int) ([]Message, error)
	CreateMessage(ctx context.Context, nm NewMessage) (Message, error)
}

// SendInput is one outgoing message. An Attachment is uploaded first and the
// send aborts if the upload fails.
type SendInput struct {
	Content    string
	ReplyToID  string
	Attachment *Upload
}

// Sync owns the authoritative local view of one open conversation's message
// history: it bulk-fetches on Start, polls incrementally on a timer, merges
// by identifier so overlapping windows and in-flight sends never produce
// duplicates, and appends confirmed sends immediately without waiting for
// the next poll.
//
// All state transitions go through one mutex; timer ticks, Send calls and
// late in-flight results interleave safely because every merge re-checks the
// engine's current conversation and start generation before touching the
// view.
type Sync struct {
	gw       Gateway
	uploader Uploader
	logger   core.Logger

	currentUserID     string
	initialFetchLimit int
	pollLimit         int
	pollInterval      time.Duration

	mu             sync.Mutex
	conversationID string
	messages       []Message
	seen           map[string]struct{}
	lastSeenID     string
	gen            uint64 // bumped on every Start; stale merges are dropped
	cancel         context.CancelFunc
	done           chan struct{}
}

func NewSync(gw Gateway, uploader Uploader, logger core.Logger, currentUserID string, conf *core.Config) *Sync {
	s := &Sync{
		gw:                gw,
		uploader:          uploader,
		logger:            logger,
		currentUserID:     currentUserID,
		initialFetchLimit: conf.Chat.InitialFetchLimit,
		pollLimit:         conf.Chat.PollLimit,
		pollInterval:      conf.Chat.PollInterval,
	}
	if s.initialFetchLimit <= 0 {
		s.initialFetchLimit = defaultPageSize
	}
	if s.pollLimit <= 0 {
		s.pollLimit = 10
	}
	if s.pollInterval <= 0 {
		s.pollInterval = 3 * time.Second
	}
	return s
}

// Start resets the view, installs the newest initialFetchLimit messages in
// chronological order and begins the polling loop. A failed initial fetch
// leaves the view empty and is not retried. The previous conversation's
// engine must be stopped first.
func (s *Sync) Start(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return errAlreadyStarted
	}
	s.gen++
	gen := s.gen
	s.conversationID = conversationID
	s.messages = nil
	s.seen = make(map[string]struct{})
	s.lastSeenID = ""
	s.mu.Unlock()

	batch, err := s.gw.FetchMessages(ctx, conversationID, s.initialFetchLimit, 0)
	if err != nil {
		return errors.WithMessage(ErrMessageFetch, err.Error())
	}
	reverseMessages(batch)
	s.merge(gen, conversationID, batch)

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.mu.Lock()
	if gen != s.gen { // Stop+Start raced us; do not run a stale loop
		s.mu.Unlock()
		cancel()
		return nil
	}
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	go s.loop(loopCtx, gen, conversationID, done)
	return nil
}

func (s *Sync) loop(ctx context.Context, gen uint64, conversationID string, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// transient failures self-heal on the next tick
			if err := s.poll(ctx, gen, conversationID); err != nil && s.logger != nil {
				s.logger.Error("chat sync: poll failed", err)
			}
		}
	}
}

// Poll fetches the recent window once and merges anything unseen. The loop
// calls this on each tick; it is exported so tests and callers can drive
// synchronization deterministically.
func (s *Sync) Poll(ctx context.Context) error {
	s.mu.Lock()
	gen, conversationID := s.gen, s.conversationID
	s.mu.Unlock()
	if conversationID == "" {
		return errNotStarted
	}
	return s.poll(ctx, gen, conversationID)
}

func (s *Sync) poll(ctx context.Context, gen uint64, conversationID string) error {
	batch, err := s.gw.FetchMessages(ctx, conversationID, s.pollLimit, 0)
	if err != nil {
		return errors.WithMessage(ErrMessageFetch, err.Error())
	}
	reverseMessages(batch)
	s.merge(gen, conversationID, batch)
	return nil
}

// Send uploads the attachment if any, submits the message and, on success,
// appends the store-confirmed message to the view immediately. The store's
// identifier is authoritative from first insertion; there is no pending
// placeholder to reconcile. On failure the view is untouched.
func (s *Sync) Send(ctx context.Context, in SendInput) (Message, error) {
	s.mu.Lock()
	gen, conversationID := s.gen, s.conversationID
	s.mu.Unlock()
	if conversationID == "" {
		return Message{}, errNotStarted
	}

	nm := NewMessage{
		ConversationID: conversationID,
		SenderID:       s.currentUserID,
		Content:        in.Content,
		ReplyToID:      in.ReplyToID,
	}
	if in.Attachment != nil {
		ref, err := s.uploader.Upload(ctx, conversationID, *in.Attachment)
		if err != nil {
			return Message{}, errors.WithMessage(ErrUpload, err.Error())
		}
		nm.Attachment = &ref
	}

	msg, err := s.gw.CreateMessage(ctx, nm)
	if err != nil {
		return Message{}, errors.WithMessage(ErrMessageSend, err.Error())
	}
	s.merge(gen, conversationID, []Message{msg})
	return msg, nil
}

// Stop cancels the polling loop and waits for it to exit. Idempotent. It
// must complete before Start is called for the next conversation, so a stale
// timer can never append into the new view.
func (s *Sync) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Messages returns a snapshot copy of the current view, chronological order.
func (s *Sync) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// LastSeenID returns the identifier of the newest merged message, or "" if
// the view is empty.
func (s *Sync) LastSeenID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeenID
}

// ConversationID returns the conversation this engine is bound to.
func (s *Sync) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

// merge appends the unseen messages of a chronological batch and advances
// the cursor. Batches from another conversation or a previous Start
// generation are dropped wholesale, as are individual messages that already
// merged or belong elsewhere.
func (s *Sync) merge(gen uint64, conversationID string, batch []Message) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || conversationID != s.conversationID {
		return 0
	}

	fresh := make([]Message, 0, len(batch))
	for _, m := range batch {
		if m.ConversationID != s.conversationID {
			continue
		}
		if _, ok := s.seen[m.ID]; ok {
			continue
		}
		fresh = append(fresh, m)
	}
	if len(fresh) == 0 {
		return 0
	}
	sort.Slice(fresh, func(i, j int) bool { return fresh[i].Before(fresh[j]) })
	for _, m := range fresh {
		s.seen[m.ID] = struct{}{}
		s.messages = append(s.messages, m)
	}
	s.lastSeenID = s.messages[len(s.messages)-1].ID
	return len(fresh)
}

// reverseMessages flips a newest-first page into chronological order.
func reverseMessages(msgs []Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}
