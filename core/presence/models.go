package presence

import "time"

// Record is one user's liveness state. Online is sticky: it stays true until
// another write flips it, so a client that dies without a graceful offline
// write keeps showing online. Typing is modeled for the chat surface but has
// no write path yet; nothing in the backend drives it.
type Record struct {
	UserID    string    `json:"user_id"`
	Online    bool      `json:"online"`
	Typing    bool      `json:"typing"`
	LastSeen  time.Time `json:"last_seen"`  // UTC; last heartbeat
	UpdatedAt time.Time `json:"updated_at"` // UTC
}
