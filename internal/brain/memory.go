package brain

import "sync"

// DefaultMaxTurns caps a conversation log. When exceeded, the oldest
// non-system turns are dropped; the system turn at index 0 and the most
// recent turns always survive.
const DefaultMaxTurns = 40

// History is the ordered turn log of one conversation.
type History []Turn

// EnsureSystemTurn refreshes the system instruction. If index 0 already
// is a system turn its content is replaced, otherwise a new system turn
// is prepended. Calling it twice never duplicates the system turn.
func (h History) EnsureSystemTurn(instruction string) History {
	if len(h) > 0 && h[0].Role == RoleSystem {
		h[0] = SystemTurn(instruction)
		return h
	}
	return append(History{SystemTurn(instruction)}, h...)
}

// Append adds a turn at the end of the log.
func (h History) Append(t Turn) History {
	return append(h, t)
}

// Truncate enforces the turn cap: keep index 0 plus the most recent
// max-1 turns, dropping the oldest middle turns. Index 0 is never
// dropped so the model always sees current instructions.
func (h History) Truncate(max int) History {
	if max <= 0 || len(h) <= max {
		return h
	}
	out := make(History, 0, max)
	out = append(out, h[0])
	out = append(out, h[len(h)-(max-1):]...)
	return out
}

// Clone copies the log so a failed turn can be rolled back without
// leaking partial mutations.
func (h History) Clone() History {
	out := make(History, len(h))
	copy(out, h)
	return out
}

// Tail returns the turns after the last user turn: the assistant and
// tool activity produced during the current step.
func (h History) Tail() History {
	for i := len(h) - 1; i >= 0; i-- {
		if h[i].Role == RoleUser {
			return h[i+1:]
		}
	}
	return h
}

// conversation pairs a history with the lock serializing its turns.
type conversation struct {
	mu      sync.Mutex
	history History
}

// Conversations is the keyed store of per-identity conversation state.
// Two messages racing on the same identity serialize on its lock;
// distinct identities proceed in parallel.
type Conversations struct {
	mu    sync.Mutex
	convs map[string]*conversation
}

// NewConversations creates an empty conversation store.
func NewConversations() *Conversations {
	return &Conversations{convs: make(map[string]*conversation)}
}

func (c *Conversations) get(id string) *conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	conv, ok := c.convs[id]
	if !ok {
		conv = &conversation{}
		c.convs[id] = conv
	}
	return conv
}

// WithLock runs fn holding the identity's lock, persisting the history
// fn returns. All turn processing for an identity goes through here.
func (c *Conversations) WithLock(id string, fn func(History) History) {
	conv := c.get(id)
	conv.mu.Lock()
	defer conv.mu.Unlock()
	conv.history = fn(conv.history)
}

// Len reports the current turn count for an identity.
func (c *Conversations) Len(id string) int {
	conv := c.get(id)
	conv.mu.Lock()
	defer conv.mu.Unlock()
	return len(conv.history)
}

// Reset discards an identity's history.
func (c *Conversations) Reset(id string) {
	conv := c.get(id)
	conv.mu.Lock()
	defer conv.mu.Unlock()
	conv.history = nil
}
