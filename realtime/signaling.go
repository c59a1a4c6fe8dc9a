package realtime

import (
	"encoding/json"
	"sync"
)

// Envelope is one signaling message in a member's inbox: a connection
// negotiation payload (offer, answer, ICE candidate, track update) from
// another member. The payload is opaque to the relay.
type Envelope struct {
	From    string          `json:"from"`
	Payload json.RawMessage `json:"payload"`
}

// Relay is a namespaced mailbox used only for peer connection handshakes,
// never media. Each (room, member) pair has an inbox; delivering an entry
// to its handler consumes it, so every entry is seen at most once. Entries
// sent while the addressee has no handler are buffered until one registers.
type Relay struct {
	mu       sync.Mutex
	inboxes  map[string]map[string][]Envelope
	handlers map[string]map[string]func(Envelope)
}

func NewRelay() *Relay {
	return &Relay{
		inboxes:  make(map[string]map[string][]Envelope),
		handlers: make(map[string]map[string]func(Envelope)),
	}
}

// Send appends env to the target's inbox, delivering immediately when the
// target is listening.
func (r *Relay) Send(roomID, to string, env Envelope) {
	r.mu.Lock()
	if handlers, ok := r.handlers[roomID]; ok {
		if fn, ok := handlers[to]; ok {
			r.mu.Unlock()
			fn(env)
			return
		}
	}
	if _, ok := r.inboxes[roomID]; !ok {
		r.inboxes[roomID] = make(map[string][]Envelope)
	}
	r.inboxes[roomID][to] = append(r.inboxes[roomID][to], env)
	r.mu.Unlock()
}

// Listen registers handler as the consumer for uid's inbox in roomID,
// draining anything buffered first. Only the addressee ever reads its own
// inbox, so no two consumers can double-process an entry.
func (r *Relay) Listen(roomID, uid string, handler func(Envelope)) (cancel func()) {
	r.mu.Lock()
	var pending []Envelope
	if inboxes, ok := r.inboxes[roomID]; ok {
		pending = inboxes[uid]
		delete(inboxes, uid)
	}
	if _, ok := r.handlers[roomID]; !ok {
		r.handlers[roomID] = make(map[string]func(Envelope))
	}
	r.handlers[roomID][uid] = handler
	r.mu.Unlock()

	for _, env := range pending {
		handler(env)
	}

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if handlers, ok := r.handlers[roomID]; ok {
			delete(handlers, uid)
			if len(handlers) == 0 {
				delete(r.handlers, roomID)
			}
		}
	}
}

// ClearInbox drops any buffered entries addressed to uid. Members clear
// their own inbox on room entry and on leave, so stale handshakes from a
// previous session are never replayed.
func (r *Relay) ClearInbox(roomID, uid string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inboxes, ok := r.inboxes[roomID]; ok {
		delete(inboxes, uid)
		if len(inboxes) == 0 {
			delete(r.inboxes, roomID)
		}
	}
}
