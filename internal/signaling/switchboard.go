package signaling

import (
	"sync"
)

// Options tune the matching and relay rules of a Switchboard.
type Options struct {
	Policy MatchPolicy
	// StrictRelay restricts Relay to the sender's recorded partner. By default
	// any peer may address any other live peer by id.
	StrictRelay bool
}

// Switchboard owns the waiting set and the pairing table. It plays both the
// matchmaker and the session relay; every operation runs under one lock.
type Switchboard struct {
	mu       sync.Mutex
	waiting  []PeerID
	pairs    map[PeerID]PeerID
	notifier Notifier
	opts     Options
}

// NewSwitchboard creates an empty Switchboard that emits notifications through
// notifier.
func NewSwitchboard(notifier Notifier, opts Options) *Switchboard {
	if opts.Policy == "" {
		opts.Policy = PolicyLIFO
	}
	if notifier == nil {
		notifier = NotifierFunc(func(PeerID, Notification) {})
	}
	return &Switchboard{
		pairs:    make(map[PeerID]PeerID),
		notifier: notifier,
		opts:     opts,
	}
}

// PartnerOf returns the peer id is currently paired with.
func (s *Switchboard) PartnerOf(id PeerID) (PeerID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	peer, ok := s.pairs[id]
	return peer, ok
}

// IsWaiting reports whether id is in the waiting set.
func (s *Switchboard) IsWaiting(id PeerID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.waitingIndex(id) >= 0
}

// Waiting returns a copy of the waiting set, oldest first.
func (s *Switchboard) Waiting() []PeerID {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]PeerID(nil), s.waiting...)
}

// Stats returns the current waiting and session counts.
func (s *Switchboard) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		Waiting:  len(s.waiting),
		Sessions: len(s.pairs) / 2,
	}
}

// Policy returns the match policy in effect.
func (s *Switchboard) Policy() MatchPolicy {
	return s.opts.Policy
}

func (s *Switchboard) waitingIndex(id PeerID) int {
	for i, waiter := range s.waiting {
		if waiter == id {
			return i
		}
	}
	return -1
}

func (s *Switchboard) notify(to PeerID, n Notification) {
	s.notifier.Notify(to, n)
}
