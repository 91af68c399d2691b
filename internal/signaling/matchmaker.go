package signaling

import (
	"github.com/sirupsen/logrus"
)

// RequestMatch pairs id with a waiting peer, or enqueues it when nobody is
// waiting. On a match the waiter is told it is the caller and id is told it is
// the receiver.
//
// A peer that is already waiting or already paired is left untouched and the
// call returns ErrAlreadyWaiting or ErrAlreadyPaired.
func (s *Switchboard) RequestMatch(id PeerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, paired := s.pairs[id]; paired {
		return ErrAlreadyPaired
	}
	if s.waitingIndex(id) >= 0 {
		return ErrAlreadyWaiting
	}

	if len(s.waiting) == 0 {
		s.waiting = append(s.waiting, id)
		logrus.WithField("peer", id).Debug("Peer is waiting for a match")
		return nil
	}

	waiter := s.popWaiter()
	s.pairs[id] = waiter
	s.pairs[waiter] = id

	logrus.WithFields(logrus.Fields{
		"peer":    id,
		"partner": waiter,
		"policy":  s.opts.Policy,
	}).Debug("Matched peers")

	s.notify(id, Notification{Event: EventMatched, Partner: waiter, Role: RoleReceiver})
	s.notify(waiter, Notification{Event: EventMatched, Partner: id, Role: RoleCaller})
	return nil
}

// popWaiter removes one waiter according to the match policy. The waiting set
// must not be empty.
func (s *Switchboard) popWaiter() PeerID {
	if s.opts.Policy == PolicyFIFO {
		waiter := s.waiting[0]
		s.waiting[0] = ""
		s.waiting = s.waiting[1:]
		return waiter
	}

	last := len(s.waiting) - 1
	waiter := s.waiting[last]
	s.waiting = s.waiting[:last]
	return waiter
}

func (s *Switchboard) removeWaiter(id PeerID) bool {
	i := s.waitingIndex(id)
	if i < 0 {
		return false
	}
	s.waiting = append(s.waiting[:i], s.waiting[i+1:]...)
	return true
}
