package signaling

import (
	"encoding/json"

	"github.com/sirupsen/logrus"
)

// Relay forwards a negotiation message from sender to target. The payload is
// passed through verbatim and tagged with sender as its origin. Delivery is
// fire-and-forget: a target that is not connected drops the message silently.
//
// Requests with an empty payload, an empty target or the sender as target are
// rejected with an error and nothing is delivered. Unless StrictRelay is set, target does not have to be
// the sender's partner.
func (s *Switchboard) Relay(kind Kind, sender, target PeerID, payload json.RawMessage) error {
	if !kind.valid() {
		return ErrUnknownKind
	}
	if IsEmptyPayload(payload) {
		return ErrEmptyPayload
	}
	if target == "" {
		return ErrEmptyTarget
	}
	if target == sender {
		return ErrSelfTarget
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.opts.StrictRelay {
		if partner, ok := s.pairs[sender]; !ok || partner != target {
			return ErrNotPartner
		}
	}

	logrus.WithFields(logrus.Fields{
		"kind":   kind,
		"peer":   sender,
		"target": target,
	}).Debug("Relaying negotiation message")

	s.notify(target, Notification{
		Event:   EventRelay,
		Kind:    kind,
		Origin:  sender,
		Payload: payload,
	})
	return nil
}

// Teardown dissolves id's session and tells its partner, if any, that the peer
// disconnected.
//
// selfDisconnected marks the explicit self-report from a peer that is still
// connected: only the pair is dissolved and the waiting set is not touched.
// Otherwise id is gone for good and is also removed from the waiting set.
//
// Teardown is idempotent. It returns the partner that was notified.
func (s *Switchboard) Teardown(id PeerID, selfDisconnected bool) (PeerID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	logger := logrus.WithField("peer", id)

	if !selfDisconnected && s.removeWaiter(id) {
		logger.Debug("Removed peer from the waiting set")
	}

	peer, paired := s.pairs[id]
	if !paired {
		return "", false
	}

	delete(s.pairs, peer)
	delete(s.pairs, id)
	s.notify(peer, Notification{Event: EventPeerDisconnected})

	logger.WithField("partner", peer).Debug("Session dissolved")
	return peer, true
}
