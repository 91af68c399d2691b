package signaling

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// PeerID is the opaque identifier the transport layer assigns to a live connection.
type PeerID string

// Role tells a matched peer which side of the negotiation it plays.
type Role string

const (
	// RoleCaller is given to the peer that was already waiting; it creates the offer.
	RoleCaller Role = "caller"
	// RoleReceiver is given to the peer whose readiness completed the pair.
	RoleReceiver Role = "receiver"
)

// Kind is the type of negotiation message carried by Relay.
type Kind string

const (
	KindOffer        Kind = "offer"
	KindAnswer       Kind = "answer"
	KindICECandidate Kind = "ice-candidate"
)

func (k Kind) valid() bool {
	switch k {
	case KindOffer, KindAnswer, KindICECandidate:
		return true
	}
	return false
}

// Event names an outbound notification.
type Event string

const (
	EventMatched          Event = "matched"
	EventRelay            Event = "relay"
	EventPeerDisconnected Event = "peer-disconnected"
)

// Notification is a single outbound event addressed to one peer. Only the
// fields relevant to Event are set.
type Notification struct {
	Event Event

	// EventMatched
	Partner PeerID
	Role    Role

	// EventRelay
	Kind    Kind
	Origin  PeerID
	Payload json.RawMessage
}

// Notifier delivers notifications to live connections. Implementations must
// not block and must not call back into the Switchboard; a recipient that is
// no longer connected is dropped silently.
type Notifier interface {
	Notify(to PeerID, n Notification)
}

// NotifierFunc adapts a plain function to the Notifier interface.
type NotifierFunc func(to PeerID, n Notification)

// Notify implements Notifier.
func (f NotifierFunc) Notify(to PeerID, n Notification) {
	f(to, n)
}

// MatchPolicy selects which waiter is paired with an arriving peer.
type MatchPolicy string

const (
	// PolicyLIFO pairs with the most recently enqueued waiter.
	PolicyLIFO MatchPolicy = "lifo"
	// PolicyFIFO pairs with the longest waiting peer.
	PolicyFIFO MatchPolicy = "fifo"
)

// ParseMatchPolicy converts a user supplied string into a MatchPolicy. An empty
// string yields the default LIFO policy.
func ParseMatchPolicy(value string) (MatchPolicy, error) {
	switch MatchPolicy(strings.ToLower(strings.TrimSpace(value))) {
	case "", PolicyLIFO:
		return PolicyLIFO, nil
	case PolicyFIFO:
		return PolicyFIFO, nil
	}
	return "", fmt.Errorf("unknown match policy %q", value)
}

// IsEmptyPayload reports whether a relayed blob counts as absent: no bytes,
// null, false, "" or any number equal to zero (0, -0, 0.0, 0e0).
func IsEmptyPayload(payload json.RawMessage) bool {
	trimmed := bytes.TrimSpace(payload)
	switch string(trimmed) {
	case "", "null", "false", `""`:
		return true
	}
	if c := trimmed[0]; c == '-' || (c >= '0' && c <= '9') {
		value, err := strconv.ParseFloat(string(trimmed), 64)
		return err == nil && value == 0
	}
	return false
}

// Stats is a point-in-time view of the switchboard's shared state.
type Stats struct {
	Waiting  int `json:"waiting"`
	Sessions int `json:"sessions"`
}
