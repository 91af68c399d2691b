// Package protocol defines the JSON frames exchanged with signaling clients
// over the WebSocket and converts them to and from switchboard events.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Tyrowin/gosignal/internal/signaling"
)

// Type is the value of the "type" field of every frame.
type Type string

const (
	TypeReadyForCall     Type = "readyForCall"
	TypeOffer            Type = "offer"
	TypeAnswer           Type = "answer"
	TypeICECandidate     Type = "icecandidate"
	TypePeerDisconnected Type = "peerDisconnected"

	TypeConnected Type = "connected"
	TypeMatched   Type = "matched"
)

var (
	ErrMissingType = errors.New("frame has no type")
	ErrUnknownType = errors.New("unknown frame type")
)

// Inbound is a frame sent by a client. The negotiation blob sits under a key
// named after the frame type and is kept as raw JSON.
type Inbound struct {
	Type         Type            `json:"type"`
	TargetUserID string          `json:"targetUserId,omitempty"`
	Offer        json.RawMessage `json:"offer,omitempty"`
	Answer       json.RawMessage `json:"answer,omitempty"`
	Candidate    json.RawMessage `json:"candidate,omitempty"`
}

// Outbound is a frame sent to a client.
type Outbound struct {
	Type      Type            `json:"type"`
	UserID    string          `json:"userId,omitempty"`
	Role      signaling.Role  `json:"role,omitempty"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// DecodeInbound parses a raw client frame. Only the frame type is validated;
// payload and target checks belong to the switchboard.
func DecodeInbound(data []byte) (Inbound, error) {
	var msg Inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		return Inbound{}, fmt.Errorf("invalid frame: %w", err)
	}
	switch msg.Type {
	case "":
		return Inbound{}, ErrMissingType
	case TypeReadyForCall, TypeOffer, TypeAnswer, TypeICECandidate, TypePeerDisconnected:
		return msg, nil
	}
	return Inbound{}, fmt.Errorf("%w %q", ErrUnknownType, msg.Type)
}

// RelayKind maps a negotiation frame type to its relay kind.
func (m Inbound) RelayKind() (signaling.Kind, bool) {
	switch m.Type {
	case TypeOffer:
		return signaling.KindOffer, true
	case TypeAnswer:
		return signaling.KindAnswer, true
	case TypeICECandidate:
		return signaling.KindICECandidate, true
	}
	return "", false
}

// Payload returns the negotiation blob carried by the frame.
func (m Inbound) Payload() json.RawMessage {
	switch m.Type {
	case TypeOffer:
		return m.Offer
	case TypeAnswer:
		return m.Answer
	case TypeICECandidate:
		return m.Candidate
	}
	return nil
}

// Connected builds the greeting that tells a client its own id.
func Connected(id signaling.PeerID) Outbound {
	return Outbound{Type: TypeConnected, UserID: string(id)}
}

// FromNotification converts a switchboard notification to its wire frame.
func FromNotification(n signaling.Notification) (Outbound, error) {
	switch n.Event {
	case signaling.EventMatched:
		return Outbound{Type: TypeMatched, UserID: string(n.Partner), Role: n.Role}, nil
	case signaling.EventPeerDisconnected:
		return Outbound{Type: TypePeerDisconnected}, nil
	case signaling.EventRelay:
		out := Outbound{UserID: string(n.Origin)}
		switch n.Kind {
		case signaling.KindOffer:
			out.Type, out.Offer = TypeOffer, n.Payload
		case signaling.KindAnswer:
			out.Type, out.Answer = TypeAnswer, n.Payload
		case signaling.KindICECandidate:
			out.Type, out.Candidate = TypeICECandidate, n.Payload
		default:
			return Outbound{}, fmt.Errorf("%w %q", ErrUnknownType, n.Kind)
		}
		return out, nil
	}
	return Outbound{}, fmt.Errorf("%w %q", ErrUnknownType, n.Event)
}

// Encode renders an outbound frame.
func Encode(out Outbound) ([]byte, error) {
	return json.Marshal(out)
}
