package signaling

import "errors"

var (
	ErrAlreadyWaiting = errors.New("peer is already waiting for a match")
	ErrAlreadyPaired  = errors.New("peer is already in a session")

	ErrEmptyPayload = errors.New("relay payload is empty")
	ErrEmptyTarget  = errors.New("relay target is empty")
	ErrSelfTarget   = errors.New("relay target is the sender")
	ErrUnknownKind  = errors.New("unknown relay kind")
	ErrNotPartner   = errors.New("relay target is not the sender's partner")
)
