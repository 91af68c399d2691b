// Package signaling holds the connection-state machine of the matchmaking
// service: the waiting set, the symmetric pairing table, and the rules for
// pairing peers, relaying negotiation messages between them and dissolving a
// session when either side leaves.
//
// All shared state lives in a Switchboard behind a single mutex. Outbound
// events leave through a Notifier while that mutex is held, which keeps the
// notifications a given peer receives in the order their causes were
// processed.
package signaling
