// Package server implements the HTTP and WebSocket transport of the signaling
// service.
//
// The implementation is organized into specialized files for configuration,
// hub management, clients, routing, metrics and HTTP handlers. The matchmaking
// rules themselves live in package signaling; this package only turns
// WebSocket frames into switchboard calls and switchboard notifications back
// into frames.
package server
