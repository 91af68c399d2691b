package server

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/gosignal/internal/protocol"
	"github.com/Tyrowin/gosignal/internal/signaling"
)

func TestHubGreetsAndCountsClients(t *testing.T) {
	hub := newTestHub(t, signaling.Options{})

	first := registerDetached(t, hub)
	second := registerDetached(t, hub)

	assert.NotEqual(t, first.ID(), second.ID())
	assert.Equal(t, 2, hub.ClientCount())
}

func TestHubRegistersNilClientWithoutPanicking(t *testing.T) {
	hub := newTestHub(t, signaling.Options{})

	assert.True(t, hub.Register(nil))
	assert.Equal(t, 0, hub.ClientCount())
}

func TestHubMatchesAndRelays(t *testing.T) {
	hub := newTestHub(t, signaling.Options{})
	a := registerDetached(t, hub)
	b := registerDetached(t, hub)

	deliver(t, hub, a, `{"type":"readyForCall"}`)
	expectNoNotification(t, a, 50*time.Millisecond)
	deliver(t, hub, b, `{"type":"readyForCall"}`)

	assert.Equal(t, protocol.Outbound{Type: protocol.TypeMatched, UserID: string(b.ID()), Role: signaling.RoleCaller}, nextNotification(t, a))
	assert.Equal(t, protocol.Outbound{Type: protocol.TypeMatched, UserID: string(a.ID()), Role: signaling.RoleReceiver}, nextNotification(t, b))

	deliver(t, hub, a, `{"type":"offer","offer":"x","targetUserId":"`+string(b.ID())+`"}`)
	offer := nextNotification(t, b)
	assert.Equal(t, protocol.TypeOffer, offer.Type)
	assert.Equal(t, string(a.ID()), offer.UserID)
	assert.JSONEq(t, `"x"`, string(offer.Offer))

	deliver(t, hub, b, `{"type":"answer","answer":{"sdp":"y"},"targetUserId":"`+string(a.ID())+`"}`)
	answer := nextNotification(t, a)
	assert.Equal(t, protocol.TypeAnswer, answer.Type)
	assert.JSONEq(t, `{"sdp":"y"}`, string(answer.Answer))

	deliver(t, hub, b, `{"type":"icecandidate","candidate":{"candidate":"c"},"targetUserId":"`+string(a.ID())+`"}`)
	candidate := nextNotification(t, a)
	assert.Equal(t, protocol.TypeICECandidate, candidate.Type)
	assert.Equal(t, string(b.ID()), candidate.UserID)
}

func TestHubUnregisterNotifiesPartner(t *testing.T) {
	hub := newTestHub(t, signaling.Options{})
	a := registerDetached(t, hub)
	b := registerDetached(t, hub)
	deliver(t, hub, a, `{"type":"readyForCall"}`)
	deliver(t, hub, b, `{"type":"readyForCall"}`)
	nextNotification(t, a)
	nextNotification(t, b)
	before := testutil.ToFloat64(teardownsTotal.WithLabelValues(causeTransportClose))

	hub.unregister <- b

	assert.Equal(t, protocol.Outbound{Type: protocol.TypePeerDisconnected}, nextNotification(t, a))
	require.Eventually(t, func() bool {
		return hub.Switchboard().Stats() == signaling.Stats{}
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, hub.ClientCount())
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(teardownsTotal.WithLabelValues(causeTransportClose)) == before+1
	}, time.Second, 10*time.Millisecond)

	_, stillOpen := <-b.GetSendChan()
	assert.False(t, stillOpen)
}

func TestHubUnregisterRemovesWaiter(t *testing.T) {
	hub := newTestHub(t, signaling.Options{})
	a := registerDetached(t, hub)
	deliver(t, hub, a, `{"type":"readyForCall"}`)
	require.Eventually(t, func() bool { return hub.Switchboard().IsWaiting(a.ID()) }, time.Second, 10*time.Millisecond)

	hub.unregister <- a

	require.Eventually(t, func() bool { return !hub.Switchboard().IsWaiting(a.ID()) }, time.Second, 10*time.Millisecond)
}

func TestHubSelfReportedDisconnect(t *testing.T) {
	hub := newTestHub(t, signaling.Options{})
	a := registerDetached(t, hub)
	b := registerDetached(t, hub)
	deliver(t, hub, a, `{"type":"readyForCall"}`)
	deliver(t, hub, b, `{"type":"readyForCall"}`)
	nextNotification(t, a)
	nextNotification(t, b)

	deliver(t, hub, a, `{"type":"peerDisconnected"}`)

	assert.Equal(t, protocol.TypePeerDisconnected, nextNotification(t, b).Type)
	expectNoNotification(t, a, 50*time.Millisecond)
	assert.Equal(t, 2, hub.ClientCount())

	// A second self-report has nothing left to dissolve.
	deliver(t, hub, a, `{"type":"peerDisconnected"}`)
	expectNoNotification(t, b, 50*time.Millisecond)
}

func TestHubDropsRelayWithEmptyTarget(t *testing.T) {
	hub := newTestHub(t, signaling.Options{})
	a := registerDetached(t, hub)
	b := registerDetached(t, hub)
	before := testutil.ToFloat64(droppedMessagesTotal.WithLabelValues(dropEmptyTarget))

	deliver(t, hub, a, `{"type":"offer","offer":"x","targetUserId":""}`)

	expectNoNotification(t, a, 50*time.Millisecond)
	expectNoNotification(t, b, 50*time.Millisecond)
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(droppedMessagesTotal.WithLabelValues(dropEmptyTarget)) == before+1
	}, time.Second, 10*time.Millisecond)
}

func TestHubDropsRelayAddressedToSender(t *testing.T) {
	hub := newTestHub(t, signaling.Options{})
	a := registerDetached(t, hub)
	before := testutil.ToFloat64(droppedMessagesTotal.WithLabelValues(dropSelfTarget))

	deliver(t, hub, a, `{"type":"offer","offer":"x","targetUserId":"`+string(a.ID())+`"}`)

	expectNoNotification(t, a, 50*time.Millisecond)
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(droppedMessagesTotal.WithLabelValues(dropSelfTarget)) == before+1
	}, time.Second, 10*time.Millisecond)
}

func TestDropReason(t *testing.T) {
	t.Parallel()
	assert.Equal(t, dropEmptyPayload, dropReason(signaling.ErrEmptyPayload))
	assert.Equal(t, dropEmptyTarget, dropReason(signaling.ErrEmptyTarget))
	assert.Equal(t, dropSelfTarget, dropReason(signaling.ErrSelfTarget))
	assert.Equal(t, dropNotPartner, dropReason(signaling.ErrNotPartner))
	assert.Equal(t, dropInvalidFrame, dropReason(signaling.ErrUnknownKind))
}

func TestHubDropsRelayToUnknownTarget(t *testing.T) {
	hub := newTestHub(t, signaling.Options{})
	a := registerDetached(t, hub)
	before := testutil.ToFloat64(droppedMessagesTotal.WithLabelValues(dropUnknownTarget))

	deliver(t, hub, a, `{"type":"offer","offer":"x","targetUserId":"gone"}`)

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(droppedMessagesTotal.WithLabelValues(dropUnknownTarget)) == before+1
	}, time.Second, 10*time.Millisecond)
	expectNoNotification(t, a, 50*time.Millisecond)
}

func TestHubIgnoresRepeatedReadyForCall(t *testing.T) {
	hub := newTestHub(t, signaling.Options{})
	a := registerDetached(t, hub)

	deliver(t, hub, a, `{"type":"readyForCall"}`)
	deliver(t, hub, a, `{"type":"readyForCall"}`)

	require.Eventually(t, func() bool {
		return hub.Switchboard().Stats() == signaling.Stats{Waiting: 1}
	}, time.Second, 10*time.Millisecond)
	expectNoNotification(t, a, 50*time.Millisecond)
}

func TestHubShutdown(t *testing.T) {
	hub := NewHub(DefaultConfig(), signaling.Options{})
	go hub.Run()

	assert.NoError(t, hub.Shutdown(5*time.Second))
	assert.False(t, hub.Register(NewClient(nil, hub, "127.0.0.1:1")))
}
