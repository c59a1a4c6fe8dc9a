package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// register adds a pump-less client to the hub; broadcast and targeted sends
// only touch the Send channel, so no websocket connection is needed.
func register(t *testing.T, hub *Hub, room, uid string) *Client {
	t.Helper()
	client := &Client{
		Hub:  hub,
		Send: make(chan []byte, 16),
		Room: room,
		UID:  uid,
	}
	hub.Register <- client
	// A second send can only be received after the previous insert
	// finished, so a throwaway registration acts as a barrier.
	hub.Register <- &Client{Hub: hub, Send: make(chan []byte, 1), Room: "barrier", UID: "barrier"}
	return client
}

func receive(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case msg := <-c.Send:
		return msg
	case <-time.After(time.Second):
		t.Fatalf("client %s received nothing", c.UID)
		return nil
	}
}

func TestHub_BroadcastReachesEveryRoomMember(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	alice := register(t, hub, "r1", "alice")
	bob := register(t, hub, "r1", "bob")
	outsider := register(t, hub, "r2", "carol")

	hub.BroadcastToRoom("r1", ServerMessage{Type: TypeRoomDeleted, RoomID: "r1"})

	gotAlice := receive(t, alice)
	gotBob := receive(t, bob)
	assert.Equal(t, gotAlice, gotBob, "every member must see the identical frame")

	select {
	case msg := <-outsider.Send:
		t.Fatalf("outsider received %s", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_SendToUserHitsEveryConnectionOfThatUser(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	tab1 := register(t, hub, "r1", "alice")
	tab2 := register(t, hub, "r1", "alice")
	bob := register(t, hub, "r1", "bob")

	hub.SendToUser("r1", "alice", ServerMessage{Type: TypeError, Error: "test"})

	require.NotEmpty(t, receive(t, tab1))
	require.NotEmpty(t, receive(t, tab2))

	select {
	case msg := <-bob.Send:
		t.Fatalf("bob received %s", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_UnregisterStopsDelivery(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	alice := register(t, hub, "r1", "alice")
	bob := register(t, hub, "r1", "bob")

	hub.Unregister <- alice
	// Unregister closes Send; drain the closed channel signal.
	require.Eventually(t, func() bool {
		select {
		case _, open := <-alice.Send:
			return !open
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)

	hub.BroadcastToRoom("r1", ServerMessage{Type: TypeRoomDeleted, RoomID: "r1"})
	require.NotEmpty(t, receive(t, bob))
}

func TestHub_FullBufferDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	slow := &Client{
		Hub:  hub,
		Send: make(chan []byte, 1),
		Room: "r1",
		UID:  "slow",
	}
	hub.Register <- slow

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			hub.BroadcastToRoom("r1", ServerMessage{Type: TypeError, Error: "flood"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a slow consumer")
	}
}
