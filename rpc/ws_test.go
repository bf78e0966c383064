package rpc

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"bazaar/core/events"
	"bazaar/core/types"
	"bazaar/native/marketplace"
)

func TestHubDropsSlowSubscribers(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe()
	defer cancel()

	for i := 0; i <= wsSubscriberQueue; i++ {
		hub.Emit(events.Recorded{Record: types.EventRecord{Sequence: uint64(i + 1), Type: "token.transfer"}})
	}
	drained := 0
	for range ch {
		drained++
	}
	require.Equal(t, wsSubscriberQueue, drained)
	// Cancelling after the hub dropped the subscriber is harmless.
	cancel()
}

func TestEventStreamReplaysThenFollows(t *testing.T) {
	node := newTestNode(t)
	hub := NewHub()
	node.SetEventSink(hub)
	srv := httptest.NewServer(NewServer(node, Config{AuthToken: testToken}, WithHub(hub)).Handler())
	defer srv.Close()

	_, err := node.CreateListing(coreCaller(seller), marketplace.ListingParams{Units: 1})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?cursor=0"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "done")

	read := func() types.EventRecord {
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)
		var rec types.EventRecord
		require.NoError(t, json.Unmarshal(data, &rec))
		return rec
	}
	first := read()
	require.Equal(t, uint64(1), first.Sequence)
	require.Equal(t, marketplace.EventTypeListingCreated, first.Type)

	_, err = node.CreateListing(coreCaller(seller), marketplace.ListingParams{Units: 3})
	require.NoError(t, err)
	second := read()
	require.Equal(t, uint64(2), second.Sequence)
}
