package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"bazaar/core/events"
	"bazaar/core/types"
)

const (
	wsWriteTimeout    = 10 * time.Second
	wsSubscriberQueue = 256
	wsBacklogPage     = 500
)

// Hub fans committed events out to websocket subscribers. It is installed
// as (part of) the node's event sink.
type Hub struct {
	mu   sync.Mutex
	next uint64
	subs map[uint64]chan types.EventRecord
}

func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]chan types.EventRecord)}
}

// Emit implements events.Emitter. Subscribers that fall behind are dropped.
func (h *Hub) Emit(evt events.Event) {
	rec, ok := evt.(events.Recorded)
	if !ok {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		select {
		case ch <- rec.Record:
		default:
			close(ch)
			delete(h.subs, id)
		}
	}
}

// Subscribe registers a live feed. The returned cancel func is idempotent.
func (h *Hub) Subscribe() (<-chan types.EventRecord, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.next
	h.next++
	ch := make(chan types.EventRecord, wsSubscriberQueue)
	h.subs[id] = ch
	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if existing, ok := h.subs[id]; ok {
			close(existing)
			delete(h.subs, id)
		}
	}
}

func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	if s == nil || s.node == nil || s.hub == nil {
		http.Error(w, "node unavailable", http.StatusServiceUnavailable)
		return
	}
	var cursor uint64
	if raw := strings.TrimSpace(r.URL.Query().Get("cursor")); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			http.Error(w, "invalid cursor", http.StatusBadRequest)
			return
		}
		cursor = parsed
	}
	patterns := s.cfg.AllowedOrigins
	if len(patterns) == 0 {
		patterns = []string{"*"}
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: patterns})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")
	if err := s.streamEvents(r.Context(), conn, cursor); err != nil {
		if status := websocket.CloseStatus(err); status == -1 {
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

// streamEvents replays the log after cursor and then follows the hub. The
// live feed is attached first so nothing committed during the replay is
// missed; duplicates are skipped by sequence.
func (s *Server) streamEvents(ctx context.Context, conn *websocket.Conn, cursor uint64) error {
	updates, cancel := s.hub.Subscribe()
	defer cancel()

	last := cursor
	for {
		backlog, err := s.node.Events(last, wsBacklogPage)
		if err != nil {
			return err
		}
		for _, rec := range backlog {
			if err := writeEvent(ctx, conn, rec); err != nil {
				return err
			}
			last = rec.Sequence
		}
		if len(backlog) < wsBacklogPage {
			break
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case rec, ok := <-updates:
			if !ok {
				return conn.Close(websocket.StatusTryAgainLater, "subscriber too slow")
			}
			if rec.Sequence <= last {
				continue
			}
			if err := writeEvent(ctx, conn, rec); err != nil {
				return err
			}
			last = rec.Sequence
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, rec types.EventRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
