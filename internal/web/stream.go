package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"oasis.ledger/oasis/internal/events"
	"oasis.ledger/oasis/internal/logger"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// broker fans encoded ledger events out to stream clients. It holds the
// only bus subscription of the server.
type broker struct {
	mu      sync.RWMutex
	clients map[chan []byte]struct{}
}

func newBroker() *broker {
	return &broker{
		clients: make(map[chan []byte]struct{}),
	}
}

func (b *broker) register(client chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clients[client] = struct{}{}
}

func (b *broker) unregister(client chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[client]; ok {
		delete(b.clients, client)
		close(client)
	}
}

func (b *broker) broadcast(data []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for client := range b.clients {
		select {
		case client <- data:
		default:
			// slow client, drop
		}
	}
}

func (b *broker) publish(e events.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	b.broadcast(data)
}

func (b *broker) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for client := range b.clients {
		delete(b.clients, client)
		close(client)
	}
}

// history returns the last n events oldest first, encoded.
func (s *Server) history(n int) [][]byte {
	recent := s.bus.Recent(n)
	out := make([][]byte, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		if data, err := json.Marshal(recent[i]); err == nil {
			out = append(out, data)
		}
	}
	return out
}

// handleEventsWS streams ledger events over a WebSocket, starting with the
// recent history.
func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	client := make(chan []byte, 64)
	s.broker.register(client)
	defer s.broker.unregister(client)

	for _, data := range s.history(countParam(r, 50)) {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}

	// Reads only detect the peer going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-closed:
			return
		case data, ok := <-client:
			if !ok {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}
}

// handleEventsStream streams ledger events as server-sent events.
func (s *Server) handleEventsStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	client := make(chan []byte, 64)
	s.broker.register(client)
	defer s.broker.unregister(client)

	for _, data := range s.history(countParam(r, 0)) {
		fmt.Fprintf(w, "data: %s\n\n", data)
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case data, ok := <-client:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

// handleStatusWS streams log messages over a WebSocket, oldest first.
func (s *Server) handleStatusWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	initialLogs := s.ring.GetRecent(50)
	for i := len(initialLogs) - 1; i >= 0; i-- {
		if err := conn.WriteJSON(initialLogs[i]); err != nil {
			return
		}
	}

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	var lastLogTime time.Time
	if len(initialLogs) > 0 {
		lastLogTime = initialLogs[0].Timestamp
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			var newLogs []logger.Message
			for _, msg := range s.ring.GetRecent(20) {
				if msg.Timestamp.After(lastLogTime) {
					newLogs = append(newLogs, msg)
				}
			}
			for i := len(newLogs) - 1; i >= 0; i-- {
				msg := newLogs[i]
				if err := conn.WriteJSON(msg); err != nil {
					return
				}
				lastLogTime = msg.Timestamp
			}
		}
	}
}

func countParam(r *http.Request, def int) int {
	var n int
	if _, err := fmt.Sscanf(r.URL.Query().Get("n"), "%d", &n); err != nil || n < 0 {
		return def
	}
	return n
}
