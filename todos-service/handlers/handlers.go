package handlers

import (
	"encoding/json"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/chepyr/magna-todo/shared"
	"github.com/chepyr/magna-todo/shared/models"
	"github.com/chepyr/magna-todo/todos-service/db"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

type Handler struct {
	TodoRepo    db.TodoRepositoryInterface
	Images      *ImageStore
	RateLimiter *RateLimiter
	WSHub       *WSHub
	Log         zerolog.Logger
}

// Routes registers every endpoint of the service on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/api/todos", h.HandleTodos)
	mux.HandleFunc("/api/todos/", h.HandleTodoByID)
	mux.HandleFunc("/support/ticket", h.HandleTicket)
	mux.Handle(uploadsPrefix, h.Images.Handler())
	mux.HandleFunc("/ws", h.HandleWebSocket)
}

type WSHub struct {
	connections map[*websocket.Conn]*wsClient
	mutex       sync.Mutex
}

// wsClient serializes writes to one connection.
type wsClient struct {
	conn  *websocket.Conn
	mutex sync.Mutex
}

func NewWSHub() *WSHub {
	return &WSHub{connections: make(map[*websocket.Conn]*wsClient)}
}

// Count returns the number of live subscribers.
func (h *WSHub) Count() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.connections)
}

// Broadcast sends a todo event to every websocket subscriber. Connections
// that fail to take the message are dropped. The hub lock is only held to
// snapshot the subscribers, so a slow client never blocks the others.
func (h *WSHub) Broadcast(event string, todo *models.Task) error {
	message, err := json.Marshal(models.Event{Event: event, Todo: *todo})
	if err != nil {
		return err
	}

	h.mutex.Lock()
	clients := make([]*wsClient, 0, len(h.connections))
	for _, c := range h.connections {
		clients = append(clients, c)
	}
	h.mutex.Unlock()

	for _, c := range clients {
		if err := c.write(message); err != nil {
			h.remove(c.conn)
		}
	}
	return nil
}

func (c *wsClient) write(message []byte) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteMessage(websocket.TextMessage, message)
}

func (h *WSHub) add(conn *websocket.Conn) {
	h.mutex.Lock()
	h.connections[conn] = &wsClient{conn: conn}
	h.mutex.Unlock()
}

func (h *WSHub) remove(conn *websocket.Conn) {
	h.mutex.Lock()
	delete(h.connections, conn)
	h.mutex.Unlock()
	conn.Close()
}

func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{CheckOrigin: checkOrigin}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client
		h.Log.Warn().Err(err).Str("ip", clientIP(r)).Msg("websocket upgrade failed")
		return
	}
	h.WSHub.add(conn)

	// subscribers only listen; reading detects the hang-up
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.WSHub.remove(conn)
			return
		}
	}
}

func (h *Handler) broadcast(event string, todo *models.Task) {
	if h.WSHub == nil {
		return
	}
	if err := h.WSHub.Broadcast(event, todo); err != nil {
		h.Log.Error().Err(err).Str("todo_id", todo.ID).Msg("failed to broadcast todo event")
	}
}

type RateLimiter struct {
	attempts map[string]int
	limit    int
	mutex    sync.Mutex
	window   time.Duration
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		attempts: make(map[string]int),
		limit:    limit,
		window:   window,
	}
	go rl.cleanup()
	return rl
}

func (rl *RateLimiter) Allow(ip string) bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	count, exists := rl.attempts[ip]
	if !exists {
		rl.attempts[ip] = 1
		return true
	}
	if count >= rl.limit {
		return false
	}
	rl.attempts[ip]++
	return true
}

// reset the attempts map every window duration
func (rl *RateLimiter) cleanup() {
	for range time.Tick(rl.window) {
		rl.mutex.Lock()
		rl.attempts = make(map[string]int)
		rl.mutex.Unlock()
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// an empty ALLOWED_ORIGINS allows every origin
func checkOrigin(r *http.Request) bool {
	allowed := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS"))
	origin := r.Header.Get("Origin")
	if allowed == "" || origin == "" {
		return true
	}
	for _, o := range strings.Split(allowed, ",") {
		if strings.TrimSpace(o) == origin {
			return true
		}
	}
	return false
}

func sendError(w http.ResponseWriter, msg string, code int) {
	shared.SendError(w, msg, code)
}
