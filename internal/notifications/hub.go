package notifications

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"newsadvance/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	// Max connections per signed-in user
	maxConnsPerUser = 12
	// Max total connections
	maxTotalConns = 10000
)

var (
	ErrServerFull = errors.New("server connection limit reached")
	ErrUserFull   = errors.New("user connection limit reached")
)

// Hub fans thread events out to the clients watching each article, and reply
// notifications to the signed-in user's clients.
type Hub struct {
	mu         sync.RWMutex
	articles   map[uint]map[*Client]struct{}
	users      map[uint]map[*Client]struct{}
	totalConns int
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		articles: make(map[uint]map[*Client]struct{}),
		users:    make(map[uint]map[*Client]struct{}),
	}
}

// Name returns a human-readable identifier for this hub.
func (h *Hub) Name() string { return "thread hub" }

// Register adds a connection watching articleID. userID is 0 for anonymous
// readers.
func (h *Hub) Register(articleID, userID uint, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.totalConns >= maxTotalConns {
		return nil, ErrServerFull
	}
	if userID != 0 && len(h.users[userID]) >= maxConnsPerUser {
		return nil, ErrUserFull
	}

	client := NewClient(h, conn, articleID, userID)
	addClient(h.articles, articleID, client)
	if userID != 0 {
		addClient(h.users, userID, client)
	}
	h.totalConns++
	observability.WebSocketConnectionsTotal.Inc()
	return client, nil
}

// UnregisterClient removes a client and closes its send channel. Safe to call
// more than once.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !removeClient(h.articles, client.ArticleID, client) {
		return
	}
	if client.UserID != 0 {
		removeClient(h.users, client.UserID, client)
	}
	close(client.Send)
	h.totalConns--
	observability.WebSocketConnectionsTotal.Dec()
}

func addClient(index map[uint]map[*Client]struct{}, key uint, c *Client) {
	m, ok := index[key]
	if !ok {
		m = make(map[*Client]struct{})
		index[key] = m
	}
	m[c] = struct{}{}
}

func removeClient(index map[uint]map[*Client]struct{}, key uint, c *Client) bool {
	m, ok := index[key]
	if !ok {
		return false
	}
	if _, exists := m[c]; !exists {
		return false
	}
	delete(m, c)
	if len(m) == 0 {
		delete(index, key)
	}
	return true
}

// BroadcastArticle sends message to every client watching articleID.
func (h *Hub) BroadcastArticle(articleID uint, message string) {
	h.broadcast(h.articles, articleID, message)
}

// BroadcastUser sends message to every client signed in as userID.
func (h *Hub) BroadcastUser(userID uint, message string) {
	h.broadcast(h.users, userID, message)
}

func (h *Hub) broadcast(index map[uint]map[*Client]struct{}, key uint, message string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	data := []byte(message)
	for c := range index[key] {
		c.TrySend(data)
	}
}

// Watchers returns the number of clients watching articleID.
func (h *Hub) Watchers(articleID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.articles[articleID])
}

// StartWiring connects the Notifier to this hub: it subscribes to the Redis
// channels and forwards each message to the matching clients.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartPatternSubscriber(ctx, func(channel, payload string) {
		kind, id, ok := ParseChannel(channel)
		if !ok {
			observability.Logger.Warn("invalid notification channel", slog.String("channel", channel))
			return
		}
		switch kind {
		case ChannelArticle:
			h.BroadcastArticle(id, payload)
		case ChannelUser:
			h.BroadcastUser(id, payload)
		}
	})
}

// Shutdown closes every client's send channel; each WritePump then sends the
// close frame and closes its connection.
func (h *Hub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, clients := range h.articles {
		for client := range clients {
			close(client.Send)
		}
	}
	observability.WebSocketConnectionsTotal.Sub(float64(h.totalConns))
	h.articles = make(map[uint]map[*Client]struct{})
	h.users = make(map[uint]map[*Client]struct{})
	h.totalConns = 0
	return nil
}
