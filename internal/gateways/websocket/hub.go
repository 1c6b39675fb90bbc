package websocket

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"sync/atomic"

	"echoflow/internal/app/identity"
	"echoflow/internal/app/message"
	"echoflow/internal/app/thread"
	"echoflow/internal/metrics"
	"echoflow/internal/utils"

	"go.uber.org/zap"
)

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*identity.Identity, error)
}

func generateClientID() string {
	bytes := make([]byte, 6)
	if _, err := rand.Read(bytes); err != nil {
		return "xxxxx"
	}
	return base64.URLEncoding.EncodeToString(bytes)
}

// Hub tracks connected clients. Each client owns its subscriptions; the
// hub only needs to close them on shutdown.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	count      atomic.Int64

	auth       Authenticator
	threadSvc  thread.Service
	messageSvc message.Service
	eventBus   *utils.EventBus
	logger     *zap.SugaredLogger
}

func NewHub(
	auth Authenticator,
	threadSvc thread.Service,
	messageSvc message.Service,
	eventBus *utils.EventBus,
	logger *zap.Logger,
) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
		auth:       auth,
		threadSvc:  threadSvc,
		messageSvc: messageSvc,
		eventBus:   eventBus,
		logger:     logger.Sugar(),
	}
}

// Run serves register/unregister until ctx is done, then closes every
// client.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("WebSocket Hub started")

	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.count.Store(int64(len(h.clients)))
			metrics.WebsocketConnections.Inc()
			h.logger.Infow("Client connected",
				"client_id", client.ID,
				"user_id", client.UserID,
				"clients_count", len(h.clients),
			)

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				h.count.Store(int64(len(h.clients)))
				metrics.WebsocketConnections.Dec()
				h.logger.Infow("Client disconnected",
					"client_id", client.ID,
					"clients_count", len(h.clients),
				)
			}

		case <-ctx.Done():
			for client := range h.clients {
				client.close()
				metrics.WebsocketConnections.Dec()
			}
			h.clients = make(map[*Client]bool)
			h.count.Store(0)
			close(h.done)
			h.logger.Info("WebSocket Hub stopped")
			return
		}
	}
}

func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

func (h *Hub) add(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) remove(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}
