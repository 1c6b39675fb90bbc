package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"echoflow/internal/app/chat"
	"echoflow/internal/app/message"
	"echoflow/internal/app/thread"
	"echoflow/internal/utils"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

const (
	ActionSubscribeThreads    = "subscribe_threads"
	ActionSubscribeMessages   = "subscribe_messages"
	ActionUnsubscribeMessages = "unsubscribe_messages"

	EventThreads  = "threads"
	EventMessages = "messages"
	EventError    = "error"
)

type ClientConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v interface{}) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

type Request struct {
	Action   string `json:"action"`
	ThreadID string `json:"thread_id,omitempty"`
}

type Frame struct {
	Event    string      `json:"event"`
	ThreadID string      `json:"thread_id,omitempty"`
	Data     interface{} `json:"data"`
}

type Client struct {
	hub    *Hub
	conn   ClientConn
	ID     string
	UserID string

	send      chan Frame
	done      chan struct{}
	closeOnce sync.Once

	mu          sync.Mutex
	threadsSub  *utils.Subscription
	messagesSub *utils.Subscription
	noticesSub  *utils.Subscription
}

func newClient(hub *Hub, conn ClientConn, userID string) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		ID:     generateClientID(),
		UserID: userID,
		send:   make(chan Frame, sendBuffer),
		done:   make(chan struct{}),
	}
}

// enqueue never blocks. A client that cannot keep up is disconnected; it
// gets fresh snapshots when it reconnects.
func (c *Client) enqueue(frame Frame) {
	select {
	case <-c.done:
	case c.send <- frame:
	default:
		c.hub.logger.Warnw("Client send buffer full, closing", "client_id", c.ID)
		c.close()
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		for _, sub := range []*utils.Subscription{c.threadsSub, c.messagesSub, c.noticesSub} {
			if sub != nil {
				sub.Cancel()
			}
		}
		c.threadsSub, c.messagesSub, c.noticesSub = nil, nil, nil
		c.mu.Unlock()

		close(c.done)
		c.conn.Close()
	})
}

func (c *Client) subscribeNotices() {
	sub := c.hub.eventBus.Subscribe(chat.NotificationsTopic(c.UserID), func(e utils.Event) {
		c.enqueue(Frame{Event: e.Event, Data: e.Data})
	})
	c.mu.Lock()
	c.noticesSub = sub
	c.mu.Unlock()
}

func (c *Client) handle(req Request) {
	switch req.Action {
	case ActionSubscribeThreads:
		sub := c.hub.threadSvc.SubscribeThreadsForUser(c.UserID, func(threads []*thread.Thread) {
			c.enqueue(Frame{Event: EventThreads, Data: threads})
		})
		c.swap(&c.threadsSub, sub)

	case ActionSubscribeMessages:
		if req.ThreadID == "" {
			c.fail("thread_id is required")
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), writeWait)
		defer cancel()
		if _, err := c.hub.threadSvc.GetOwnedThread(ctx, c.UserID, req.ThreadID); err != nil {
			if errors.Is(err, thread.ErrThreadNotFound) {
				c.fail("thread not found")
				return
			}
			c.hub.logger.Errorw("Failed to check thread owner", "thread_id", req.ThreadID, "error", err)
			c.fail("internal error")
			return
		}
		threadID := req.ThreadID
		sub := c.hub.messageSvc.SubscribeMessagesForThread(threadID, func(messages []*message.Message) {
			c.enqueue(Frame{Event: EventMessages, ThreadID: threadID, Data: messages})
		})
		c.swap(&c.messagesSub, sub)

	case ActionUnsubscribeMessages:
		c.swap(&c.messagesSub, nil)

	default:
		c.fail("unknown action")
	}
}

// swap replaces *slot with sub and cancels the previous subscription.
func (c *Client) swap(slot **utils.Subscription, sub *utils.Subscription) {
	c.mu.Lock()
	select {
	case <-c.done:
		c.mu.Unlock()
		if sub != nil {
			sub.Cancel()
		}
		return
	default:
	}
	prev := *slot
	*slot = sub
	c.mu.Unlock()

	if prev != nil {
		prev.Cancel()
	}
}

func (c *Client) fail(msg string) {
	c.enqueue(Frame{Event: EventError, Data: map[string]string{"error": msg}})
}

func (c *Client) readPump() {
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debugw("WebSocket read failed", "client_id", c.ID, "error", err)
			}
			return
		}

		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			c.fail("invalid request")
			continue
		}
		c.handle(req)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(frame); err != nil {
				c.hub.logger.Debugw("WebSocket write failed", "client_id", c.ID, "error", err)
				c.close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.close()
				return
			}
		}
	}
}
