package handlers

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/yoockh/yoomeet/internal/queue"
	"github.com/yoockh/yoomeet/internal/services"
)

// StatusSubscriber delivers the payloads published on one channel until closed.
type StatusSubscriber interface {
	Subscribe(ctx context.Context, channel string) (msgs <-chan string, closeFn func() error)
}

type RedisSubscriber struct {
	Redis *redis.Client
}

func (s RedisSubscriber) Subscribe(ctx context.Context, channel string) (<-chan string, func() error) {
	pubsub := s.Redis.Subscribe(ctx, channel)
	out := make(chan string)
	go func() {
		defer close(out)
		for m := range pubsub.Channel() {
			select {
			case out <- m.Payload:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, pubsub.Close
}

type WSHandler struct {
	meetings services.MeetingService
	sub      StatusSubscriber
	upgrader websocket.Upgrader
}

func NewWSHandler(meetings services.MeetingService, sub StatusSubscriber, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		meetings: meetings,
		sub:      sub,
		upgrader: websocket.Upgrader{CheckOrigin: originChecker(allowedOrigins)},
	}
}

// originChecker accepts same-host requests and the listed origins. An empty list
// accepts every origin.
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(strings.ToLower(strings.TrimSpace(o)), "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if len(set) == 0 || origin == "" {
			return true
		}
		if _, ok := set[strings.ToLower(origin)]; ok {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
}

type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) writeText(b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.c.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.c.WriteMessage(websocket.TextMessage, b)
}

func (w *wsConn) ping() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.c.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second))
}

// MeetingStatusWS forwards summary progress for one meeting. Client messages are
// read only to notice the close.
func (h *WSHandler) MeetingStatusWS(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	meetingID := c.Param("meeting_id")
	if _, err := h.meetings.Get(c.Request.Context(), userID, meetingID); err != nil {
		writeError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrade already wrote response in most cases
		return
	}
	defer conn.Close()

	wc := &wsConn{c: conn}
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	msgs, closeSub := h.sub.Subscribe(ctx, queue.StatusChannel(meetingID))
	defer closeSub()

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-readDone:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := wc.ping(); err != nil {
				return
			}
		case m, ok := <-msgs:
			if !ok {
				return
			}
			if err := wc.writeText([]byte(m)); err != nil {
				return
			}
		}
	}
}
