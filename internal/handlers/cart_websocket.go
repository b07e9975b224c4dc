package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"shopfront_back_end/internal/logging"
	"shopfront_back_end/internal/middleware"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
)

type CartSubscriber interface {
	Subscribe(ctx context.Context, userID string) *redis.PubSub
}

// CartSocket pushes the caller's cart every time it changes.
type CartSocket struct {
	carts    Carts
	subs     CartSubscriber
	upgrader websocket.Upgrader
}

// NewCartSocket accepts handshakes from allowedOrigins only. Requests without
// an Origin header (non-browser clients) are accepted.
func NewCartSocket(carts Carts, subs CartSubscriber, allowedOrigins []string) *CartSocket {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}
	return &CartSocket{
		carts: carts,
		subs:  subs,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				_, ok := allowed[origin]
				return ok
			},
		},
	}
}

type cartMessage struct {
	Type     string `json:"type"`
	Event    string `json:"event,omitempty"`
	CartData any    `json:"cartData"`
}

func (s *CartSocket) Serve(c *gin.Context) {
	userID := middleware.UserID(c)
	log := logging.FromContext(c.Request.Context()).With("user_id", userID)

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// subscribe before the upgrade so no change slips between the snapshot and the stream
	pubsub := s.subs.Subscribe(ctx, userID)
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		respondError(c, err)
		return
	}

	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn("cart websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	if err := writeJSON(conn, cartMessage{Type: "cart", CartData: cart}); err != nil {
		return
	}

	// the reader only drains control frames and notices the client leaving
	go func() {
		defer cancel()
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	updates := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-updates:
			if !ok {
				return
			}
			cart, err := s.carts.Get(ctx, userID)
			if err != nil {
				log.Warn("cart refresh failed", "error", err)
				continue
			}
			if err := writeJSON(conn, cartMessage{Type: "cart_updated", Event: msg.Payload, CartData: cart}); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(v)
}
