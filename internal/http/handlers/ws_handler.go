package handlers

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/fraudshield/backend/internal/auth"
	"github.com/fraudshield/backend/internal/config"
	"github.com/fraudshield/backend/internal/events"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// WSHub relays committed case events from redis to connected officer dashboards.
type WSHub struct {
	cfg         *config.Config
	subscriber  events.Subscriber
	log         *zap.Logger
	mu          sync.RWMutex
	connections map[string][]*websocket.Conn
}

func NewWSHub(cfg *config.Config, subscriber events.Subscriber, log *zap.Logger) *WSHub {
	return &WSHub{
		cfg:         cfg,
		subscriber:  subscriber,
		log:         log,
		connections: make(map[string][]*websocket.Conn),
	}
}

func (h *WSHub) Start(ctx context.Context) error {
	return h.subscriber.Subscribe(ctx, events.StreamCases, func(event events.Event) {
		h.broadcast(event)
	})
}

// broadcast runs on the single subscriber goroutine, so writes to one
// connection never interleave.
func (h *WSHub) broadcast(event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for officer, conns := range h.connections {
		for _, conn := range conns {
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.log.Debug("ws write failed", zap.String("officer", officer), zap.Error(err))
			}
		}
	}
}

// WSUpgradeMiddleware checks for websocket upgrade
func WSUpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

func (h *WSHub) HandleWS(conn *websocket.Conn) {
	tokenStr := conn.Query("token")
	if tokenStr == "" {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"missing token"}`))
		conn.Close()
		return
	}

	claims, err := auth.ParseJWT(h.cfg.JWTSecret, tokenStr)
	if err != nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"invalid token"}`))
		conn.Close()
		return
	}

	officer := claims.OfficerName

	h.mu.Lock()
	h.connections[officer] = append(h.connections[officer], conn)
	h.mu.Unlock()
	h.log.Debug("ws connected", zap.String("officer", officer))

	defer func() {
		h.mu.Lock()
		conns := h.connections[officer]
		for i, c := range conns {
			if c == conn {
				h.connections[officer] = append(conns[:i], conns[i+1:]...)
				break
			}
		}
		if len(h.connections[officer]) == 0 {
			delete(h.connections, officer)
		}
		h.mu.Unlock()
		conn.Close()
	}()

	// Clients only listen; reads keep the connection alive and detect close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
