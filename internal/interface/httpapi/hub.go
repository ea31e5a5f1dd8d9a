package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"flightboard-service/internal/domain/failure"
	"flightboard-service/internal/infrastructure/broadcast"
	"flightboard-service/pkg/logger"
)

const (
	defaultWriteTimeout = 10 * time.Second
	defaultPingInterval = 30 * time.Second
)

// Subscriber hands out broadcast subscriptions
type Subscriber interface {
	Subscribe(name string) *broadcast.Subscription
}

// HubOptions configures the push endpoint
type HubOptions struct {
	AllowedOrigin string
	WriteTimeout  time.Duration
	PingInterval  time.Duration
}

// Hub upgrades requests to websockets and streams every published flight
// update as one JSON text message. There is no server-side filtering and no
// replay; what a client missed while disconnected is gone.
type Hub struct {
	subscriber   Subscriber
	upgrader     websocket.Upgrader
	writeTimeout time.Duration
	pingInterval time.Duration
	logger       logger.Logger
}

// NewHub creates the push endpoint
func NewHub(subscriber Subscriber, opts HubOptions, log logger.Logger) *Hub {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = defaultPingInterval
	}
	allowed := opts.AllowedOrigin
	return &Hub{
		subscriber: subscriber,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || originAllowed(allowed, origin) || origin == "http://"+r.Host || origin == "https://"+r.Host
			},
		},
		writeTimeout: opts.WriteTimeout,
		pingInterval: opts.PingInterval,
		logger:       log,
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the request
		h.logger.Warn("Websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer ws.Close()

	sub := h.subscriber.Subscribe(r.RemoteAddr)
	defer sub.Close()
	h.logger.Info("Push subscriber connected", "remote", r.RemoteAddr)

	// clients never send anything meaningful; reading detects the close
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(h.pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			h.logger.Info("Push subscriber disconnected", "remote", r.RemoteAddr, "dropped", sub.Dropped())
			return
		case event, ok := <-sub.C:
			if !ok {
				msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
				_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(h.writeTimeout))
				return
			}
			ws.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := ws.WriteJSON(event); err != nil {
				// a websocket write deadline cannot be recovered from
				h.logger.Warn("Push delivery failed",
					"remote", r.RemoteAddr,
					"eventId", event.ID,
					"error", failure.NewTransport("flightHub", err))
				return
			}
		case <-ping.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.writeTimeout)); err != nil {
				h.logger.Warn("Push ping failed", "remote", r.RemoteAddr, "error", failure.NewTransport("flightHub", err))
				return
			}
		}
	}
}
