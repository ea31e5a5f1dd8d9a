package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"flightboard-service/internal/domain/entity"
	"flightboard-service/internal/domain/failure"
	"flightboard-service/pkg/logger"
)

// PushClient receives flight updates from the /flightHub channel and merges
// them into a SyncStore. A broken connection simply ends Run; reconnecting
// is up to the caller.
type PushClient struct {
	ws     *websocket.Conn
	store  *SyncStore
	logger logger.Logger
}

// HubURL turns an http(s) base URL into the push channel URL
func HubURL(baseURL string) string {
	u := strings.TrimRight(baseURL, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/flightHub"
}

// DialPush connects to the push channel at hubURL
func DialPush(ctx context.Context, hubURL string, store *SyncStore, log logger.Logger) (*PushClient, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	ws, resp, err := dialer.DialContext(ctx, hubURL, http.Header{})
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("%w (HTTP %d)", err, resp.StatusCode)
		}
		return nil, failure.NewTransport("dial "+hubURL, err)
	}
	return &PushClient{ws: ws, store: store, logger: log}, nil
}

// Run merges every received update until the connection closes or ctx is
// cancelled. onMerge, when set, sees each merge outcome.
func (p *PushClient) Run(ctx context.Context, onMerge func(entity.FlightUpdated, MergeOutcome)) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = p.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = p.ws.Close()
		case <-stop:
		}
	}()

	for {
		_, message, err := p.ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return failure.NewTransport("flightHub", err)
		}
		var event entity.FlightUpdated
		if err := json.Unmarshal(message, &event); err != nil {
			p.logger.Warn("Skipping malformed push message", "error", err)
			continue
		}
		if event.Type != "" && event.Type != entity.FlightUpdatedType {
			continue
		}
		outcome := p.store.Merge(event.Flight)
		p.logger.Debug("Merged push", "flightNumber", event.Flight.FlightNumber, "outcome", outcome.String())
		if onMerge != nil {
			onMerge(event, outcome)
		}
	}
}

// Close closes the connection
func (p *PushClient) Close() error {
	return p.ws.Close()
}
