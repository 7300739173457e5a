package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/weiawesome/ttv-relay/internal/config"
	"github.com/weiawesome/ttv-relay/internal/hub"
	"github.com/weiawesome/ttv-relay/internal/protocol"
	"github.com/weiawesome/ttv-relay/internal/service"
	"github.com/weiawesome/ttv-relay/pkg/log"
)

// Handshake headers.
const (
	HeaderClientID      = "X-Client-Id"
	HeaderContributorID = "X-Twitch-Id"
	HeaderRoomID        = "X-Room-Id"
)

var (
	ErrMissingHeader   = errors.New("missing handshake header")
	ErrInvalidClientID = errors.New("client id is not a uuid")
)

// SessionFromRequest validates the handshake headers. The client id is
// returned in canonical uuid form.
func SessionFromRequest(r *http.Request) (hub.Session, error) {
	values := make(map[string]string, 3)
	for _, name := range []string{HeaderClientID, HeaderContributorID, HeaderRoomID} {
		v := strings.TrimSpace(r.Header.Get(name))
		if v == "" {
			return hub.Session{}, fmt.Errorf("%w: %s", ErrMissingHeader, name)
		}
		values[name] = v
	}

	id, err := uuid.Parse(values[HeaderClientID])
	if err != nil {
		return hub.Session{}, fmt.Errorf("%w: %v", ErrInvalidClientID, err)
	}

	return hub.Session{
		ClientID:      id.String(),
		ContributorID: values[HeaderContributorID],
		RoomID:        values[HeaderRoomID],
	}, nil
}

// WSHandler accepts relay connections and dispatches their messages.
type WSHandler struct {
	hub      *hub.Hub
	service  service.RelayService
	wsCfg    config.WebSocketConfig
	upgrader websocket.Upgrader
	metrics  *handlerMetrics
}

func NewWSHandler(h *hub.Hub, svc service.RelayService, wsCfg config.WebSocketConfig, reg prometheus.Registerer) *WSHandler {
	handler := &WSHandler{
		hub:     h,
		service: svc,
		wsCfg:   wsCfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	if reg != nil {
		handler.metrics = newHandlerMetrics(reg)
	}
	return handler
}

// HandleWebSocket rejects a bad handshake with 401 before upgrading.
func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	session, err := SessionFromRequest(r)
	if err != nil {
		l := log.Ctx(r.Context())
		l.Warn().Err(err).Msg("handshake rejected")
		if h.metrics != nil {
			h.metrics.handshakeRejected.Inc()
		}
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		l := log.Ctx(r.Context())
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	// The request context ends when this handler returns; the connection
	// outlives it.
	client := hub.NewClient(context.WithoutCancel(r.Context()), session, h.hub, conn, h.wsCfg)

	if err := h.hub.Register(client); err != nil {
		l := log.Ctx(client.Context())
		l.Warn().Err(err).Msg("register failed")
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump(h.handleMessage)
}

func (h *WSHandler) handleMessage(c *hub.Client, data []byte) {
	ctx := c.Context()
	l := log.Ctx(ctx)

	msg, err := protocol.Decode(data)
	if err != nil {
		l.Warn().Err(err).Msg("dropping malformed message")
		h.drop("malformed")
		return
	}
	h.received(msg.MessageType())

	switch m := msg.(type) {
	case *protocol.ClientCreatePoll:
		err = h.service.HandleCreatePoll(ctx, c.Session, m)
	case *protocol.ClientPollProgress:
		err = h.service.HandlePollProgress(ctx, c.Session, m)
	case *protocol.ClientPollFinished:
		err = h.service.HandlePollFinished(ctx, c.Session, m)
	case *protocol.ClientCreateReward:
		err = h.service.HandleCreateReward(ctx, c.Session, m)
	case *protocol.ClientDeleteReward:
		err = h.service.HandleDeleteReward(ctx, c.Session, m)
	case *protocol.ClientUpdateRewards:
		err = h.service.HandleUpdateRewards(ctx, c.Session, m)
	case *protocol.RewardRedeemed:
		err = h.service.HandleRewardRedeemed(ctx, c.Session, m)
	case *protocol.Unrecognized:
		l.Warn().Str(log.FieldMessageType, string(m.Type)).Msg("dropping unknown message type")
		h.drop("unknown_type")
		return
	default:
		l.Warn().Str(log.FieldMessageType, string(msg.MessageType())).Msg("dropping server message sent by client")
		h.drop("unexpected_type")
		return
	}

	if err != nil {
		l.Warn().Err(err).Str(log.FieldMessageType, string(msg.MessageType())).Msg("request dropped")
		h.drop("rejected")
	}
}

func (h *WSHandler) received(t protocol.MessageType) {
	if h.metrics != nil {
		h.metrics.received.WithLabelValues(string(t)).Inc()
	}
}

func (h *WSHandler) drop(reason string) {
	if h.metrics != nil {
		h.metrics.dropped.WithLabelValues(reason).Inc()
	}
}
