package hub

import (
	"context"
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/weiawesome/ttv-relay/internal/mailbox"
	"github.com/weiawesome/ttv-relay/pkg/log"
)

// ErrHubStopped is returned when registering with a hub whose loop exited.
var ErrHubStopped = errors.New("hub stopped")

// Attacher binds live connections to outbound delivery.
type Attacher interface {
	Attach(clientID string, conn mailbox.Conn)
	Detach(clientID string, conn mailbox.Conn)
	Flush(clientID string)
}

// Hub is the connection registry: at most one live client per client id.
// Register and unregister are serialized through Run.
type Hub struct {
	clients    map[string]*Client // clientID -> client
	listeners  []Listener
	mailbox    Attacher
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
	metrics    *hubMetrics
}

func NewHub(mb Attacher, reg prometheus.Registerer) *Hub {
	h := &Hub{
		clients:    make(map[string]*Client),
		mailbox:    mb,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
	if reg != nil {
		h.metrics = newHubMetrics(reg)
	}
	return h
}

// AddListener appends l to the notification order. Call before Run.
func (h *Hub) AddListener(l Listener) {
	h.listeners = append(h.listeners, l)
}

func (h *Hub) Run(ctx context.Context) {
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.handleRegister(client)
			close(client.registered)

		case client := <-h.unregister:
			h.handleUnregister(client)
		}
	}
}

// Register hands client to the run loop and returns once it is attached
// and listeners have been notified.
func (h *Hub) Register(client *Client) error {
	select {
	case h.register <- client:
	case <-h.done:
		return ErrHubStopped
	}
	select {
	case <-client.registered:
		return nil
	case <-h.done:
		return ErrHubStopped
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
		client.close()
	}
}

// Connected reports whether clientID has a live connection.
func (h *Hub) Connected(clientID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[clientID]
	return ok
}

// Len returns the number of live connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Done is closed once the run loop has exited.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// refill pulls frames the mailbox still holds for client once its send
// buffer has drained.
func (h *Hub) refill(client *Client) {
	h.mailbox.Flush(client.ID())
}

func (h *Hub) handleRegister(client *Client) {
	id := client.ID()

	h.mu.Lock()
	old := h.clients[id]
	h.clients[id] = client
	h.mu.Unlock()

	l := log.Ctx(client.ctx)
	if old != nil && old != client {
		old.close()
		if h.metrics != nil {
			h.metrics.superseded.Inc()
		}
		l.Info().Msg("connection superseded by a newer one")
	} else if h.metrics != nil {
		h.metrics.connections.Inc()
	}
	if h.metrics != nil {
		h.metrics.accepted.Inc()
	}

	h.mailbox.Attach(id, client)
	for _, lis := range h.listeners {
		lis.OnConnected(client.ctx, client.Session)
	}
	l.Debug().Msg("client registered")
}

func (h *Hub) handleUnregister(client *Client) {
	id := client.ID()

	h.mu.Lock()
	cur, ok := h.clients[id]
	current := ok && cur == client
	if current {
		delete(h.clients, id)
	}
	h.mu.Unlock()

	client.close()
	if !current {
		return
	}
	if h.metrics != nil {
		h.metrics.connections.Dec()
	}

	h.mailbox.Detach(id, client)
	for _, lis := range h.listeners {
		lis.OnDisconnected(client.ctx, client.Session)
	}
	l := log.Ctx(client.ctx)
	l.Debug().Msg("client unregistered")
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]*Client)
	h.mu.Unlock()

	for id, client := range clients {
		client.close()
		h.mailbox.Detach(id, client)
	}
	if h.metrics != nil {
		h.metrics.connections.Set(0)
	}
	close(h.done)

	l := log.L()
	l.Info().Int("closed", len(clients)).Msg("hub stopped")
}
