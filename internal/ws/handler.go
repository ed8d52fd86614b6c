package ws

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/parley-chat/parley/internal/directory"
	"github.com/parley-chat/parley/internal/identity"
	"github.com/parley-chat/parley/internal/session"
	"github.com/parley-chat/parley/internal/store"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// TODO: tighten origin checking before exposing outside a trusted edge
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades connections, authenticates the client identity and wires
// a session per connection.
type Handler struct {
	hub      *Hub
	ids      *identity.Provider
	dir      directory.Directory
	digester *directory.Digester
	msgs     store.MessageStoreContract
	parts    store.ParticipantStoreContract
	cfg      session.Config

	MaxConnections   int
	ConnectionsPerIP int

	ipMu      sync.Mutex
	ipClients map[string]int
}

func NewHandler(hub *Hub, ids *identity.Provider, dir directory.Directory, digester *directory.Digester,
	msgs store.MessageStoreContract, parts store.ParticipantStoreContract, cfg session.Config) *Handler {
	return &Handler{
		hub:              hub,
		ids:              ids,
		dir:              dir,
		digester:         digester,
		msgs:             msgs,
		parts:            parts,
		cfg:              cfg,
		MaxConnections:   10000,
		ConnectionsPerIP: 20,
		ipClients:        make(map[string]int),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.hub.ClientCount() >= h.MaxConnections {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	ip := clientIP(r)
	if !h.admitIP(ip) {
		http.Error(w, "too many connections from this address", http.StatusTooManyRequests)
		return
	}

	clientID, err := h.ids.Verify(tokenFromRequest(r))
	if err != nil {
		h.releaseIP(ip)
		log.Warn().Err(err).Str("ip", ip).Msg("ws: rejected connection")
		http.Error(w, "invalid identity token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.releaseIP(ip)
		log.Error().Err(err).Msg("ws: upgrade failed")
		return
	}

	ctx, cancel := context.WithCancel(h.hub.ctx)
	client := &Client{
		ID:       uuid.New().String(),
		ClientID: clientID,
		Conn:     conn,
		Send:     make(chan []byte, 256),
		hub:      h.hub,
		ctx:      ctx,
		cancel:   cancel,
	}
	client.session = session.New(ctx, clientID, h.dir, h.digester, h.msgs, h.parts, newClientView(client), h.cfg)

	go func() {
		<-ctx.Done()
		h.releaseIP(ip)
	}()

	h.hub.Register(client)
	client.Start()
}

func (h *Handler) admitIP(ip string) bool {
	h.ipMu.Lock()
	defer h.ipMu.Unlock()
	if h.ConnectionsPerIP > 0 && h.ipClients[ip] >= h.ConnectionsPerIP {
		return false
	}
	h.ipClients[ip]++
	return true
}

func (h *Handler) releaseIP(ip string) {
	h.ipMu.Lock()
	h.ipClients[ip]--
	if h.ipClients[ip] <= 0 {
		delete(h.ipClients, ip)
	}
	h.ipMu.Unlock()
}

func tokenFromRequest(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
	}
	return r.URL.Query().Get("token")
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		return strings.TrimSpace(ips[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}
