package ws

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Hub tracks live connections. Chat fan-out does not go through the hub --
// every render flows from the store's live feed into each client's own
// session -- so the hub's job is connection accounting and reaping.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}

	ctx    context.Context
	cancel context.CancelFunc

	stats   HubStats
	statsMu sync.RWMutex

	cleanupTicker *time.Ticker
}

type HubStats struct {
	TotalClients     int       `json:"total_clients"`
	TotalConnections int64     `json:"total_connections"`
	LastReset        time.Time `json:"last_reset"`
}

func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	hub := &Hub{
		clients:       make(map[*Client]struct{}),
		ctx:           ctx,
		cancel:        cancel,
		stats:         HubStats{LastReset: time.Now()},
		cleanupTicker: time.NewTicker(1 * time.Minute),
	}

	go hub.cleanupRoutine()

	return hub
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	h.updateStats(func(stats *HubStats) {
		stats.TotalConnections++
	})

	log.Info().Str("connID", client.ID).Str("clientID", client.ClientID).Msg("ws: client registered")
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	delete(h.clients, client)
	h.mu.Unlock()

	log.Info().Str("connID", client.ID).Str("clientID", client.ClientID).Msg("ws: client unregistered")
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Stats() HubStats {
	h.statsMu.RLock()
	stats := h.stats
	h.statsMu.RUnlock()

	stats.TotalClients = h.ClientCount()
	return stats
}

func (h *Hub) updateStats(fn func(*HubStats)) {
	h.statsMu.Lock()
	fn(&h.stats)
	h.statsMu.Unlock()
}

func (h *Hub) cleanupRoutine() {
	defer h.cleanupTicker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case <-h.cleanupTicker.C:
			h.performCleanup()
		}
	}
}

func (h *Hub) performCleanup() {
	now := time.Now()
	inactiveThreshold := 2 * time.Minute

	var toRemove []*Client
	h.mu.RLock()
	for client := range h.clients {
		if !client.IsActive() || now.Sub(client.LastSeen()) > inactiveThreshold {
			toRemove = append(toRemove, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range toRemove {
		log.Info().Str("connID", client.ID).Msg("ws: cleaning up inactive client")
		client.Close()
	}

	if len(toRemove) > 0 {
		log.Debug().Int("cleaned", len(toRemove)).Msg("ws: cleanup routine completed")
	}
}

// Close shuts down the hub and every connection it tracks.
func (h *Hub) Close() {
	log.Info().Msg("ws: shutting down hub")

	h.cancel()

	h.mu.RLock()
	allClients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		allClients = append(allClients, client)
	}
	h.mu.RUnlock()

	for _, client := range allClients {
		client.Close()
	}

	log.Info().Int("clients", len(allClients)).Msg("ws: hub shutdown completed")
}
