package realtime

import (
	"sync"
)

// Hub fans change-feed payloads out to websocket subscribers. Subscribers
// declare interest per table; a payload for a table reaches every
// connection subscribed to it.
type Hub struct {
	mu        sync.RWMutex
	conns     map[string]*Connection            // connID -> connection
	interests map[string]map[string]*Connection // table -> connID -> connection
	connTabs  map[string]map[string]struct{}    // connID -> set of tables
}

// NewHub constructs an initialized Hub.
func NewHub() *Hub {
	return &Hub{
		conns:     make(map[string]*Connection),
		interests: make(map[string]map[string]*Connection),
		connTabs:  make(map[string]map[string]struct{}),
	}
}

// Attach registers a connection and starts its write loop.
func (h *Hub) Attach(conn *Connection) {
	h.mu.Lock()
	h.conns[conn.ID] = conn
	h.connTabs[conn.ID] = make(map[string]struct{})
	h.mu.Unlock()

	conn.Start()
}

// Detach removes a connection and all its table interests.
func (h *Hub) Detach(conn *Connection) {
	h.mu.Lock()
	h.detachLocked(conn.ID)
	h.mu.Unlock()
}

// Subscribe adds a table interest for the connection.
func (h *Hub) Subscribe(table string, conn *Connection) {
	if table == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[conn.ID]; !ok {
		return
	}
	set := h.interests[table]
	if set == nil {
		set = make(map[string]*Connection)
		h.interests[table] = set
	}
	set[conn.ID] = conn
	h.connTabs[conn.ID][table] = struct{}{}
}

// Broadcast delivers payload to every connection interested in the table
// and reports how many got it.
func (h *Hub) Broadcast(table string, payload []byte) int {
	h.mu.RLock()
	set := h.interests[table]
	targets := make([]*Connection, 0, len(set))
	for _, conn := range set {
		targets = append(targets, conn)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, conn := range targets {
		if err := conn.Send(payload); err == nil {
			delivered++
		}
	}
	return delivered
}

// Close terminates all tracked connections.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := make([]*Connection, 0, len(h.conns))
	for _, conn := range h.conns {
		conns = append(conns, conn)
	}
	h.conns = make(map[string]*Connection)
	h.interests = make(map[string]map[string]*Connection)
	h.connTabs = make(map[string]map[string]struct{})
	h.mu.Unlock()

	for _, conn := range conns {
		conn.Close(1001, "hub shutdown")
	}
}

func (h *Hub) detachLocked(connID string) {
	if _, ok := h.conns[connID]; !ok {
		return
	}
	delete(h.conns, connID)
	for table := range h.connTabs[connID] {
		if set := h.interests[table]; set != nil {
			delete(set, connID)
			if len(set) == 0 {
				delete(h.interests, table)
			}
		}
	}
	delete(h.connTabs, connID)
}
