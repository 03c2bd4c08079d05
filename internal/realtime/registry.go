// README: Session registry: subscriber groups per order plus rider availability.
package realtime

import (
	"sync"

	"kota/internal/types"
)

// Registry maps orders to the connections watching them and riders to their
// availability. It is an injected, process-scoped object; there are no package
// globals. Entries are independent, so a single RWMutex over plain maps is
// enough for the access pattern (many short reads, short writes).
type Registry struct {
	mu sync.RWMutex
	// groups holds the subscriber set per order; created on first subscribe,
	// deleted when the last member leaves.
	groups map[types.ID]map[*Conn]struct{}
	// membership is the reverse index used to detach a closing connection
	// from every group it belongs to.
	membership map[*Conn]map[types.ID]struct{}
	// available maps rider id -> connection flagged available for dispatch.
	available map[types.ID]*Conn
}

func NewRegistry() *Registry {
	return &Registry{
		groups:     make(map[types.ID]map[*Conn]struct{}),
		membership: make(map[*Conn]map[types.ID]struct{}),
		available:  make(map[types.ID]*Conn),
	}
}

func (r *Registry) Subscribe(c *Conn, orderID types.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groups[orderID]
	if !ok {
		g = make(map[*Conn]struct{})
		r.groups[orderID] = g
	}
	g[c] = struct{}{}

	m, ok := r.membership[c]
	if !ok {
		m = make(map[types.ID]struct{})
		r.membership[c] = m
	}
	m[orderID] = struct{}{}
}

func (r *Registry) Unsubscribe(c *Conn, orderID types.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(c, orderID)
}

// Disconnect removes the connection from every group and the availability map
// before returning, so no later publish can observe it.
func (r *Registry) Disconnect(c *Conn) {
	r.mu.Lock()
	for orderID := range r.membership[c] {
		r.removeLocked(c, orderID)
	}
	delete(r.membership, c)
	for riderID, conn := range r.available {
		if conn == c {
			delete(r.available, riderID)
		}
	}
	r.mu.Unlock()
	c.Close()
}

func (r *Registry) SetAvailable(riderID types.ID, c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.available[riderID] = c
}

func (r *Registry) SetUnavailable(riderID types.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.available, riderID)
}

// Subscribers snapshots the current group membership for an order.
func (r *Registry) Subscribers(orderID types.ID) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g := r.groups[orderID]
	out := make([]*Conn, 0, len(g))
	for c := range g {
		out = append(out, c)
	}
	return out
}

// AvailableConns snapshots every connection currently flagged available.
func (r *Registry) AvailableConns() []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Conn, 0, len(r.available))
	for _, c := range r.available {
		out = append(out, c)
	}
	return out
}

func (r *Registry) removeLocked(c *Conn, orderID types.ID) {
	if g, ok := r.groups[orderID]; ok {
		delete(g, c)
		if len(g) == 0 {
			delete(r.groups, orderID)
		}
	}
	if m, ok := r.membership[c]; ok {
		delete(m, orderID)
	}
}
