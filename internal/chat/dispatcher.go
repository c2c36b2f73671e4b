package chat

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Conn is one live realtime connection as seen by the Dispatcher.
// Send must not block: it enqueues payload and reports whether it was accepted.
type Conn interface {
	ID() string
	Send(payload []byte) bool
	Close()
}

// Dispatcher delivers events to the connections currently registered against
// a room id. It knows nothing about the transport behind Conn.
type Dispatcher struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]Conn
	conns  map[string]Conn
	roomOf map[string]string
	log    *slog.Logger
}

// NewDispatcher returns a Dispatcher with no registered connections.
func NewDispatcher(log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		rooms:  make(map[string]map[string]Conn),
		conns:  make(map[string]Conn),
		roomOf: make(map[string]string),
		log:    log,
	}
}

// Register binds conn to roomID. A connection already registered under the
// same id is replaced and closed, since a session is owned by one connection.
func (d *Dispatcher) Register(roomID string, conn Conn) {
	d.mu.Lock()
	previous, replaced := d.conns[conn.ID()]
	if replaced && previous != conn {
		d.removeLocked(previous)
	}
	d.conns[conn.ID()] = conn
	d.roomOf[conn.ID()] = roomID
	members, ok := d.rooms[roomID]
	if !ok {
		members = make(map[string]Conn)
		d.rooms[roomID] = members
	}
	members[conn.ID()] = conn
	count := len(members)
	d.mu.Unlock()

	if replaced && previous != conn {
		d.log.Info("Connection replaced by a newer one for the same session", "conn", conn.ID(), "room", roomID)
		previous.Close()
	}
	d.log.Debug("Connection registered", "conn", conn.ID(), "room", roomID, "room_connections", count)
}

// Unregister removes conn if it is the connection currently registered under
// its id. It reports whether anything was removed.
func (d *Dispatcher) Unregister(conn Conn) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	current, ok := d.conns[conn.ID()]
	if !ok || current != conn {
		return false
	}
	d.removeLocked(conn)
	return true
}

func (d *Dispatcher) removeLocked(conn Conn) {
	id := conn.ID()
	roomID := d.roomOf[id]
	delete(d.conns, id)
	delete(d.roomOf, id)
	if members, ok := d.rooms[roomID]; ok {
		delete(members, id)
		if len(members) == 0 {
			delete(d.rooms, roomID)
		}
	}
}

// BroadcastToRoom sends event to every connection registered against roomID
// and returns how many accepted it. Connections that cannot keep up are closed;
// their own disconnect path unregisters them.
func (d *Dispatcher) BroadcastToRoom(roomID string, event Event) int {
	payload, ok := d.encode(event)
	if !ok {
		return 0
	}

	conns := d.snapshot(roomID)
	delivered := 0
	var failed []Conn
	for _, conn := range conns {
		if conn.Send(payload) {
			delivered++
			continue
		}
		failed = append(failed, conn)
	}

	d.log.Debug("Broadcast", "room", roomID, "event", event.Name, "delivered", delivered, "targets", len(conns))
	d.closeFailed(failed)
	return delivered
}

// SendToConnection delivers event to the single connection registered under connID.
func (d *Dispatcher) SendToConnection(connID string, event Event) bool {
	d.mu.RLock()
	conn, ok := d.conns[connID]
	d.mu.RUnlock()
	if !ok {
		return false
	}

	payload, ok := d.encode(event)
	if !ok {
		return false
	}
	if !conn.Send(payload) {
		d.closeFailed([]Conn{conn})
		return false
	}
	return true
}

// Count returns the number of connections registered against roomID.
func (d *Dispatcher) Count(roomID string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.rooms[roomID])
}

// Close closes every registered connection. Each connection unregisters itself
// as its disconnect path runs.
func (d *Dispatcher) Close() {
	d.mu.RLock()
	conns := make([]Conn, 0, len(d.conns))
	for _, conn := range d.conns {
		conns = append(conns, conn)
	}
	d.mu.RUnlock()

	for _, conn := range conns {
		conn.Close()
	}
	d.log.Info("Closed client connections", "count", len(conns))
}

func (d *Dispatcher) snapshot(roomID string) []Conn {
	d.mu.RLock()
	defer d.mu.RUnlock()

	members := d.rooms[roomID]
	conns := make([]Conn, 0, len(members))
	for _, conn := range members {
		conns = append(conns, conn)
	}
	return conns
}

func (d *Dispatcher) closeFailed(failed []Conn) {
	for _, conn := range failed {
		d.log.Warn("Closing connection with full send buffer", "conn", conn.ID())
		conn.Close()
	}
}

func (d *Dispatcher) encode(event Event) ([]byte, bool) {
	payload, err := json.Marshal(event)
	if err != nil {
		d.log.Error("Cannot encode event", "event", event.Name, "error", err)
		return nil, false
	}
	return payload, true
}
