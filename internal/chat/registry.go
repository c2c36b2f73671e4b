package chat

import (
	"fmt"
	"sort"
	"sync"
)

// Registry owns the mapping from room id to Room. Its lock only guards the
// map itself; room state is guarded by each Room.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]*Room),
	}
}

// CreateRoom inserts an empty room under id. It fails with ErrRoomExists if a
// live room already uses that id.
func (g *Registry) CreateRoom(id string) (*Room, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if existing, ok := g.rooms[id]; ok && !existing.isDeleted() {
		return nil, fmt.Errorf("%w: %q", ErrRoomExists, id)
	}

	room := newRoom(id, g)
	g.rooms[id] = room
	return room, nil
}

// GetRoom returns the live room stored under id.
func (g *Registry) GetRoom(id string) (*Room, error) {
	g.mu.RLock()
	room, ok := g.rooms[id]
	g.mu.RUnlock()

	if !ok || room.isDeleted() {
		return nil, fmt.Errorf("%w: %q", ErrRoomNotFound, id)
	}
	return room, nil
}

// DeleteRoom removes the room stored under id. Deleting a missing room is a no-op.
func (g *Registry) DeleteRoom(id string) {
	g.mu.Lock()
	room, ok := g.rooms[id]
	delete(g.rooms, id)
	g.mu.Unlock()

	if ok {
		room.markDeleted()
	}
}

// RoomExists reports whether a live room is stored under id.
func (g *Registry) RoomExists(id string) bool {
	_, err := g.GetRoom(id)
	return err == nil
}

// ListRooms returns the ids of all live rooms in lexical order.
func (g *Registry) ListRooms() []string {
	g.mu.RLock()
	rooms := make([]*Room, 0, len(g.rooms))
	for _, room := range g.rooms {
		rooms = append(rooms, room)
	}
	g.mu.RUnlock()

	ids := make([]string, 0, len(rooms))
	for _, room := range rooms {
		if !room.isDeleted() {
			ids = append(ids, room.id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Enter adds name to the room stored under id.
func (g *Registry) Enter(id, name string) (*Room, error) {
	room, err := g.GetRoom(id)
	if err != nil {
		return nil, err
	}
	if err := room.AddMember(name); err != nil {
		return nil, fmt.Errorf("%w: %q", err, id)
	}
	return room, nil
}

// Leave removes name from the room stored under id and deletes the room when
// nobody is left. The returned bool reports whether the room is gone.
func (g *Registry) Leave(id, name string) (*Room, bool, error) {
	room, err := g.GetRoom(id)
	if err != nil {
		return nil, true, err
	}
	deleted, err := room.RemoveMember(name)
	if err != nil {
		return room, true, fmt.Errorf("%w: %q", err, id)
	}
	return room, deleted, nil
}

// forget drops room from the map if it is still the one stored under its id.
func (g *Registry) forget(room *Room) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if current, ok := g.rooms[room.id]; ok && current == room {
		delete(g.rooms, room.id)
	}
}
