package chat

import (
	"sync"

	"github.com/samber/lo"
)

// Room holds the state of one chat room. All access goes through its methods,
// which serialize on the room's own lock; rooms never lock each other.
type Room struct {
	id       string
	registry *Registry

	mu         sync.Mutex
	members    []string
	messages   []Message
	avatars    map[string]string
	fonts      map[string]string
	fontColors map[string]string
	deleted    bool
}

func newRoom(id string, registry *Registry) *Room {
	return &Room{
		id:         id,
		registry:   registry,
		members:    make([]string, 0),
		messages:   make([]Message, 0),
		avatars:    make(map[string]string),
		fonts:      make(map[string]string),
		fontColors: make(map[string]string),
	}
}

// ID returns the room identifier.
func (r *Room) ID() string {
	return r.id
}

// AddMember appends name to the member list unless it is already present.
// It fails with ErrRoomNotFound once the room has been deleted, so a late
// join can never resurrect an emptied room.
func (r *Room) AddMember(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.deleted {
		return ErrRoomNotFound
	}
	if !lo.Contains(r.members, name) {
		r.members = append(r.members, name)
	}
	return nil
}

// RemoveMember drops every occurrence of name. When the member list becomes
// empty the room is marked deleted and removed from its registry before
// RemoveMember returns. The returned bool reports whether that happened.
func (r *Room) RemoveMember(name string) (bool, error) {
	r.mu.Lock()
	if r.deleted {
		r.mu.Unlock()
		return true, ErrRoomNotFound
	}
	r.members = lo.Without(r.members, name)
	emptied := len(r.members) == 0
	if emptied {
		r.deleted = true
	}
	r.mu.Unlock()

	if emptied && r.registry != nil {
		r.registry.forget(r)
	}
	return emptied, nil
}

// AppendMessage records a chat message from sender.
func (r *Room) AppendMessage(sender, text string) (Message, error) {
	return r.append(Message{Name: sender, Message: text})
}

// AppendSystem records a system notice such as a join or leave.
func (r *Room) AppendSystem(text string) (Message, error) {
	return r.append(systemMessage(text))
}

func (r *Room) append(m Message) (Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.deleted {
		return Message{}, ErrRoomNotFound
	}
	r.messages = append(r.messages, m)
	return m, nil
}

// SetAvatar records the avatar URL of name; last write wins.
func (r *Room) SetAvatar(name, url string) error {
	return r.set(r.avatars, name, url)
}

// SetFont records the font of name; last write wins.
func (r *Room) SetFont(name, font string) error {
	return r.set(r.fonts, name, font)
}

// SetFontColor records the font color of name; last write wins.
func (r *Room) SetFontColor(name, color string) error {
	return r.set(r.fontColors, name, color)
}

// set writes into one of the metadata maps. The map headers are assigned once
// in newRoom, only their contents need the lock.
func (r *Room) set(target map[string]string, name, value string) error {
	if name == "" {
		return ErrEmptyMemberName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.deleted {
		return ErrRoomNotFound
	}
	target[name] = value
	return nil
}

// Members returns the member list in join order.
func (r *Room) Members() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append(make([]string, 0, len(r.members)), r.members...)
}

// Messages returns the message history in delivery order.
func (r *Room) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append(make([]Message, 0, len(r.messages)), r.messages...)
}

// Avatars returns a copy of the avatar map.
func (r *Room) Avatars() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo.Assign(r.avatars)
}

// Fonts returns a copy of the font map.
func (r *Room) Fonts() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo.Assign(r.fonts)
}

// FontColors returns a copy of the font color map.
func (r *Room) FontColors() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo.Assign(r.fontColors)
}

// Snapshot returns the members and avatars as one consistent view.
func (r *Room) Snapshot() UserList {
	r.mu.Lock()
	defer r.mu.Unlock()
	return UserList{
		Members: append(make([]string, 0, len(r.members)), r.members...),
		Avatars: lo.Assign(r.avatars),
	}
}

func (r *Room) isDeleted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deleted
}

func (r *Room) markDeleted() {
	r.mu.Lock()
	r.deleted = true
	r.mu.Unlock()
}
