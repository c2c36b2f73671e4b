package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Tyrowin/roomchat/internal/avatar"
	"github.com/Tyrowin/roomchat/internal/session"
)

// Form actions accepted by CreateOrJoin.
const (
	ActionCreate = "create"
	ActionJoin   = "join"
)

// FileSaver persists an uploaded file under an already sanitized name and
// returns the URL it is served from.
type FileSaver interface {
	SaveFile(ctx context.Context, data []byte, name string) (string, error)
}

// Handler turns client actions into Registry mutations and Dispatcher fanout.
// Realtime events that reference a missing room or an unbound session are
// dropped without telling the sender.
type Handler struct {
	registry   *Registry
	dispatcher *Dispatcher
	files      FileSaver
	log        *slog.Logger
}

// NewHandler wires a Handler around its collaborators.
func NewHandler(registry *Registry, dispatcher *Dispatcher, files FileSaver, log *slog.Logger) *Handler {
	return &Handler{
		registry:   registry,
		dispatcher: dispatcher,
		files:      files,
		log:        log,
	}
}

// CreateOrJoin validates the form input and, for ActionCreate, creates the
// room. It returns the binding the caller must store for the client.
// Joining does not add the member; that happens when the realtime connection opens.
func (h *Handler) CreateOrJoin(name, roomID, action string) (session.Binding, error) {
	b, err := session.Begin(name, roomID)
	if err != nil {
		return session.Binding{}, err
	}

	switch action {
	case ActionCreate:
		if _, err := h.registry.CreateRoom(b.RoomID); err != nil {
			return session.Binding{}, err
		}
		h.log.Info("Room created", "room", b.RoomID, "by", b.Name)
	case ActionJoin:
		if !h.registry.RoomExists(b.RoomID) {
			return session.Binding{}, fmt.Errorf("%w: %q", ErrRoomNotFound, b.RoomID)
		}
	default:
		return session.Binding{}, fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}
	return b, nil
}

// ListRooms returns the ids of all live rooms.
func (h *Handler) ListRooms() []string {
	return h.registry.ListRooms()
}

// Room returns the room b is bound to.
func (h *Handler) Room(b session.Binding) (*Room, error) {
	if !b.Bound() {
		return nil, session.ErrUnbound
	}
	return h.registry.GetRoom(b.RoomID)
}

// Open runs when conn goes live for b: it registers the connection, adds the
// member, announces the arrival, refreshes the member list, and replays the
// room's fonts and colors to conn alone.
func (h *Handler) Open(b session.Binding, conn Conn) {
	if !b.Bound() {
		return
	}

	h.dispatcher.Register(b.RoomID, conn)
	room, err := h.registry.Enter(b.RoomID, b.Name)
	if err != nil {
		h.dispatcher.Unregister(conn)
		return
	}

	notice, err := room.AppendSystem(b.Name + " has entered the room")
	if err != nil {
		return
	}
	h.dispatcher.BroadcastToRoom(b.RoomID, chatEvent(notice))
	h.dispatcher.BroadcastToRoom(b.RoomID, userListEvent(room.Snapshot()))
	h.replayPresence(room, conn.ID())

	h.log.Info("Member joined", "name", b.Name, "room", b.RoomID, "conn", conn.ID())
}

// Message appends text to the room history and broadcasts it. The sender is
// always the bound name.
func (h *Handler) Message(b session.Binding, text string) {
	room, ok := h.liveRoom(b)
	if !ok {
		return
	}
	msg, err := room.AppendMessage(b.Name, text)
	if err != nil {
		return
	}
	h.dispatcher.BroadcastToRoom(b.RoomID, chatEvent(msg))
	h.log.Debug("Message relayed", "name", b.Name, "room", b.RoomID)
}

// FontChange stores the font of the bound user and broadcasts it.
func (h *Handler) FontChange(b session.Binding, font string) {
	room, ok := h.liveRoom(b)
	if !ok || room.SetFont(b.Name, font) != nil {
		return
	}
	h.dispatcher.BroadcastToRoom(b.RoomID, fontEvent(FontChange{User: b.Name, Font: font}))
}

// FontColorChange stores the font color of the bound user and broadcasts it.
func (h *Handler) FontColorChange(b session.Binding, color string) {
	room, ok := h.liveRoom(b)
	if !ok || room.SetFontColor(b.Name, color) != nil {
		return
	}
	h.dispatcher.BroadcastToRoom(b.RoomID, fontColorEvent(FontColorChange{User: b.Name, Color: color}))
}

// BroadcastCode relays a code snippet to the room without storing it.
func (h *Handler) BroadcastCode(b session.Binding, code string) {
	if code == "" {
		return
	}
	if _, ok := h.liveRoom(b); !ok {
		return
	}
	h.dispatcher.BroadcastToRoom(b.RoomID, codeEvent(CodeBroadcast{Code: code, Sender: b.Name}))
	h.log.Info("Code broadcast", "sender", b.Name, "room", b.RoomID)
}

// Close runs when conn goes away. It removes the member, deleting the room if
// it is now empty, and tells whoever is still connected. Connections that were
// never registered, or were replaced by a newer one, leave no trace.
func (h *Handler) Close(b session.Binding, conn Conn) {
	if !h.dispatcher.Unregister(conn) {
		return
	}

	room, deleted, err := h.registry.Leave(b.RoomID, b.Name)
	if err != nil && !errors.Is(err, ErrRoomNotFound) {
		h.log.Warn("Leave failed", "name", b.Name, "room", b.RoomID, "error", err)
	}

	notice := systemMessage(b.Name + " has left the room")
	if !deleted && room != nil {
		if stored, err := room.AppendSystem(notice.Message); err == nil {
			notice = stored
		}
	}
	h.dispatcher.BroadcastToRoom(b.RoomID, chatEvent(notice))

	if !deleted && room != nil {
		h.dispatcher.BroadcastToRoom(b.RoomID, userListEvent(room.Snapshot()))
	} else {
		h.log.Info("Room deleted", "room", b.RoomID)
	}
	h.log.Info("Member left", "name", b.Name, "room", b.RoomID, "conn", conn.ID())
}

// UploadAvatar stores an avatar for the bound user, refreshes the room's
// member list, and replays fonts and colors to the uploading connection.
// data is nil when the request carried no file.
func (h *Handler) UploadAvatar(ctx context.Context, b session.Binding, filename string, data []byte) (string, error) {
	room, ok := h.liveRoom(b)
	if !ok || data == nil {
		return "", ErrInvalidRequest
	}

	name, err := avatar.Sanitize(filename)
	if err != nil {
		return "", err
	}
	url, err := h.files.SaveFile(ctx, data, name)
	if err != nil {
		return "", err
	}
	if err := room.SetAvatar(b.Name, url); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	h.dispatcher.BroadcastToRoom(b.RoomID, userListEvent(room.Snapshot()))
	h.replayPresence(room, b.SessionID)
	return url, nil
}

func (h *Handler) liveRoom(b session.Binding) (*Room, bool) {
	if !b.Bound() {
		return nil, false
	}
	room, err := h.registry.GetRoom(b.RoomID)
	if err != nil {
		return nil, false
	}
	return room, true
}

// replayPresence unicasts every known font and color in room to connID.
func (h *Handler) replayPresence(room *Room, connID string) {
	for user, font := range room.Fonts() {
		h.dispatcher.SendToConnection(connID, fontEvent(FontChange{User: user, Font: font}))
	}
	for user, color := range room.FontColors() {
		h.dispatcher.SendToConnection(connID, fontColorEvent(FontColorChange{User: user, Color: color}))
	}
}
