package chat

// Outbound event names understood by the browser client.
const (
	EventMessage         = "message"
	EventUserList        = "updateUserList"
	EventFontChange      = "fontChange"
	EventFontColorChange = "fontColorChange"
	EventCode            = "broadcast_code"
)

// Defaults applied when a presence change arrives without a value.
const (
	DefaultFont      = "Arial"
	DefaultFontColor = "#000000"
)

const (
	systemSender      = "System"
	messageTypeSystem = "system"
)

// Event is the envelope written to every connection: {"event": ..., "data": ...}.
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data"`
}

// Message is one entry of a room's history and the payload of a chat event.
type Message struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
}

// UserList is the member/avatar snapshot broadcast whenever presence changes.
type UserList struct {
	Members []string          `json:"members"`
	Avatars map[string]string `json:"avatars"`
}

// FontChange announces the font chosen by a user.
type FontChange struct {
	User string `json:"user"`
	Font string `json:"font"`
}

// FontColorChange announces the font color chosen by a user.
type FontColorChange struct {
	User  string `json:"user"`
	Color string `json:"color"`
}

// CodeBroadcast carries a code snippet shared with the room. It is never stored.
type CodeBroadcast struct {
	Code   string `json:"code"`
	Sender string `json:"sender"`
}

func chatEvent(m Message) Event              { return Event{Name: EventMessage, Data: m} }
func userListEvent(u UserList) Event         { return Event{Name: EventUserList, Data: u} }
func fontEvent(f FontChange) Event           { return Event{Name: EventFontChange, Data: f} }
func fontColorEvent(f FontColorChange) Event { return Event{Name: EventFontColorChange, Data: f} }
func codeEvent(c CodeBroadcast) Event        { return Event{Name: EventCode, Data: c} }

func systemMessage(text string) Message {
	return Message{Name: systemSender, Message: text, Type: messageTypeSystem}
}
