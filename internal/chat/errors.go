package chat

import "errors"

// Errors returned by the room engine. All of them are recoverable validation
// failures reported back to the client that attempted the action.
var (
	ErrRoomExists      = errors.New("room already exists")
	ErrRoomNotFound    = errors.New("room not found")
	ErrInvalidAction   = errors.New("invalid action")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrEmptyMemberName = errors.New("member name is empty")
)
