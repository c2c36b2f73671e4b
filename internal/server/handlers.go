// Package server exposes HTTP handlers for the create/join form, room state,
// avatar uploads, WebSocket upgrades, and health checks.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/Tyrowin/roomchat/internal/avatar"
	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/Tyrowin/roomchat/internal/session"
)

// formErrorMessage returns the text shown to a user whose create/join form was rejected.
func formErrorMessage(err error) string {
	switch {
	case errors.Is(err, session.ErrMissingField):
		return "Please enter a name and room."
	case errors.Is(err, session.ErrRoomTooLong):
		return "Room name must be 50 characters or fewer."
	case errors.Is(err, chat.ErrRoomExists):
		return "Room name already taken."
	case errors.Is(err, chat.ErrRoomNotFound):
		return "Room does not exist."
	case errors.Is(err, chat.ErrInvalidAction):
		return "Invalid action."
	default:
		return "Something went wrong."
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// HomeHandler clears the caller's session and lists the open rooms.
func (s *Server) HomeHandler(w http.ResponseWriter, _ *http.Request) {
	s.sessions.Clear(w)
	writeJSON(w, http.StatusOK, map[string]any{"rooms": s.handler.ListRooms()})
}

// CreateOrJoinHandler processes the create/join form (fields name, code, action).
// On success it stores the session cookie; on failure it clears it and echoes
// the form back with an error.
func (s *Server) CreateOrJoinHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.sessions.Clear(w)
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid form."})
		return
	}
	name := r.PostFormValue("name")
	code := r.PostFormValue("code")
	action := r.PostFormValue("action")

	b, err := s.handler.CreateOrJoin(name, code, action)
	if err != nil {
		s.log.Info("Create/join rejected", "name", name, "room", code, "action", action, "error", err)
		s.sessions.Clear(w)
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": formErrorMessage(err),
			"name":  name,
			"code":  code,
			"rooms": s.handler.ListRooms(),
		})
		return
	}

	if err := s.sessions.Write(w, b); err != nil {
		s.log.Error("Cannot write session", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "Something went wrong."})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"room": b.RoomID, "name": b.Name})
}

// RoomsHandler lists the open rooms.
func (s *Server) RoomsHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"rooms": s.handler.ListRooms()})
}

// RoomHandler returns the history and members of the caller's room. The
// "code" query parameter overrides the room of the session. Callers without a
// session, or whose room is gone, are sent back to "/".
func (s *Server) RoomHandler(w http.ResponseWriter, r *http.Request) {
	b, err := s.sessions.Current(r)
	if err != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if code := r.URL.Query().Get("code"); code != "" {
		b.RoomID = code
	}

	room, err := s.handler.Room(b)
	if err != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"code":     room.ID(),
		"messages": room.Messages(),
		"users":    room.Members(),
	})
}

// UploadAvatarHandler stores the "avatar" file of a multipart form for the
// caller's session.
func (s *Server) UploadAvatarHandler(w http.ResponseWriter, r *http.Request) {
	b, err := s.sessions.Current(r)
	if err != nil {
		b = session.Binding{}
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadSize)
	filename, data, err := readUpload(r)
	if err != nil {
		s.log.Info("Avatar upload unreadable", "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid request"})
		return
	}

	url, err := s.handler.UploadAvatar(r.Context(), b, filename, data)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"avatar_url": url})
	case errors.Is(err, chat.ErrInvalidRequest):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid request"})
	case errors.Is(err, avatar.ErrInvalidFileType):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid file type"})
	default:
		s.log.Error("Avatar upload failed", "name", b.Name, "room", b.RoomID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "Upload failed"})
	}
}

// readUpload returns the filename and content of the "avatar" part. A request
// without that part yields nil data and no error. A part sent with an empty
// filename is parsed as a plain value; it comes back as an empty name with
// empty content so the filename check rejects it.
func readUpload(r *http.Request) (string, []byte, error) {
	file, header, err := r.FormFile("avatar")
	if errors.Is(err, http.ErrMissingFile) {
		if r.MultipartForm != nil && len(r.MultipartForm.Value["avatar"]) > 0 {
			return "", []byte{}, nil
		}
		return "", nil, nil
	}
	if errors.Is(err, http.ErrNotMultipart) {
		return "", nil, nil
	}
	if err != nil {
		return "", nil, fmt.Errorf("read avatar part: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	data, err := io.ReadAll(file)
	if err != nil {
		return "", nil, fmt.Errorf("read avatar content: %w", err)
	}
	if data == nil {
		data = []byte{}
	}
	return header.Filename, data, nil
}

// WebSocketHandler upgrades the request and runs the client for the caller's
// session. Connections without a session are accepted but every event they
// send is dropped.
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	b, err := s.sessions.Current(r)
	if err != nil {
		b = session.Binding{}
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	client := NewClient(conn, s.handler, b, r.RemoteAddr, s.cfg, s.log)
	s.track(client)

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		client.writePump()
	}()
	go func() {
		defer s.wg.Done()
		defer s.untrack(client)
		client.run()
	}()
}

// HealthHandler provides a simple health check endpoint that returns server status.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "roomchat server is running!")
}
