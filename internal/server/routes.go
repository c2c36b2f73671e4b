// Package server wires HTTP handlers into a chi router for the roomchat
// application via routing helpers.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Routes returns the router with all application routes.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/", s.HomeHandler)
	r.Post("/", s.CreateOrJoinHandler)
	r.Get("/rooms", s.RoomsHandler)
	r.Get("/room", s.RoomHandler)
	r.Post("/upload_avatar", s.UploadAvatarHandler)
	r.Get("/ws", s.WebSocketHandler)
	r.Get("/health", HealthHandler)
	r.Handle(AvatarURLPrefix+"/*", http.StripPrefix(AvatarURLPrefix+"/", http.FileServer(http.Dir(s.avatars.Dir()))))
	return r
}
