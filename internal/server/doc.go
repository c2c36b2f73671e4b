// Package server implements the HTTP and WebSocket surface of roomchat.
//
// Configuration, origin checks, per-connection clients, handlers, and routing
// live in separate files. Room state and fanout are delegated to package chat;
// session cookies to package session; avatar files to package avatar.
package server
