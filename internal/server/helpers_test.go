package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomchat/internal/session"
)

const testOrigin = "http://localhost:8080"

// frame is one outbound event as a browser would see it.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// startTestServer runs a Server behind httptest. mutate may adjust the
// config before the server is built.
func startTestServer(t *testing.T, mutate func(*Config)) (*Server, *httptest.Server) {
	t.Helper()
	cfg := NewConfig()
	cfg.UploadDir = t.TempDir()
	if mutate != nil {
		mutate(cfg)
	}

	app, err := New(*cfg, logs.GetLoggerFromLevel(slog.LevelWarn))
	require.NoError(t, err)

	ts := httptest.NewServer(app.Routes())
	t.Cleanup(ts.Close)
	return app, ts
}

// noRedirectClient returns redirects to the caller instead of following them.
func noRedirectClient() *http.Client {
	return &http.Client{
		Timeout: 5 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// submitForm posts the create/join form and returns the response with its decoded body.
func submitForm(t *testing.T, ts *httptest.Server, name, code, action string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.PostForm(ts.URL+"/", url.Values{
		"name":   {name},
		"code":   {code},
		"action": {action},
	})
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp, body
}

// enter submits the form and returns the session cookie it set.
func enter(t *testing.T, ts *httptest.Server, name, code, action string) *http.Cookie {
	t.Helper()
	resp, body := submitForm(t, ts, name, code, action)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	return sessionCookie(t, resp)
}

func sessionCookie(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == session.CookieName {
			return c
		}
	}
	t.Fatalf("response carries no %s cookie", session.CookieName)
	return nil
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

// dial opens a WebSocket for cookie, which may be nil.
func dial(t *testing.T, ts *httptest.Server, cookie *http.Cookie) *websocket.Conn {
	t.Helper()
	headers := http.Header{}
	headers.Set("Origin", testOrigin)
	if cookie != nil {
		headers.Set("Cookie", fmt.Sprintf("%s=%s", cookie.Name, cookie.Value))
	}

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, resp, err := dialer.Dial(wsURL(ts), headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{"event": event, "data": data}))
}

// readUntil reads frames until one named event arrives.
func readUntil(t *testing.T, conn *websocket.Conn, event string) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var f frame
		require.NoError(t, conn.ReadJSON(&f), "waiting for %s", event)
		if f.Event == event {
			return f
		}
	}
}

func decode[T any](t *testing.T, f frame) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(f.Data, &v))
	return v
}

// expectSilence asserts that nothing arrives on conn for a short while.
// The connection is unusable for reads afterwards.
func expectSilence(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	var f frame
	err := conn.ReadJSON(&f)
	require.Error(t, err, "unexpected frame %s", f.Event)
}

// uploadAvatar posts content as the "avatar" part named filename.
func uploadAvatar(t *testing.T, ts *httptest.Server, cookie *http.Cookie, filename string, content []byte) (*http.Response, map[string]any) {
	t.Helper()
	return postUpload(t, ts, cookie, func(mw *multipart.Writer) {
		part, err := mw.CreateFormFile("avatar", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	})
}

// postUpload sends the multipart form written by build to /upload_avatar.
func postUpload(t *testing.T, ts *httptest.Server, cookie *http.Cookie, build func(*multipart.Writer)) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	build(mw)
	require.NoError(t, mw.Close())

	r, err := http.NewRequest(http.MethodPost, ts.URL+"/upload_avatar", &buf)
	require.NoError(t, err)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	if cookie != nil {
		r.AddCookie(&http.Cookie{Name: cookie.Name, Value: cookie.Value})
	}

	resp, err := http.DefaultClient.Do(r)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp, body
}
