package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CookieName is the cookie carrying the signed session token.
const CookieName = "roomchat_session"

const issuer = "roomchat"

type claims struct {
	Name string `json:"name"`
	Room string `json:"room"`
	jwt.RegisteredClaims
}

// Manager signs bindings into tokens and reads them back from requests.
type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewManager returns a Manager signing with secret. Tokens expire after ttl.
func NewManager(secret string, ttl time.Duration) *Manager {
	return &Manager{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue returns a signed token for b.
func (m *Manager) Issue(b Binding) (string, error) {
	now := m.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims{
		Name: b.Name,
		Room: b.RoomID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        b.SessionID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	})
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Parse verifies token and returns the binding it carries.
func (m *Manager) Parse(token string) (Binding, error) {
	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return Binding{}, fmt.Errorf("%w: %w", ErrUnbound, err)
	}

	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return Binding{}, fmt.Errorf("%w: %w", ErrUnbound, jwt.ErrTokenInvalidClaims)
	}

	b := Binding{SessionID: c.ID, Name: c.Name, RoomID: c.Room}
	if !b.Bound() || b.SessionID == "" {
		return Binding{}, ErrUnbound
	}
	return b, nil
}

// Write stores b in the response as the session cookie.
func (m *Manager) Write(w http.ResponseWriter, b Binding) error {
	token, err := m.Issue(b)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Clear erases the session cookie. Clearing an absent session is a no-op.
func (m *Manager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// Current returns the binding carried by r, or ErrUnbound.
func (m *Manager) Current(r *http.Request) (Binding, error) {
	cookie, err := r.Cookie(CookieName)
	if errors.Is(err, http.ErrNoCookie) || (err == nil && cookie.Value == "") {
		return Binding{}, ErrUnbound
	}
	if err != nil {
		return Binding{}, fmt.Errorf("%w: %w", ErrUnbound, err)
	}
	return m.Parse(cookie.Value)
}
