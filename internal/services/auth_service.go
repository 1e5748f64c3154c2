package services

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var ErrBadCreds = errors.New("invalid password")

// AdminGate guards the admin pages with one bcrypt-hashed password. With no
// hash configured the gate is open.
type AdminGate struct {
	hash []byte
	ttl  time.Duration
	now  func() time.Time

	mu       sync.Mutex
	sessions map[string]time.Time
}

func NewAdminGate(hash string, ttl time.Duration) *AdminGate {
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &AdminGate{hash: []byte(hash), ttl: ttl, now: time.Now, sessions: map[string]time.Time{}}
}

func (g *AdminGate) Enabled() bool { return len(g.hash) > 0 }

// Login returns a new session id when password matches.
func (g *AdminGate) Login(password string) (string, error) {
	if !g.Enabled() {
		return "", errors.New("admin gate disabled")
	}
	if bcrypt.CompareHashAndPassword(g.hash, []byte(password)) != nil {
		return "", ErrBadCreds
	}
	sid := uuid.NewString()
	g.mu.Lock()
	g.sessions[sid] = g.now().Add(g.ttl)
	g.mu.Unlock()
	return sid, nil
}

// Valid reports whether sid may see admin pages. Expired sessions are dropped.
func (g *AdminGate) Valid(sid string) bool {
	if !g.Enabled() {
		return true
	}
	if sid == "" {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	exp, ok := g.sessions[sid]
	if !ok {
		return false
	}
	if g.now().After(exp) {
		delete(g.sessions, sid)
		return false
	}
	return true
}

func (g *AdminGate) Logout(sid string) {
	g.mu.Lock()
	delete(g.sessions, sid)
	g.mu.Unlock()
}
