package shelterboard

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// pbkdf2Iterations is the work factor for password digests.
	pbkdf2Iterations = 100_000
	// passwordSaltSize is the salt size for password digests.
	passwordSaltSize = 16
	// passwordKeySize is the derived key size for password digests.
	passwordKeySize = 32

	// sessionCookieName carries the login token in the browser.
	sessionCookieName = "shelterboard_session"
	// sessionTokenSize is the random token size in bytes.
	sessionTokenSize = 32
)

// ErrLoginThrottled is returned when an IP exceeds the login attempt limit.
var ErrLoginThrottled = errors.New("too many login attempts")

// HashPassword derives a PBKDF2-SHA256 digest for the shared password,
// suitable for the password_hash config field. The format is
// "pbkdf2$<iterations>$<salt-hex>$<key-hex>".
func HashPassword(password string) (string, error) {
	salt := make([]byte, passwordSaltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("auth: generate salt: %w", err)
	}
	key := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, passwordKeySize, sha256.New)
	return fmt.Sprintf("pbkdf2$%d$%s$%s",
		pbkdf2Iterations, hex.EncodeToString(salt), hex.EncodeToString(key)), nil
}

// VerifyPassword checks a candidate password against a digest produced by
// HashPassword. The comparison is constant time.
func VerifyPassword(digest, password string) bool {
	d, err := parsePasswordDigest(digest)
	if err != nil {
		return false
	}
	return d.matches(password)
}

type passwordDigest struct {
	iterations int
	salt       []byte
	key        []byte
}

func parsePasswordDigest(s string) (passwordDigest, error) {
	parts := strings.Split(s, "$")
	if len(parts) != 4 || parts[0] != "pbkdf2" {
		return passwordDigest{}, errors.New("auth: malformed password digest")
	}
	iters, err := strconv.Atoi(parts[1])
	if err != nil || iters <= 0 {
		return passwordDigest{}, errors.New("auth: invalid digest iteration count")
	}
	salt, err := hex.DecodeString(parts[2])
	if err != nil || len(salt) == 0 {
		return passwordDigest{}, errors.New("auth: invalid digest salt")
	}
	key, err := hex.DecodeString(parts[3])
	if err != nil || len(key) == 0 {
		return passwordDigest{}, errors.New("auth: invalid digest key")
	}
	return passwordDigest{iterations: iters, salt: salt, key: key}, nil
}

func (d passwordDigest) matches(password string) bool {
	candidate := pbkdf2.Key([]byte(password), d.salt, d.iterations, len(d.key), sha256.New)
	return subtle.ConstantTimeCompare(candidate, d.key) == 1
}

// sessionStore tracks issued login tokens and their expiry. Expired entries
// are swept opportunistically on create.
type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]time.Time
	ttl      time.Duration
}

func newSessionStore(ttl time.Duration) *sessionStore {
	return &sessionStore{
		sessions: make(map[string]time.Time),
		ttl:      ttl,
	}
}

func (s *sessionStore) create() (string, time.Time, error) {
	buf := make([]byte, sessionTokenSize)
	if _, err := rand.Read(buf); err != nil {
		return "", time.Time{}, fmt.Errorf("auth: generate session token: %w", err)
	}
	token := hex.EncodeToString(buf)
	expiry := time.Now().Add(s.ttl)

	s.mu.Lock()
	s.sweepLocked(time.Now())
	s.sessions[token] = expiry
	s.mu.Unlock()
	return token, expiry, nil
}

func (s *sessionStore) valid(token string) bool {
	if token == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	expiry, ok := s.sessions[token]
	if !ok {
		return false
	}
	if time.Now().After(expiry) {
		delete(s.sessions, token)
		return false
	}
	return true
}

func (s *sessionStore) delete(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

func (s *sessionStore) sweepLocked(now time.Time) {
	for token, expiry := range s.sessions {
		if now.After(expiry) {
			delete(s.sessions, token)
		}
	}
}

// Gate implements the shared-password login. With no password configured the
// gate is disabled and every request passes.
type Gate struct {
	enabled  bool
	digest   *passwordDigest
	plain    string
	sessions *sessionStore
	limiter  *rateLimiter
}

// newGate builds the gate from auth configuration. PasswordHash takes
// precedence over Password when both are set.
func newGate(cfg AuthConfig) (*Gate, error) {
	g := &Gate{
		sessions: newSessionStore(cfg.SessionTTL),
	}
	switch {
	case cfg.PasswordHash != "":
		d, err := parsePasswordDigest(cfg.PasswordHash)
		if err != nil {
			return nil, err
		}
		g.digest = &d
		g.enabled = true
	case cfg.Password != "":
		g.plain = cfg.Password
		g.enabled = true
	}
	if g.enabled && cfg.LoginRatePerMinute > 0 {
		g.limiter = newRateLimiter(cfg.LoginRatePerMinute, time.Minute)
	}
	return g, nil
}

// Enabled reports whether a password is configured.
func (g *Gate) Enabled() bool {
	return g.enabled
}

// Login checks the password and issues a session token. A wrong password
// returns ErrBadPassword; throttled IPs get ErrLoginThrottled without the
// password even being checked.
func (g *Gate) Login(password, ip string) (string, time.Time, error) {
	if !g.enabled {
		return "", time.Time{}, nil
	}
	if g.limiter != nil && !g.limiter.allow(ip) {
		return "", time.Time{}, ErrLoginThrottled
	}
	if !g.verify(password) {
		return "", time.Time{}, ErrBadPassword
	}
	return g.sessions.create()
}

func (g *Gate) verify(password string) bool {
	if g.digest != nil {
		return g.digest.matches(password)
	}
	return subtle.ConstantTimeCompare([]byte(g.plain), []byte(password)) == 1
}

// Logout invalidates the request's session, if any.
func (g *Gate) Logout(r *http.Request) {
	if c, err := r.Cookie(sessionCookieName); err == nil {
		g.sessions.delete(c.Value)
	}
}

// Authenticated reports whether the request carries a valid session, or the
// gate is disabled.
func (g *Gate) Authenticated(r *http.Request) bool {
	if !g.enabled {
		return true
	}
	c, err := r.Cookie(sessionCookieName)
	if err != nil {
		return false
	}
	return g.sessions.valid(c.Value)
}

// SetSessionCookie attaches the login token to the response.
func (g *Gate) SetSessionCookie(w http.ResponseWriter, token string, expiry time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiry,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie in the browser.
func (g *Gate) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// stop releases the gate's login limiter, if any.
func (g *Gate) stop() {
	if g.limiter != nil {
		g.limiter.stop()
	}
}
