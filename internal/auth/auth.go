// Package auth gates the admin API surface (listener management) behind a
// single operator credential. Listener-facing stream endpoints are never
// authenticated, per spec.md's non-goals; this package exists purely for
// the admin group added in SPEC_FULL.md.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidToken       = errors.New("invalid token")
	ErrExpiredToken       = errors.New("token has expired")
	ErrMissingToken       = errors.New("missing authorization token")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrRateLimited        = errors.New("too many login attempts, please try again later")
)

// Config holds the admin authentication configuration.
type Config struct {
	Username string
	Password string
	Secret   string
	TokenTTL time.Duration

	MaxLoginAttempts   int
	LoginWindowSeconds int
}

// claims is the bearer token payload: just a subject and an expiry, since
// the admin surface has exactly one principal.
type claims struct {
	Sub string `json:"sub"`
	Iat int64  `json:"iat"`
	Exp int64  `json:"exp"`
}

type loginAttempt struct {
	timestamps []time.Time
}

// rateLimiter tracks failed admin login attempts per IP using a sliding
// window, so a brute-force attempt against the admin password can't run
// unbounded.
type rateLimiter struct {
	mu         sync.Mutex
	attempts   map[string]*loginAttempt
	maxFails   int
	windowSize time.Duration
}

func newRateLimiter(maxFails int, windowSize time.Duration) *rateLimiter {
	if maxFails <= 0 {
		maxFails = 5
	}
	if windowSize <= 0 {
		windowSize = 15 * time.Minute
	}
	rl := &rateLimiter{
		attempts:   make(map[string]*loginAttempt),
		maxFails:   maxFails,
		windowSize: windowSize,
	}
	go rl.cleanup()
	return rl
}

func (rl *rateLimiter) isAllowed(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	entry, exists := rl.attempts[key]
	if !exists {
		return true
	}
	rl.pruneOld(entry)
	return len(entry.timestamps) < rl.maxFails
}

func (rl *rateLimiter) recordFailure(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	entry, exists := rl.attempts[key]
	if !exists {
		entry = &loginAttempt{}
		rl.attempts[key] = entry
	}
	rl.pruneOld(entry)
	entry.timestamps = append(entry.timestamps, time.Now())
}

func (rl *rateLimiter) recordSuccess(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.attempts, key)
}

func (rl *rateLimiter) pruneOld(entry *loginAttempt) {
	cutoff := time.Now().Add(-rl.windowSize)
	n := 0
	for _, t := range entry.timestamps {
		if t.After(cutoff) {
			entry.timestamps[n] = t
			n++
		}
	}
	entry.timestamps = entry.timestamps[:n]
}

func (rl *rateLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		rl.mu.Lock()
		for key, entry := range rl.attempts {
			rl.pruneOld(entry)
			if len(entry.timestamps) == 0 {
				delete(rl.attempts, key)
			}
		}
		rl.mu.Unlock()
	}
}

// Auth issues and validates admin bearer tokens.
type Auth struct {
	config       Config
	passwordHash []byte
	limiter      *rateLimiter
	log          *zap.Logger
}

// New hashes cfg.Password with bcrypt immediately; the plaintext is never
// retained on the returned Auth.
func New(cfg Config, log *zap.Logger) *Auth {
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.MaxLoginAttempts == 0 {
		cfg.MaxLoginAttempts = 5
	}
	if cfg.LoginWindowSeconds == 0 {
		cfg.LoginWindowSeconds = 900
	}
	if cfg.Secret == "change-me-in-production-please" {
		log.Warn("admin auth is using the default signing secret, change it in production")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("failed to hash admin password, admin login will always fail", zap.Error(err))
		hash = []byte("$2a$10$invalidhashinvalidhashinvalidhashinvalidhashinv")
	}
	cfg.Password = ""

	return &Auth{
		config:       cfg,
		passwordHash: hash,
		limiter:      newRateLimiter(cfg.MaxLoginAttempts, time.Duration(cfg.LoginWindowSeconds)*time.Second),
		log:          log,
	}
}

// Authenticate checks username/password and returns a signed bearer token
// on success.
func (a *Auth) Authenticate(username, password, remoteIP string) (string, error) {
	if !a.limiter.isAllowed(remoteIP) {
		return "", ErrRateLimited
	}

	usernameMatch := constantTimeEqual(username, a.config.Username)
	passwordErr := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password))

	if !usernameMatch || passwordErr != nil {
		a.limiter.recordFailure(remoteIP)
		return "", ErrInvalidCredentials
	}
	a.limiter.recordSuccess(remoteIP)

	now := time.Now()
	return a.sign(claims{Sub: username, Iat: now.Unix(), Exp: now.Add(a.config.TokenTTL).Unix()})
}

func (a *Auth) validate(token string) (*claims, error) {
	if len(token) > 4096 {
		return nil, ErrInvalidToken
	}
	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return nil, ErrInvalidToken
	}

	expected := a.computeHMAC(parts[0])
	if !hmacEqualB64(expected, parts[1]) {
		return nil, ErrInvalidToken
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, fmt.Errorf("%w: malformed payload", ErrInvalidToken)
	}
	var c claims
	if err := sonic.Unmarshal(payload, &c); err != nil {
		return nil, fmt.Errorf("%w: malformed claims", ErrInvalidToken)
	}
	if time.Now().Unix() > c.Exp {
		return nil, ErrExpiredToken
	}
	return &c, nil
}

func (a *Auth) sign(c claims) (string, error) {
	payload, err := sonic.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("auth: marshal claims: %w", err)
	}
	payloadB64 := base64.RawURLEncoding.EncodeToString(payload)
	return payloadB64 + "." + a.computeHMAC(payloadB64), nil
}

func (a *Auth) computeHMAC(input string) string {
	mac := hmac.New(sha256.New, []byte(a.config.Secret))
	mac.Write([]byte(input))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func hmacEqualB64(a, b string) bool {
	aDec, errA := base64.RawURLEncoding.DecodeString(a)
	bDec, errB := base64.RawURLEncoding.DecodeString(b)
	if errA != nil || errB != nil {
		return false
	}
	return hmac.Equal(aDec, bDec)
}

func constantTimeEqual(a, b string) bool {
	h1 := sha256.Sum256([]byte(a))
	h2 := sha256.Sum256([]byte(b))
	return hmac.Equal(h1[:], h2[:])
}

// RequireAdmin is a gin middleware that rejects requests without a valid
// admin bearer token.
func (a *Auth) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		if _, err := a.validate(strings.TrimSpace(token)); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		c.Next()
	}
}
