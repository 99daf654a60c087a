// Package auth issues and verifies the opaque session tokens handed out
// by the auth agent, backed by a static credential service.
package auth

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// defaultTokenTTL bounds the life of an issued token when the config
// does not say otherwise.
const defaultTokenTTL = time.Hour

// TokenSet holds the issued tokens. The set is shared between the login,
// verify and logout handlers, so all access goes through the mutex.
type TokenSet struct {
	ttl    time.Duration
	logger *slog.Logger

	mu     sync.RWMutex
	tokens map[string]session
}

type session struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// NewTokenSet creates an empty token set. ttl <= 0 selects the default.
func NewTokenSet(ttl time.Duration, logger *slog.Logger) *TokenSet {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &TokenSet{
		ttl:    ttl,
		logger: logger.With("component", "tokens"),
		tokens: make(map[string]session),
	}
}

// Issue mints a fresh token for subject.
func (ts *TokenSet) Issue(subject string) string {
	token := uuid.NewString()
	now := time.Now()

	ts.mu.Lock()
	ts.tokens[token] = session{
		Subject:   subject,
		IssuedAt:  now,
		ExpiresAt: now.Add(ts.ttl),
	}
	ts.mu.Unlock()

	ts.logger.Info("token issued", "subject", subject)
	return token
}

// Verify reports whether token is live and, when it is, the subject it
// was issued to. Expired tokens are removed on sight.
func (ts *TokenSet) Verify(token string) (bool, string) {
	ts.mu.RLock()
	sess, exists := ts.tokens[token]
	ts.mu.RUnlock()

	if !exists {
		return false, ""
	}

	if time.Now().After(sess.ExpiresAt) {
		ts.mu.Lock()
		delete(ts.tokens, token)
		ts.mu.Unlock()
		return false, ""
	}

	return true, sess.Subject
}

// Revoke removes token from the set and reports whether it was live.
func (ts *TokenSet) Revoke(token string) bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	sess, exists := ts.tokens[token]
	if !exists {
		return false
	}
	delete(ts.tokens, token)
	return !time.Now().After(sess.ExpiresAt)
}

// Len counts stored tokens, expired ones included.
func (ts *TokenSet) Len() int {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return len(ts.tokens)
}

// CleanExpired removes expired tokens. Call periodically.
func (ts *TokenSet) CleanExpired() {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	now := time.Now()
	for token, sess := range ts.tokens {
		if now.After(sess.ExpiresAt) {
			delete(ts.tokens, token)
		}
	}
}
