package admin

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const csrfTokenTTL = 15 * time.Minute

// csrfRegistry issues single-use tokens with an expiry. Mutating endpoints
// consume a token per request; replays and expired tokens are rejected.
type csrfRegistry struct {
	mu     sync.Mutex
	tokens map[string]time.Time
	nowFn  func() time.Time
}

func newCSRFRegistry() *csrfRegistry {
	return &csrfRegistry{
		tokens: make(map[string]time.Time),
		nowFn:  time.Now,
	}
}

// Issue mints a fresh token, pruning expired ones while it holds the lock.
func (r *csrfRegistry) Issue() string {
	token := uuid.NewString()
	now := r.nowFn()
	r.mu.Lock()
	for t, exp := range r.tokens {
		if now.After(exp) {
			delete(r.tokens, t)
		}
	}
	r.tokens[token] = now.Add(csrfTokenTTL)
	r.mu.Unlock()
	return token
}

// Consume validates and invalidates a token in one step.
func (r *csrfRegistry) Consume(token string) bool {
	if token == "" {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	exp, ok := r.tokens[token]
	if !ok {
		return false
	}
	delete(r.tokens, token)
	return !r.nowFn().After(exp)
}
