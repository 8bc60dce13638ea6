package admin

import (
	"testing"
	"time"
)

func TestCSRFTokenExpiry(t *testing.T) {
	registry := newCSRFRegistry()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	registry.nowFn = func() time.Time { return now }

	token := registry.Issue()
	now = now.Add(csrfTokenTTL + time.Second)
	if registry.Consume(token) {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestCSRFTokenSingleUse(t *testing.T) {
	registry := newCSRFRegistry()
	token := registry.Issue()
	if !registry.Consume(token) {
		t.Fatal("expected fresh token to be accepted")
	}
	if registry.Consume(token) {
		t.Fatal("expected second use to be rejected")
	}
	if registry.Consume("") {
		t.Fatal("empty token must never be accepted")
	}
}

func TestCSRFIssuePrunesExpired(t *testing.T) {
	registry := newCSRFRegistry()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	registry.nowFn = func() time.Time { return now }

	stale := registry.Issue()
	now = now.Add(csrfTokenTTL + time.Minute)
	_ = registry.Issue()

	registry.mu.Lock()
	_, stillThere := registry.tokens[stale]
	registry.mu.Unlock()
	if stillThere {
		t.Fatal("expected expired token to be pruned on issue")
	}
}
