package main

import (
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestLimiterBurst(t *testing.T) {
	m := NewRateLimitManager(rate.Limit(0), 2)
	defer m.Stop()

	key := "ip:10.0.0.1"
	if !m.Allow(key) {
		t.Fatalf("expected first request allowed")
	}
	if !m.Allow(key) {
		t.Fatalf("expected second request allowed")
	}
	if m.Allow(key) {
		t.Fatalf("expected third request denied")
	}
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	m := NewRateLimitManager(rate.Limit(0), 1)
	defer m.Stop()

	if !m.Allow("ip:10.0.0.1") {
		t.Fatalf("expected first key allowed")
	}
	if m.Allow("ip:10.0.0.1") {
		t.Fatalf("expected first key exhausted")
	}
	if !m.Allow("ip:10.0.0.2") {
		t.Fatalf("expected second key to have its own bucket")
	}
}

func TestLimiterCleanupExpired(t *testing.T) {
	m := NewRateLimitManager(rate.Limit(1), 1)
	defer m.Stop()

	m.Allow("ip:10.0.0.1")
	m.mu.Lock()
	m.limiters["ip:10.0.0.1"].lastRequest = time.Now().Add(-2 * time.Hour)
	m.mu.Unlock()

	m.cleanupExpired()

	m.mu.Lock()
	_, ok := m.limiters["ip:10.0.0.1"]
	m.mu.Unlock()
	if ok {
		t.Fatalf("expected idle bucket to be cleaned up")
	}
}
