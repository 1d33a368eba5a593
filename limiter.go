package main

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitManager keeps one token bucket per key (client IP) and drops
// buckets that have been idle for an hour.
type RateLimitManager struct {
	mu            sync.Mutex
	limiters      map[string]*bucket
	rate          rate.Limit
	burst         int
	cleanupTicker *time.Ticker
	stopChan      chan struct{}
}

type bucket struct {
	limiter     *rate.Limiter
	lastRequest time.Time
}

func NewRateLimitManager(r rate.Limit, burst int) *RateLimitManager {
	if burst < 1 {
		burst = 1
	}
	m := &RateLimitManager{
		limiters:      make(map[string]*bucket),
		rate:          r,
		burst:         burst,
		cleanupTicker: time.NewTicker(5 * time.Minute),
		stopChan:      make(chan struct{}),
	}

	go m.cleanupLoop()

	return m
}

func (m *RateLimitManager) Allow(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.limiters[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(m.rate, m.burst)}
		m.limiters[key] = b
	}

	allowed := b.limiter.Allow()
	if allowed {
		b.lastRequest = time.Now()
	}
	return allowed
}

func (m *RateLimitManager) cleanupLoop() {
	for {
		select {
		case <-m.cleanupTicker.C:
			m.cleanupExpired()
		case <-m.stopChan:
			m.cleanupTicker.Stop()
			return
		}
	}
}

func (m *RateLimitManager) cleanupExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()

	const expiry = time.Hour
	now := time.Now()
	for key, b := range m.limiters {
		if now.Sub(b.lastRequest) > expiry {
			delete(m.limiters, key)
		}
	}
}

func (m *RateLimitManager) Stop() {
	close(m.stopChan)
}
