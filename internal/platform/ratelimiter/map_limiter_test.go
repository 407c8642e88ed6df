package ratelimiter

import (
	"testing"
	"time"
)

func TestAllowEnforcesBurstPerKey(t *testing.T) {
	l := New(1, 2, time.Minute)
	now := time.Now()

	if !l.Allow("10.0.0.1", now) || !l.Allow("10.0.0.1", now) {
		t.Fatal("burst tokens should be allowed")
	}
	if l.Allow("10.0.0.1", now) {
		t.Fatal("third immediate request should be limited")
	}
	if !l.Allow("10.0.0.2", now) {
		t.Fatal("a different key has its own bucket")
	}
	if !l.Allow("10.0.0.1", now.Add(2*time.Second)) {
		t.Fatal("tokens should refill over time")
	}
}

func TestNilAndEmptyKeysAllowed(t *testing.T) {
	var l *MapLimiter
	if !l.Allow("any", time.Now()) {
		t.Fatal("nil limiter must allow everything")
	}
	if limiter := New(0, 0, 0); limiter != nil {
		t.Fatal("invalid parameters should yield nil")
	}
	limiter := New(1, 1, time.Minute)
	if !limiter.Allow("  ", time.Now()) {
		t.Fatal("blank keys are never limited")
	}
}
