package service

import (
	"testing"
	"time"
)

func TestMemoryChatRateLimiter_AllowsUpToMax(t *testing.T) {
	l := NewMemoryChatRateLimiter(time.Hour, 3)

	for i := 0; i < 3; i++ {
		if !l.Allow("s1") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if l.Allow("s1") {
		t.Fatal("request over the limit should be denied")
	}
}

func TestMemoryChatRateLimiter_PerSessionIsolation(t *testing.T) {
	l := NewMemoryChatRateLimiter(time.Hour, 1)

	if !l.Allow("a") {
		t.Fatal("first request for a denied")
	}
	if !l.Allow("b") {
		t.Fatal("session b should not share session a's window")
	}
	if l.Allow("a") {
		t.Fatal("second request for a should be denied")
	}
}

func TestMemoryChatRateLimiter_WindowDecays(t *testing.T) {
	l := NewMemoryChatRateLimiter(20*time.Millisecond, 1)

	if !l.Allow("s1") {
		t.Fatal("first request denied")
	}
	if l.Allow("s1") {
		t.Fatal("second request inside window should be denied")
	}

	time.Sleep(30 * time.Millisecond)
	// No es un tope de por vida: la ventana vencida resetea el contador.
	if !l.Allow("s1") {
		t.Fatal("request after window expiry should be allowed")
	}
}

func TestMemoryChatRateLimiter_EmptyKeyDenied(t *testing.T) {
	l := NewMemoryChatRateLimiter(time.Hour, 5)
	if l.Allow("   ") {
		t.Fatal("blank session key should be denied")
	}
}
