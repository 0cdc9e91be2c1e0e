package cache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestKeyIsStableAndNamespaced(t *testing.T) {
	t.Parallel()

	a := Key("tts", "Tell me about yourself.")
	if a != Key("tts", "Tell me about yourself.") {
		t.Fatal("same content produced different keys")
	}
	if a == Key("tts", "Tell me about your last project.") {
		t.Fatal("different content collided")
	}
	if !strings.HasPrefix(a, "tts:") || len(a) != len("tts:")+64 {
		t.Fatalf("key = %q", a)
	}
}

func TestLockKey(t *testing.T) {
	t.Parallel()

	if got := lockKey("abc"); got != "interview:lock:abc" {
		t.Fatalf("lockKey = %q", got)
	}
}

func TestKeepAliveRefreshesUntilStopped(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	calls := make(chan struct{}, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		keepAlive(ctx, 10*time.Millisecond, func(context.Context) error {
			calls <- struct{}{}
			return errors.New("redis unreachable")
		})
	}()

	// refresh errors do not stop the loop
	for i := 0; i < 3; i++ {
		select {
		case <-calls:
		case <-time.After(time.Second):
			t.Fatalf("refresh %d never happened", i+1)
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("keepAlive did not stop after cancel")
	}
}

func TestNewSessionLockDefaultsTTL(t *testing.T) {
	t.Parallel()

	if l := NewSessionLock(nil, 0); l.ttl != DefaultLockTTL {
		t.Fatalf("ttl = %v", l.ttl)
	}
	if DefaultLockTTL > time.Minute {
		t.Fatalf("DefaultLockTTL = %v keeps crashed sessions locked too long", DefaultLockTTL)
	}
}
