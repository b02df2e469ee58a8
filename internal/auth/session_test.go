package auth

import (
	"errors"
	"testing"
	"time"
)

func TestMintAndVerify(t *testing.T) {
	s, err := NewSessions("test-secret-at-least-32-bytes-long", time.Hour)
	if err != nil {
		t.Fatalf("new sessions: %v", err)
	}

	token, expires, err := s.Mint("editor-window-1")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if time.Until(expires) <= 0 {
		t.Error("expiry should be in the future")
	}

	claims, err := s.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != "editor-window-1" {
		t.Errorf("expected subject round trip, got %q", claims.Subject)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	s, _ := NewSessions("test-secret-at-least-32-bytes-long", time.Hour)

	for _, bad := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := s.Verify(bad); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("expected ErrInvalidToken for %q, got %v", bad, err)
		}
	}
}

func TestVerifyRejectsForeignSecret(t *testing.T) {
	a, _ := NewSessions("secret-one-secret-one-secret-one", time.Hour)
	b, _ := NewSessions("secret-two-secret-two-secret-two", time.Hour)

	token, _, err := a.Mint("client")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := b.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("token signed by a foreign secret must not verify, got %v", err)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	s, _ := NewSessions("test-secret-at-least-32-bytes-long", time.Millisecond)

	token, _, err := s.Mint("client")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if _, err := s.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired token must not verify, got %v", err)
	}
}

func TestRandomSecretWhenEmpty(t *testing.T) {
	s, err := NewSessions("", time.Hour)
	if err != nil {
		t.Fatalf("new sessions with empty secret: %v", err)
	}
	token, _, err := s.Mint("client")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := s.Verify(token); err != nil {
		t.Errorf("self-issued token must verify: %v", err)
	}
}
