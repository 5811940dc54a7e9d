package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
)

var secret = []byte("test-secret")

func TestTokenRoundTrip(t *testing.T) {
	actor := Actor{ID: uuid.New(), Role: RoleStaff}

	token, err := NewToken(secret, actor, time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	parsed, err := ParseToken(secret, token)
	if err != nil {
		t.Fatal(err)
	}
	if parsed != actor {
		t.Fatalf("parsed actor = %+v, want %+v", parsed, actor)
	}
}

func TestParseTokenRejectsBadInput(t *testing.T) {
	actor := Actor{ID: uuid.New(), Role: RolePatient}

	expired, err := NewToken(secret, actor, -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseToken(secret, expired); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired token: expected ErrInvalidToken, got %v", err)
	}

	wrongKey, err := NewToken([]byte("other-secret"), actor, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseToken(secret, wrongKey); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("wrong key: expected ErrInvalidToken, got %v", err)
	}

	if _, err := ParseToken(secret, "not-a-jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("garbage: expected ErrInvalidToken, got %v", err)
	}
}

func TestMiddleware(t *testing.T) {
	actor := Actor{ID: uuid.New(), Role: RoleDoctor}
	token, err := NewToken(secret, actor, time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	var seen Actor
	handler := Middleware(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	// Valid token passes and surfaces the actor.
	req := httptest.NewRequest("POST", "/queue", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if seen != actor {
		t.Fatalf("actor in context = %+v, want %+v", seen, actor)
	}

	// Missing header.
	req = httptest.NewRequest("POST", "/queue", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	// Mangled token.
	req = httptest.NewRequest("POST", "/queue", nil)
	req.Header.Set("Authorization", "Bearer nope")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}
