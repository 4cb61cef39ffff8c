package service

import (
	"errors"
	"testing"
	"time"

	"bank-assist/internal/domain"
)

func TestJWTService_RoundTrip(t *testing.T) {
	svc := NewJWTService("test-secret", time.Hour)

	token, err := svc.GenerateAccessToken(domain.User{ID: "user_101", Name: "Alex Demo"})
	if err != nil {
		t.Fatal(err)
	}

	claims, err := svc.ParseAccessToken(token)
	if err != nil {
		t.Fatal(err)
	}
	if claims.UserID != "user_101" || claims.Name != "Alex Demo" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestJWTService_RejectsTamperedToken(t *testing.T) {
	svc := NewJWTService("test-secret", time.Hour)
	token, err := svc.GenerateAccessToken(domain.User{ID: "user_101"})
	if err != nil {
		t.Fatal(err)
	}

	other := NewJWTService("another-secret", time.Hour)
	if _, err := other.ParseAccessToken(token); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid, got %v", err)
	}
}

func TestJWTService_RejectsExpired(t *testing.T) {
	svc := NewJWTService("test-secret", -time.Minute)
	// accessTTL <= 0 cae al default de una hora, asi que forzamos con
	// un servicio de TTL minimo real.
	svc.accessTTL = time.Millisecond

	token, err := svc.GenerateAccessToken(domain.User{ID: "user_101"})
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)

	if _, err := svc.ParseAccessToken(token); !errors.Is(err, ErrJWTExpired) {
		t.Fatalf("expected ErrJWTExpired, got %v", err)
	}
}

func TestJWTService_EmptySecret(t *testing.T) {
	svc := NewJWTService("", time.Hour)
	if _, err := svc.GenerateAccessToken(domain.User{ID: "u"}); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid, got %v", err)
	}
}

func TestJWTService_EmptyToken(t *testing.T) {
	svc := NewJWTService("s", time.Hour)
	if _, err := svc.ParseAccessToken("  "); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid, got %v", err)
	}
}
