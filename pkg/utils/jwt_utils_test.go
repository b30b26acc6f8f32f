package utils

import (
	"testing"
	"time"
)

func TestJWTManagerRoundTrip(t *testing.T) {
	m, err := NewJWTManager("test-secret", time.Minute)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	token, err := m.GenerateAccessToken(7, 3, "alice", "Admin")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.UserID != 7 || claims.OrganizationID != 3 || claims.Username != "alice" || claims.Role != "Admin" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestJWTManagerRejectsForeignSecret(t *testing.T) {
	a, _ := NewJWTManager("secret-a", time.Minute)
	b, _ := NewJWTManager("secret-b", time.Minute)
	token, err := a.GenerateAccessToken(1, 1, "bob", "Staff")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := b.ValidateToken(token); err == nil {
		t.Fatalf("expected validation failure with a different secret")
	}
}

func TestJWTManagerRejectsExpired(t *testing.T) {
	m, _ := NewJWTManager("secret", time.Nanosecond)
	token, err := m.GenerateAccessToken(1, 1, "carol", "Staff")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	time.Sleep(1100 * time.Millisecond)
	if _, err := m.ValidateToken(token); err == nil {
		t.Fatalf("expected expired token to fail validation")
	}
}

func TestNewJWTManagerRequiresSecret(t *testing.T) {
	if _, err := NewJWTManager("", time.Minute); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}
