package jwtutil

import (
	"errors"
	"testing"

	"scouthub/pkg/config"
)

func testService(key string, hours int) *Service {
	return New(&config.JWTConfig{SigningKey: key, ExpirationHours: hours})
}

func TestVerifyRoundTrip(t *testing.T) {
	svc := testService("test-key", 1)

	orgID := uint(7)
	token, err := svc.GenerateWithOrganization("user@example.com", 42, &orgID, "admin")
	if err != nil {
		t.Fatalf("GenerateWithOrganization: %v", err)
	}

	claims, err := svc.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.UserID != 42 {
		t.Fatalf("unexpected user id: %d", claims.UserID)
	}
	if claims.Email != "user@example.com" {
		t.Fatalf("unexpected email: %s", claims.Email)
	}
	if claims.OrganizationID == nil || *claims.OrganizationID != 7 {
		t.Fatalf("organization claim not preserved: %v", claims.OrganizationID)
	}
	if claims.Role != "admin" {
		t.Fatalf("role claim not preserved: %s", claims.Role)
	}
}

func TestVerifyIdentityOnlyToken(t *testing.T) {
	svc := testService("test-key", 1)

	token, err := svc.Generate("user@example.com", 9)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	claims, err := svc.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.OrganizationID != nil {
		t.Fatalf("expected no organization claim, got %d", *claims.OrganizationID)
	}
	if claims.Role != "" {
		t.Fatalf("expected no role claim, got %q", claims.Role)
	}
}

func TestVerifyExpiredIsNotInvalid(t *testing.T) {
	svc := testService("test-key", -1)

	token, err := svc.Generate("user@example.com", 1)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	_, err = svc.Verify(token)
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestVerifyTamperedToken(t *testing.T) {
	svc := testService("test-key", 1)

	token, err := svc.Generate("user@example.com", 1)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	tampered := token + "xx"
	if _, err := svc.Verify(tampered); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestVerifyWrongKey(t *testing.T) {
	token, err := testService("key-one", 1).Generate("user@example.com", 1)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if _, err := testService("key-two", 1).Verify(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for wrong key, got %v", err)
	}
}

func TestVerifyGarbage(t *testing.T) {
	svc := testService("test-key", 1)
	if _, err := svc.Verify("not-a-token"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}
