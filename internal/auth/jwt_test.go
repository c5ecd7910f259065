package auth

import (
	"testing"
	"time"

	"callbridge/internal/config"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(config.OpsConfig{JWTSecret: "test-secret", TokenTTL: time.Hour})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	return m
}

func TestManager_RequiresSecret(t *testing.T) {
	if _, err := NewManager(config.OpsConfig{}); err == nil {
		t.Fatalf("expected error without secret")
	}
}

func TestIssueAndVerify(t *testing.T) {
	m := newTestManager(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tok, err := m.Issue(now, "ops")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := m.Verify(tok, now.Add(5*time.Minute))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Operator != "ops" {
		t.Fatalf("operator mismatch: %q", claims.Operator)
	}
}

func TestVerify_RejectsExpiredToken(t *testing.T) {
	m := newTestManager(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tok, err := m.Issue(now, "ops")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Verify(tok, now.Add(2*time.Hour)); err == nil {
		t.Fatalf("expected expiry error")
	}
}

func TestVerify_RejectsWrongSecret(t *testing.T) {
	m := newTestManager(t)
	other, err := NewManager(config.OpsConfig{JWTSecret: "other-secret"})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tok, err := other.Issue(now, "ops")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Verify(tok, now); err == nil {
		t.Fatalf("expected signature error")
	}
}

func TestIssue_RequiresOperator(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.Issue(time.Now(), ""); err == nil {
		t.Fatalf("expected error for empty operator")
	}
}
