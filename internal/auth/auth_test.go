package auth

import (
	"errors"
	"testing"
	"time"

	"fleetguard/internal/model"
)

func TestIssueAndParse(t *testing.T) {
	issuer := NewIssuer("secret", time.Hour)
	parser := NewParser("secret")

	token, expiresAt, err := issuer.Issue(model.Principal{WorkerID: "W001", Name: "Ana", Role: model.WorkerRoleAdmin})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Fatal("token already expired")
	}

	claims, err := parser.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	p := claims.Principal()
	if p.WorkerID != "W001" || p.Name != "Ana" || !p.IsAdmin() || p.Demo {
		t.Fatalf("principal = %+v", p)
	}
	if claims.ID == "" {
		t.Fatal("missing jti")
	}
}

func TestParseRejectsForeignAndExpiredTokens(t *testing.T) {
	token, _, _ := NewIssuer("other", time.Hour).Issue(model.Principal{WorkerID: "W001", Role: model.WorkerRoleUser})
	if _, err := NewParser("secret").Parse(token); err == nil {
		t.Fatal("token signed with another secret accepted")
	}

	expired := NewIssuer("secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, _, _ = expired.Issue(model.Principal{WorkerID: "W001", Role: model.WorkerRoleUser})
	if _, err := NewParser("secret").Parse(token); err == nil {
		t.Fatal("expired token accepted")
	}
}

func TestPasswords(t *testing.T) {
	if _, err := HashPassword("123"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("short password: %v", err)
	}
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !CheckPassword(hash, "correct horse") {
		t.Fatal("valid password rejected")
	}
	if CheckPassword(hash, "wrong horse") || CheckPassword("not-a-hash", "correct horse") {
		t.Fatal("invalid password accepted")
	}
}
