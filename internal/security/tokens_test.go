package security

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"testing"
	"time"
)

func newIssuer(t *testing.T, issuer, audience string) *TokenVerifier {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return NewTokenIssuer(key, key.Public(), issuer, audience)
}

func TestIssueAndVerify(t *testing.T) {
	v := newIssuer(t, "fieldops-idp", "fieldops-api")
	token, err := v.Issue("user-1", "org-1", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	ident, err := v.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ident.UserID != "user-1" {
		t.Errorf("UserID = %q, want user-1", ident.UserID)
	}
	if ident.OrgID != "org-1" {
		t.Errorf("OrgID = %q, want org-1", ident.OrgID)
	}
	if ident.ExpiresAt.IsZero() {
		t.Error("ExpiresAt not set")
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	v := newIssuer(t, "fieldops-idp", "fieldops-api")
	token, err := v.Issue("user-1", "org-1", -time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := v.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	minter := newIssuer(t, "other-idp", "fieldops-api")
	token, err := minter.Issue("user-1", "org-1", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	verifier := NewTokenVerifier(minter.publicKey, "fieldops-idp", "fieldops-api")
	if _, err := verifier.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyRejectsWrongAudience(t *testing.T) {
	minter := newIssuer(t, "fieldops-idp", "other-api")
	token, err := minter.Issue("user-1", "org-1", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	verifier := NewTokenVerifier(minter.publicKey, "fieldops-idp", "fieldops-api")
	if _, err := verifier.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	minter := newIssuer(t, "fieldops-idp", "fieldops-api")
	other := newIssuer(t, "fieldops-idp", "fieldops-api")
	token, err := minter.Issue("user-1", "org-1", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := other.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	v := newIssuer(t, "fieldops-idp", "fieldops-api")
	for _, tok := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := v.Verify(tok); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Verify(%q): err = %v, want ErrInvalidToken", tok, err)
		}
	}
}
