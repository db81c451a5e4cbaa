package security

import "testing"

func TestHashSessionToken(t *testing.T) {
	h1 := HashSessionToken("tok-1")
	h2 := HashSessionToken("tok-1")
	if h1 != h2 {
		t.Error("same token produced different hashes")
	}
	if len(h1) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(h1))
	}
	if h1 == "tok-1" {
		t.Error("hash equals the raw token")
	}
	if HashSessionToken("tok-2") == h1 {
		t.Error("different tokens produced the same hash")
	}
}

func TestSessionTokenHashEqual(t *testing.T) {
	h := HashSessionToken("tok-1")
	if !SessionTokenHashEqual(h, HashSessionToken("tok-1")) {
		t.Error("equal hashes compared unequal")
	}
	if SessionTokenHashEqual(h, HashSessionToken("tok-2")) {
		t.Error("different hashes compared equal")
	}
}
