package util

import (
	"testing"
)

func TestNewTokenShape(t *testing.T) {
	tok, err := NewToken()
	if err != nil {
		t.Fatal(err)
	}
	// 32 raw bytes -> 43 base64url chars, no padding.
	if len(tok) != 43 {
		t.Errorf("token length = %d, want 43", len(tok))
	}
	for _, c := range tok {
		valid := c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '-' || c == '_'
		if !valid {
			t.Errorf("token contains invalid char %q", c)
		}
	}
}

func TestNewTokenIndependent(t *testing.T) {
	a, err := NewToken()
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewToken()
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Error("two issued tokens are identical")
	}
}

func TestVerifyToken(t *testing.T) {
	tok, err := NewToken()
	if err != nil {
		t.Fatal(err)
	}
	hash := HashToken(tok)
	if !VerifyToken(tok, hash) {
		t.Error("issued token failed verification against its own hash")
	}
	if VerifyToken(tok+"x", hash) {
		t.Error("tampered token verified")
	}
	other, _ := NewToken()
	if VerifyToken(other, hash) {
		t.Error("unrelated token verified")
	}
	if VerifyToken(tok, nil) {
		t.Error("nil stored hash verified")
	}
	if VerifyToken(tok, hash[:16]) {
		t.Error("truncated stored hash verified")
	}
}
