package security

import (
	"errors"
	"testing"
)

func TestHasher_HashAndVerify(t *testing.T) {
	h := NewHasher(4)
	password := []byte("secret123")
	hash, err := h.Hash(password)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if hash == "" {
		t.Fatal("Hash returned empty")
	}
	if err := h.Verify(hash, password); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestHasher_VerifyWrongPassword(t *testing.T) {
	h := NewHasher(4)
	hash, _ := h.Hash([]byte("secret123"))
	if err := h.Verify(hash, []byte("wrong")); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("Verify with wrong password = %v, want ErrPasswordMismatch", err)
	}
}

func TestHasher_VerifyUnknownUser(t *testing.T) {
	h := NewHasher(4)
	if err := h.Verify("", []byte("anything")); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("Verify with empty hash = %v, want ErrPasswordMismatch", err)
	}
	// second call reuses the lazily built dummy hash
	if err := h.Verify("", []byte("anything")); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("Verify with empty hash = %v, want ErrPasswordMismatch", err)
	}
}

func TestHasher_VerifyMalformedHash(t *testing.T) {
	h := NewHasher(4)
	err := h.Verify("not-a-bcrypt-hash", []byte("x"))
	if err == nil {
		t.Fatal("Verify with malformed hash should fail")
	}
	if errors.Is(err, ErrPasswordMismatch) {
		t.Error("malformed hash should not be reported as a plain mismatch")
	}
}

func TestHasher_Cost(t *testing.T) {
	if h := NewHasher(12); h.Cost != 12 {
		t.Errorf("Cost want 12, got %d", h.Cost)
	}
	if h := NewHasher(0); h.Cost < 4 {
		t.Errorf("zero cost should be clamped to at least MinCost, got %d", h.Cost)
	}
	if h := NewHasher(99); h.Cost != 31 {
		t.Errorf("cost above MaxCost should clamp to 31, got %d", h.Cost)
	}
}
