package service

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHashVerify(t *testing.T) {
	h, err := NewPasswordHasher(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hasher: %v", err)
	}

	hash, err := h.Hash("Test@123")
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}

	ok, err := h.Verify(hash, "Test@123")
	if err != nil || !ok {
		t.Fatalf("expected password to verify, ok=%v err=%v", ok, err)
	}

	ok, err = h.Verify(hash, "wrong")
	if err != nil || ok {
		t.Fatalf("expected password to fail, ok=%v err=%v", ok, err)
	}
}

func TestPasswordHashIsSalted(t *testing.T) {
	h, _ := NewPasswordHasher(bcrypt.MinCost)
	a, _ := h.Hash("same")
	b, _ := h.Hash("same")
	if a == b {
		t.Fatalf("expected distinct hashes for the same password")
	}
}

func TestPasswordHasherCostIsConfigurable(t *testing.T) {
	h, err := NewPasswordHasher(11)
	if err != nil {
		t.Fatalf("hasher: %v", err)
	}
	hash, _ := h.Hash("pw")
	cost, _ := bcrypt.Cost([]byte(hash))
	if cost != 11 {
		t.Fatalf("cost = %d, want 11", cost)
	}

	if _, err := NewPasswordHasher(99); !errors.Is(err, ErrMisconfigured) {
		t.Fatalf("expected ErrMisconfigured, got %v", err)
	}
}

func TestPasswordHashRejectsOverlongInput(t *testing.T) {
	h, err := NewPasswordHasher(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hasher: %v", err)
	}

	if _, err := h.Hash(strings.Repeat("p", 72)); err != nil {
		t.Fatalf("72 bytes should hash: %v", err)
	}
	_, err = h.Hash(strings.Repeat("p", 73))
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
