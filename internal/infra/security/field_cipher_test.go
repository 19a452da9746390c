//go:build !integration

package security

import (
	"errors"
	"testing"

	"coop-voucher/internal/domain"
)

func TestFieldCipher(t *testing.T) {
	c, err := NewFieldCipher([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("NewFieldCipher: %v", err)
	}

	sealed, err := c.Seal("010-1234-5678", "row-1")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if sealed == "010-1234-5678" {
		t.Fatal("expected ciphertext, got plaintext")
	}

	t.Run("round trip", func(t *testing.T) {
		got, err := c.Open(sealed, "row-1")
		if err != nil || got != "010-1234-5678" {
			t.Fatalf("expected plaintext back, got %q (%v)", got, err)
		}
	})

	t.Run("bound to row id", func(t *testing.T) {
		if _, err := c.Open(sealed, "row-2"); err == nil {
			t.Fatal("expected open with another row id to fail")
		}
	})

	t.Run("fresh nonce per seal", func(t *testing.T) {
		again, _ := c.Seal("010-1234-5678", "row-1")
		if again == sealed {
			t.Fatal("expected different ciphertexts for repeated seals")
		}
	})

	t.Run("rejects bad key length", func(t *testing.T) {
		if _, err := NewFieldCipher([]byte("short")); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
	})
}
