package crypto

import (
	"strings"
	"testing"
)

const testKey = "0123456789abcdef0123456789abcdef"

func TestFieldCipherRoundTrip(t *testing.T) {
	fc, err := NewFieldCipher(testKey)
	if err != nil {
		t.Fatalf("new cipher: %v", err)
	}

	values := []string{
		"RSSMRA85M01H501Z",
		"a",
		"exactly sixteen!",
		strings.Repeat("x", 100),
	}
	for _, v := range values {
		encrypted, err := fc.Encrypt(v)
		if err != nil {
			t.Fatalf("encrypt %q: %v", v, err)
		}
		if encrypted == v {
			t.Fatalf("ciphertext equals plaintext for %q", v)
		}
		decrypted, err := fc.Decrypt(encrypted)
		if err != nil {
			t.Fatalf("decrypt %q: %v", v, err)
		}
		if decrypted != v {
			t.Fatalf("round trip mismatch: got %q want %q", decrypted, v)
		}
	}
}

func TestFieldCipherEmptyValuePassthrough(t *testing.T) {
	fc, err := NewFieldCipher(testKey)
	if err != nil {
		t.Fatalf("new cipher: %v", err)
	}
	if out, err := fc.Encrypt(""); err != nil || out != "" {
		t.Fatalf("expected empty passthrough on encrypt, got %q err %v", out, err)
	}
	if out, err := fc.Decrypt(""); err != nil || out != "" {
		t.Fatalf("expected empty passthrough on decrypt, got %q err %v", out, err)
	}
}

func TestFieldCipherDistinctIVs(t *testing.T) {
	fc, err := NewFieldCipher(testKey)
	if err != nil {
		t.Fatalf("new cipher: %v", err)
	}
	a, err := fc.Encrypt("RSSMRA85M01H501Z")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	b, err := fc.Encrypt("RSSMRA85M01H501Z")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if a == b {
		t.Fatalf("expected distinct ciphertexts for same plaintext")
	}
}

func TestFieldCipherRejectsBadKey(t *testing.T) {
	if _, err := NewFieldCipher("short"); err == nil {
		t.Fatalf("expected error for short key")
	}
}

func TestFieldCipherRejectsGarbage(t *testing.T) {
	fc, err := NewFieldCipher(testKey)
	if err != nil {
		t.Fatalf("new cipher: %v", err)
	}
	for _, in := range []string{"not base64!!!", "YWJj", "YWJjZGVmZ2hpamtsbW5vcA=="} {
		if _, err := fc.Decrypt(in); err == nil {
			t.Fatalf("expected error decrypting %q", in)
		}
	}
}
