package crypto

import (
	"errors"
	"strings"
	"testing"
)

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		plaintext string
		password  string
	}{
		{"simple", "hello world", "pw"},
		{"empty plaintext", "", "pw"},
		{"empty password", "some text", ""},
		{"both empty", "", ""},
		{"block aligned", strings.Repeat("a", 32), "secret"},
		{"multi line", "line1\nline2\nline3", "secret"},
		{"unicode", "héllo wörld é", "päss"},
		{"long", strings.Repeat("the quick brown fox ", 100), "key"},
	}

	c := ECB{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := c.Encrypt(tt.plaintext, tt.password)
			if err != nil {
				t.Fatalf("Encrypt() failed: %v", err)
			}

			got, err := c.Decrypt(token, tt.password)
			if err != nil {
				t.Fatalf("Decrypt() failed: %v", err)
			}

			if got != tt.plaintext {
				t.Errorf("round trip = %q, want %q", got, tt.plaintext)
			}
		})
	}
}

func TestEncrypt_Deterministic(t *testing.T) {
	c := ECB{}

	first, err := c.Encrypt("same plaintext", "same password")
	if err != nil {
		t.Fatalf("Encrypt() failed: %v", err)
	}

	for i := 0; i < 5; i++ {
		again, err := c.Encrypt("same plaintext", "same password")
		if err != nil {
			t.Fatalf("Encrypt() failed: %v", err)
		}
		if again != first {
			t.Fatalf("Encrypt() is not deterministic: %q != %q", again, first)
		}
	}
}

func TestDecrypt_WrongPassword(t *testing.T) {
	c := ECB{}

	token, err := c.Encrypt("secret content", "right")
	if err != nil {
		t.Fatalf("Encrypt() failed: %v", err)
	}

	_, err = c.Decrypt(token, "wrong")
	if !errors.Is(err, ErrDecode) {
		t.Errorf("Decrypt() with wrong password = %v, want ErrDecode", err)
	}
}

func TestDecrypt_MalformedToken(t *testing.T) {
	c := ECB{}

	tests := []struct {
		name  string
		token string
	}{
		{"not base64", "!!! not base64 !!!"},
		{"not block aligned", "YWJj"}, // "abc"
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := c.Decrypt(tt.token, "pw"); !errors.Is(err, ErrDecode) {
				t.Errorf("Decrypt(%q) = %v, want ErrDecode", tt.token, err)
			}
		})
	}
}

// Trailing padding sentinels in the plaintext are stripped on decrypt.
// Preserved quirk of the storage format, pinned here so nobody "fixes"
// it and breaks existing notes.
func TestDecrypt_TrailingSentinelTruncated(t *testing.T) {
	c := ECB{}

	token, err := c.Encrypt("x = y=", "pw")
	if err != nil {
		t.Fatalf("Encrypt() failed: %v", err)
	}

	got, err := c.Decrypt(token, "pw")
	if err != nil {
		t.Fatalf("Decrypt() failed: %v", err)
	}

	if got != "x = y" {
		t.Errorf("Decrypt() = %q, want trailing sentinel stripped to %q", got, "x = y")
	}
}

func TestDeriveKey_FixedSize(t *testing.T) {
	for _, password := range []string{"", "a", strings.Repeat("long", 100)} {
		if got := len(DeriveKey(password)); got != 32 {
			t.Errorf("DeriveKey(%q) length = %d, want 32", password, got)
		}
	}
}

func TestDigest_Hex(t *testing.T) {
	c := ECB{}

	// SHA-256 of the empty string, a fixed point worth pinning.
	want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := c.Digest(""); got != want {
		t.Errorf("Digest(\"\") = %q, want %q", got, want)
	}

	if c.Digest("a") == c.Digest("b") {
		t.Error("distinct passwords produced the same digest")
	}
}
