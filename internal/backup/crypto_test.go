package backup

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestGenerateSalt(t *testing.T) {
	salt1, err := GenerateSalt()
	if err != nil {
		t.Fatalf("generate salt: %v", err)
	}
	if len(salt1) != saltSize {
		t.Errorf("salt length = %d, want %d", len(salt1), saltSize)
	}

	salt2, err := GenerateSalt()
	if err != nil {
		t.Fatalf("generate salt 2: %v", err)
	}
	if bytes.Equal(salt1, salt2) {
		t.Error("two salts should not be equal")
	}
}

func TestDeriveKey(t *testing.T) {
	salt := []byte("1234567890abcdef")

	if !bytes.Equal(DeriveKey("mypassphrase", salt), DeriveKey("mypassphrase", salt)) {
		t.Error("same passphrase+salt should produce same key")
	}
	if got := len(DeriveKey("mypassphrase", salt)); got != keySize {
		t.Errorf("key length = %d, want %d", got, keySize)
	}
	if bytes.Equal(DeriveKey("password1", salt), DeriveKey("password2", salt)) {
		t.Error("different passphrases should produce different keys")
	}
}

func TestSealOpenRoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		plaintext []byte
	}{
		{"database bytes", []byte("SQLite format 3\x00 with some rows")},
		{"empty", []byte{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sealed, err := Seal(tt.plaintext, "test-passphrase-123")
			if err != nil {
				t.Fatalf("seal: %v", err)
			}
			if len(sealed) < saltSize+nonceSize {
				t.Fatalf("sealed length = %d, too short", len(sealed))
			}

			opened, err := Open(sealed, "test-passphrase-123")
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			if !bytes.Equal(opened, tt.plaintext) {
				t.Errorf("opened = %q, want %q", opened, tt.plaintext)
			}
		})
	}
}

func TestSealUsesFreshSalt(t *testing.T) {
	a, err := Seal([]byte("same"), "pw")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	b, err := Seal([]byte("same"), "pw")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if bytes.Equal(a[:saltSize], b[:saltSize]) {
		t.Error("two seals should not share a salt")
	}
}

func TestOpenRejects(t *testing.T) {
	sealed, err := Seal([]byte("secret data"), "password")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	if _, err := Open(sealed, "wrong-password"); err == nil {
		t.Error("expected error with wrong passphrase")
	}

	tampered := bytes.Clone(sealed)
	tampered[saltSize+nonceSize+1] ^= 0xFF
	if _, err := Open(tampered, "password"); err == nil {
		t.Error("expected error with tampered ciphertext")
	}

	if _, err := Open([]byte("too short"), "password"); !errors.Is(err, ErrTooSmall) {
		t.Errorf("short input error = %v, want ErrTooSmall", err)
	}
}

func TestDecryptFile(t *testing.T) {
	dir := t.TempDir()
	encPath := filepath.Join(dir, "snapshot.db.enc")
	decPath := filepath.Join(dir, "snapshot.db")

	original := []byte("This is test database content with some data in it.")
	sealed, err := Seal(original, "pw")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if err := os.WriteFile(encPath, sealed, 0600); err != nil {
		t.Fatalf("write sealed: %v", err)
	}

	if err := DecryptFile(encPath, decPath, "pw"); err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	got, err := os.ReadFile(decPath)
	if err != nil {
		t.Fatalf("read decrypted: %v", err)
	}
	if !bytes.Equal(got, original) {
		t.Error("decrypted content should match original")
	}

	if err := DecryptFile(filepath.Join(dir, "missing.enc"), decPath, "pw"); err == nil {
		t.Error("expected error for missing source")
	}
}
