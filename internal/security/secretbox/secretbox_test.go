package secretbox

import (
	"encoding/base64"
	"encoding/hex"
	"strings"
	"testing"
)

func testKey(seed byte) []byte {
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = seed + byte(i)
	}
	return raw
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	UnsafeResetForTests()
	t.Setenv(MasterKeyEnv, base64.StdEncoding.EncodeToString(testKey(1)))

	msg := "VMware1!"
	ct, err := Encrypt(msg)
	if err != nil {
		t.Fatalf("Encrypt err: %v", err)
	}
	pt, err := Decrypt(ct)
	if err != nil {
		t.Fatalf("Decrypt err: %v", err)
	}
	if pt != msg {
		t.Fatalf("plaintext mismatch: got %q want %q", pt, msg)
	}
}

func TestMissingMasterKey(t *testing.T) {
	UnsafeResetForTests()
	t.Setenv(MasterKeyEnv, "")
	if _, err := Encrypt("x"); err == nil {
		t.Fatalf("expected error without master key")
	}
	UnsafeResetForTests()
}

func TestDecryptWithKey_Encodings(t *testing.T) {
	raw := testKey(7)
	ct, err := EncryptWithKey(base64.StdEncoding.EncodeToString(raw), "root-pass")
	if err != nil {
		t.Fatalf("EncryptWithKey err: %v", err)
	}
	for name, key := range map[string]string{
		"base64":     base64.StdEncoding.EncodeToString(raw),
		"base64-raw": base64.RawStdEncoding.EncodeToString(raw),
		"hex":        hex.EncodeToString(raw),
		"raw":        string(raw),
	} {
		pt, err := DecryptWithKey(key, ct)
		if err != nil {
			t.Fatalf("%s: DecryptWithKey err: %v", name, err)
		}
		if pt != "root-pass" {
			t.Fatalf("%s: got %q", name, pt)
		}
	}
}

func TestDecrypt_DetectsTamperAndWrongKey(t *testing.T) {
	key := base64.StdEncoding.EncodeToString(testKey(100))
	ct, err := EncryptWithKey(key, "top secret")
	if err != nil {
		t.Fatalf("EncryptWithKey err: %v", err)
	}
	parts := strings.Split(ct, "|")
	b, _ := base64.StdEncoding.DecodeString(parts[1])
	b[0] ^= 0xFF
	tampered := parts[0] + "|" + base64.StdEncoding.EncodeToString(b)
	if _, err := DecryptWithKey(key, tampered); err == nil {
		t.Fatalf("expected auth failure on tampered ciphertext")
	}
	if _, err := DecryptWithKey(base64.StdEncoding.EncodeToString(testKey(1)), ct); err == nil {
		t.Fatalf("expected failure with wrong key")
	}
	if _, err := DecryptWithKey(key, "no-separator"); err == nil {
		t.Fatalf("expected format error")
	}
	if _, err := ParseKey("short"); err == nil {
		t.Fatalf("expected invalid key")
	}
}

func TestGenerateKey(t *testing.T) {
	k, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey err: %v", err)
	}
	if _, err := ParseKey(k); err != nil {
		t.Fatalf("generated key not parseable: %v", err)
	}
}
