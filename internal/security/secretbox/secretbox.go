// Package secretbox cifra las contraseñas del archivo de hosts con AES-256-GCM.
//
// Formato: base64(nonce)|base64(ciphertext). La clave se acepta en base64,
// hex o 32 bytes crudos; la clave maestra por defecto sale de
// SECRETBOX_MASTER_KEY.
package secretbox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

const (
	MasterKeyEnv      = "SECRETBOX_MASTER_KEY"
	nonceSizeGCM      = 12  // AES-GCM nonce size recomendado (96 bits)
	requiredKeyLength = 32  // 32 bytes => AES-256
	sep               = "|" // nonce|ciphertext (ambos en base64)
)

var (
	masterKey     []byte
	masterKeyOnce sync.Once
	loadErr       error
	mu            sync.RWMutex
)

// ensureLoaded carga la clave maestra del entorno una sola vez.
func ensureLoaded() error {
	masterKeyOnce.Do(func() {
		raw := strings.TrimSpace(os.Getenv(MasterKeyEnv))
		if raw == "" {
			loadErr = fmt.Errorf("%s no seteada; genere una clave con: secproto encrypt --new-key", MasterKeyEnv)
			return
		}
		k, err := ParseKey(raw)
		if err != nil {
			loadErr = fmt.Errorf("%s: %w", MasterKeyEnv, err)
			return
		}
		mu.Lock()
		masterKey = k
		mu.Unlock()
	})
	return loadErr
}

func currentKey() ([]byte, error) {
	if err := ensureLoaded(); err != nil {
		return nil, err
	}
	mu.RLock()
	defer mu.RUnlock()
	return append([]byte(nil), masterKey...), nil
}

// ParseKey decodifica una clave en base64 (con o sin padding), hex o cruda.
func ParseKey(key string) ([]byte, error) {
	key = strings.TrimSpace(key)
	if b, err := base64.StdEncoding.DecodeString(key); err == nil && len(b) == requiredKeyLength {
		return b, nil
	}
	if b, err := base64.RawStdEncoding.DecodeString(key); err == nil && len(b) == requiredKeyLength {
		return b, nil
	}
	if len(key) == 2*requiredKeyLength {
		if h, err := hex.DecodeString(key); err == nil {
			return h, nil
		}
	}
	if len(key) == requiredKeyLength {
		return []byte(key), nil
	}
	return nil, fmt.Errorf("clave inválida: %d bytes (requiere %d)", len(key), requiredKeyLength)
}

// GenerateKey devuelve una clave nueva en base64.
func GenerateKey() (string, error) {
	k := make([]byte, requiredKeyLength)
	if _, err := io.ReadFull(rand.Reader, k); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(k), nil
}

func gcm(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return aead, nil
}

func seal(key []byte, plainText string) (string, error) {
	aead, err := gcm(key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, nonceSizeGCM)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("nonce random: %w", err)
	}
	ct := aead.Seal(nil, nonce, []byte(plainText), nil)
	return base64.StdEncoding.EncodeToString(nonce) + sep + base64.StdEncoding.EncodeToString(ct), nil
}

func open(key []byte, cipherText string) (string, error) {
	nonceB64, ctB64, ok := strings.Cut(strings.TrimSpace(cipherText), sep)
	if !ok {
		return "", errors.New("formato inválido: esperado base64(nonce)|base64(ciphertext)")
	}
	nonce, err := base64.StdEncoding.DecodeString(nonceB64)
	if err != nil {
		return "", fmt.Errorf("decode nonce: %w", err)
	}
	ct, err := base64.StdEncoding.DecodeString(ctB64)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	if len(nonce) != nonceSizeGCM {
		return "", fmt.Errorf("nonce inválido: esperado %d bytes, obtuvo %d", nonceSizeGCM, len(nonce))
	}
	aead, err := gcm(key)
	if err != nil {
		return "", err
	}
	pt, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", fmt.Errorf("gcm auth/decrypt: %w", err)
	}
	return string(pt), nil
}

// Encrypt cifra con la clave maestra.
func Encrypt(plainText string) (string, error) {
	k, err := currentKey()
	if err != nil {
		return "", err
	}
	return seal(k, plainText)
}

// Decrypt descifra con la clave maestra.
func Decrypt(cipherText string) (string, error) {
	k, err := currentKey()
	if err != nil {
		return "", err
	}
	return open(k, cipherText)
}

// EncryptWithKey cifra con una clave explícita.
func EncryptWithKey(key, plainText string) (string, error) {
	k, err := ParseKey(key)
	if err != nil {
		return "", err
	}
	return seal(k, plainText)
}

// DecryptWithKey descifra con una clave explícita.
func DecryptWithKey(key, cipherText string) (string, error) {
	k, err := ParseKey(key)
	if err != nil {
		return "", err
	}
	return open(k, cipherText)
}

// --- Helpers para tests ---

// UnsafeResetForTests borra estado interno. Usar sólo en tests.
func UnsafeResetForTests() {
	mu.Lock()
	masterKey = nil
	mu.Unlock()
	masterKeyOnce = sync.Once{}
	loadErr = nil
}
