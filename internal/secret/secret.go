// Package secret encrypts the stored account password at rest. The key is
// derived from a passphrase with scrypt, so the config file never carries the
// password in the clear when a passphrase is configured.
package secret

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/scrypt"
)

const saltLen = 16

// scrypt cost parameters; interactive-use profile.
const (
	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

func deriveKey(passphrase string, salt []byte) ([]byte, error) {
	return scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, 32)
}

// Encrypt seals plaintext under a key derived from passphrase and returns
// base64(salt || nonce || ciphertext). A fresh salt is drawn per call.
func Encrypt(passphrase, plaintext string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}
	aead, err := newAEAD(passphrase, salt)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	ct := aead.Seal(nil, nonce, []byte(plaintext), nil)
	buf := append(append(salt, nonce...), ct...)
	return base64.RawStdEncoding.EncodeToString(buf), nil
}

// Decrypt reverses Encrypt. A wrong passphrase surfaces as an AEAD open
// failure, indistinguishable from tampering.
func Decrypt(passphrase, blob string) (string, error) {
	buf, err := base64.RawStdEncoding.DecodeString(blob)
	if err != nil {
		return "", err
	}
	if len(buf) < saltLen {
		return "", fmt.Errorf("ciphertext too short")
	}
	salt := buf[:saltLen]
	aead, err := newAEAD(passphrase, salt)
	if err != nil {
		return "", err
	}
	rest := buf[saltLen:]
	ns := aead.NonceSize()
	if len(rest) < ns {
		return "", fmt.Errorf("ciphertext too short")
	}
	pt, err := aead.Open(nil, rest[:ns], rest[ns:], nil)
	if err != nil {
		return "", err
	}
	return string(pt), nil
}

func newAEAD(passphrase string, salt []byte) (cipher.AEAD, error) {
	key, err := deriveKey(passphrase, salt)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
