package pal

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// Field cipher algorithm names, as used in field annotations.
const (
	CipherAES = "aes"
	CipherMD5 = "md5"
)

// cipherSalt keys the passphrase derivation. Changing it invalidates all
// stored encrypted values.
var cipherSalt = []byte("pal.field.cipher")

// Cipher is the reversible field cipher: AES-GCM under a key derived from
// the configured passphrase.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher derives a key from the passphrase and prepares the AEAD.
func NewCipher(passphrase string) (*Cipher, error) {
	key := pbkdf2.Key([]byte(passphrase), cipherSalt, 4096, 32, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("pal: cipher init: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("pal: cipher init: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt seals a plaintext and returns it base64-encoded with the nonce
// prepended.
func (c *Cipher) Encrypt(plain string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("pal: cipher nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plain), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt.
func (c *Cipher) Decrypt(enc string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		return "", fmt.Errorf("pal: cipher decode: %w", err)
	}
	ns := c.aead.NonceSize()
	if len(raw) < ns {
		return "", fmt.Errorf("pal: cipher decode: value too short")
	}
	plain, err := c.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return "", fmt.Errorf("pal: cipher open: %w", err)
	}
	return string(plain), nil
}

// MD5Hash is the one-way field digest. Values hashed this way never
// decrypt; lookups compare hashes.
func MD5Hash(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
