// Package crypto implementa el cifrado simétrico de campos PII (codice
// fiscale del contador). No guarda relación con el hashing de passwords.
package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

// FieldCipher cifra valores con AES-256-CBC y los serializa como
// base64(iv || ciphertext), el formato que usan los datos ya persistidos.
type FieldCipher struct {
	block cipher.Block
}

var ErrInvalidKey = errors.New("encryption key must be 32 bytes")

func NewFieldCipher(key string) (*FieldCipher, error) {
	if len(key) != 32 {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		return nil, err
	}
	return &FieldCipher{block: block}, nil
}

// Encrypt devuelve "" para "" igual que el backend original.
func (f *FieldCipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", err
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	encrypted := make([]byte, len(padded))
	cipher.NewCBCEncrypter(f.block, iv).CryptBlocks(encrypted, padded)

	return base64.StdEncoding.EncodeToString(append(iv, encrypted...)), nil
}

func (f *FieldCipher) Decrypt(encoded string) (string, error) {
	if encoded == "" {
		return "", nil
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	if len(raw) < aes.BlockSize || (len(raw)-aes.BlockSize)%aes.BlockSize != 0 {
		return "", errors.New("decrypt: malformed ciphertext")
	}

	iv := raw[:aes.BlockSize]
	encrypted := raw[aes.BlockSize:]
	if len(encrypted) == 0 {
		return "", errors.New("decrypt: empty ciphertext")
	}

	decrypted := make([]byte, len(encrypted))
	cipher.NewCBCDecrypter(f.block, iv).CryptBlocks(decrypted, encrypted)

	unpadded, err := pkcs7Unpad(decrypted, aes.BlockSize)
	if err != nil {
		return "", err
	}
	return string(unpadded), nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(padding)}, padding)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errors.New("decrypt: invalid padding")
	}
	padding := int(data[len(data)-1])
	if padding == 0 || padding > blockSize {
		return nil, errors.New("decrypt: invalid padding")
	}
	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return nil, errors.New("decrypt: invalid padding")
		}
	}
	return data[:len(data)-padding], nil
}
