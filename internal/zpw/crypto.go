package zpw

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
)

// Encryptor turns the serialized request parameters into the ciphertext
// carried in the "params" form field.
type Encryptor interface {
	Encrypt(key, plaintext string) (string, error)
}

// Decryptor reverses Encryptor for response payloads.
type Decryptor interface {
	Decrypt(key, ciphertext string) (string, error)
}

// AESCBC is the session cipher: AES-CBC with a zero IV and PKCS#7 padding.
// Keys and ciphertexts travel as standard base64.
type AESCBC struct{}

var zeroIV = make([]byte, aes.BlockSize)

func (AESCBC) Encrypt(key, plaintext string) (string, error) {
	block, err := newBlock(key)
	if err != nil {
		return "", err
	}
	src := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	dst := make([]byte, len(src))
	cipher.NewCBCEncrypter(block, zeroIV).CryptBlocks(dst, src)
	return base64.StdEncoding.EncodeToString(dst), nil
}

func (AESCBC) Decrypt(key, ciphertext string) (string, error) {
	block, err := newBlock(key)
	if err != nil {
		return "", err
	}
	// Service payloads may arrive percent-encoded.
	if unescaped, err := url.PathUnescape(ciphertext); err == nil {
		ciphertext = unescaped
	}
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	if len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
		return "", errors.New("ciphertext is not a multiple of the block size")
	}
	dst := make([]byte, len(raw))
	cipher.NewCBCDecrypter(block, zeroIV).CryptBlocks(dst, raw)
	plain, err := pkcs7Unpad(dst, aes.BlockSize)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func newBlock(key string) (cipher.Block, error) {
	k, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return nil, fmt.Errorf("decode secret key: %w", err)
	}
	block, err := aes.NewCipher(k)
	if err != nil {
		return nil, fmt.Errorf("secret key: %w", err)
	}
	return block, nil
}

func pkcs7Pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 {
		return nil, errors.New("empty plaintext")
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size || n > len(b) {
		return nil, errors.New("invalid padding")
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, errors.New("invalid padding")
		}
	}
	return b[:len(b)-n], nil
}
