package wallet

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	keyLength   = 32
	nonceLength = 12
	saltLength  = 32
	iterations  = 100000
)

// EncryptedData is a password-sealed private key as stored on disk.
type EncryptedData struct {
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// Encrypt seals data under a key derived from the password with
// PBKDF2-SHA256 and AES-256-GCM.
func Encrypt(data []byte, password string) (*EncryptedData, error) {
	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}

	key := pbkdf2.Key([]byte(password), salt, iterations, keyLength, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, nonceLength)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return &EncryptedData{
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: aesGCM.Seal(nil, nonce, data, nil),
	}, nil
}

// Decrypt opens data sealed by Encrypt. A wrong password surfaces as a GCM
// authentication failure.
func Decrypt(encData *EncryptedData, password string) ([]byte, error) {
	if encData == nil {
		return nil, errors.New("no encrypted data")
	}
	if len(encData.Salt) != saltLength || len(encData.Nonce) != nonceLength {
		return nil, errors.New("malformed encrypted data")
	}

	key := pbkdf2.Key([]byte(password), encData.Salt, iterations, keyLength, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	plaintext, err := aesGCM.Open(nil, encData.Nonce, encData.Ciphertext, nil)
	if err != nil {
		return nil, errors.New("incorrect password or corrupted key file")
	}

	return plaintext, nil
}
