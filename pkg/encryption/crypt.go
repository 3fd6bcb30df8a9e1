package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/fieldvision/fieldvision/pkg/file"
)

const keySize = 32 // AES-256

// ErrNotInitialized is returned when the manager is used before Initialize.
var ErrNotInitialized = errors.New("encryption manager not initialized")

// EncryptionManagerInterface seals and opens small secrets kept at rest on
// the device, such as the bearer token file.
type EncryptionManagerInterface interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

// EncryptionManager is the AES-GCM implementation. The nonce is prepended to
// the ciphertext, so each sealed blob is self-contained.
type EncryptionManager struct {
	fileClient file.FileOperations
	aead       cipher.AEAD
}

// NewEncryptionManager creates a manager that loads its key through the
// given file client.
func NewEncryptionManager(fileClient file.FileOperations) *EncryptionManager {
	return &EncryptionManager{fileClient: fileClient}
}

// Initialize reads the AES key from disk and prepares the cipher.
func (m *EncryptionManager) Initialize(keyPath string) error {
	key, err := m.fileClient.ReadFileRaw(keyPath)
	if err != nil {
		return fmt.Errorf("read AES key: %w", err)
	}
	if len(key) != keySize {
		return fmt.Errorf("AES key must be %d bytes, got %d", keySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return fmt.Errorf("create AES cipher: %w", err)
	}
	m.aead, err = cipher.NewGCM(block)
	if err != nil {
		return fmt.Errorf("create GCM mode: %w", err)
	}
	return nil
}

// Encrypt seals the plaintext under a fresh random nonce.
func (m *EncryptionManager) Encrypt(plaintext []byte) ([]byte, error) {
	if m.aead == nil {
		return nil, ErrNotInitialized
	}

	nonce := make([]byte, m.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return m.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a blob produced by Encrypt.
func (m *EncryptionManager) Decrypt(ciphertext []byte) ([]byte, error) {
	if m.aead == nil {
		return nil, ErrNotInitialized
	}
	if len(ciphertext) < m.aead.NonceSize() {
		return nil, errors.New("ciphertext shorter than the nonce")
	}

	nonce, sealed := ciphertext[:m.aead.NonceSize()], ciphertext[m.aead.NonceSize():]
	plaintext, err := m.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plaintext, nil
}
