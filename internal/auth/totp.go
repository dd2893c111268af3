package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	qrcode "github.com/skip2/go-qrcode"
)

// TOTPManager handles authenticator secret generation, encryption at
// rest, and code validation.
type TOTPManager struct {
	encryptionKey []byte // 32-byte AES-256 key
	issuer        string // Issuer name shown in authenticator apps
}

// NewTOTPManager creates a TOTP manager. encryptionKey must be exactly
// 32 bytes.
func NewTOTPManager(encryptionKey []byte, issuer string) (*TOTPManager, error) {
	if len(encryptionKey) != 32 {
		return nil, fmt.Errorf("encryption key must be exactly 32 bytes, got %d", len(encryptionKey))
	}
	return &TOTPManager{
		encryptionKey: encryptionKey,
		issuer:        issuer,
	}, nil
}

// GenerateSecret creates a new authenticator secret for the account and
// returns the encrypted secret, the GCM nonce, the plaintext secret (for
// manual entry) and a provisioning QR code as a PNG data URL.
func (tm *TOTPManager) GenerateSecret(accountEmail string) (encrypted, nonce []byte, secret, qrDataURL string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      tm.issuer,
		AccountName: accountEmail,
		SecretSize:  32,
		Period:      30,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, nil, "", "", fmt.Errorf("failed to generate authenticator key: %w", err)
	}

	encrypted, nonce, err = tm.encrypt([]byte(key.Secret()))
	if err != nil {
		return nil, nil, "", "", err
	}

	qr, err := qrcode.New(key.URL(), qrcode.Medium)
	if err != nil {
		return nil, nil, "", "", fmt.Errorf("failed to create QR code: %w", err)
	}
	png, err := qr.PNG(200)
	if err != nil {
		return nil, nil, "", "", fmt.Errorf("failed to encode QR code: %w", err)
	}

	qrDataURL = "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
	return encrypted, nonce, key.Secret(), qrDataURL, nil
}

// Validate decrypts the stored secret and checks the code against the
// current time step, allowing standard clock drift.
func (tm *TOTPManager) Validate(encrypted, nonce []byte, code string) (bool, error) {
	secret, err := tm.decrypt(encrypted, nonce)
	if err != nil {
		return false, err
	}
	return totp.Validate(code, string(secret)), nil
}

func (tm *TOTPManager) encrypt(plaintext []byte) ([]byte, []byte, error) {
	block, err := aes.NewCipher(tm.encryptionKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return gcm.Seal(nil, nonce, plaintext, nil), nonce, nil
}

func (tm *TOTPManager) decrypt(ciphertext, nonce []byte) ([]byte, error) {
	block, err := aes.NewCipher(tm.encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt authenticator secret: %w", err)
	}
	return plaintext, nil
}
