package services

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/courierchat/courier/internal/models"
	pkgauth "github.com/courierchat/courier/pkg/auth"
	pkglogger "github.com/courierchat/courier/pkg/logger"
)

func newTestRecoveryService(accounts *MockAccountRepository, store *MockRecoveryStore, email *MockEmailSender) *RecoveryService {
	logger := slog.Default()
	if email == nil {
		email = &MockEmailSender{}
	}
	return NewRecoveryService(
		accounts,
		store,
		pkgauth.NewHasher(bcrypt.MinCost),
		pkgauth.DefaultPasswordPolicy(),
		email,
		logger,
		pkglogger.NewAuditLogger(logger),
		15*time.Minute,
	)
}

func TestRecoveryService_GenerateRecoveryCode(t *testing.T) {
	var storedHash string
	var storedExpiry time.Time
	store := &MockRecoveryStore{
		SupersedeFunc: func(ctx context.Context, accountID, purpose, codeHash string, expiresAt time.Time) error {
			assert.Equal(t, models.RecoveryPurposePasswordReset, purpose)
			storedHash = codeHash
			storedExpiry = expiresAt
			return nil
		},
	}
	svc := newTestRecoveryService(&MockAccountRepository{}, store, nil)

	code, err := svc.GenerateRecoveryCode(context.Background(), "acct-1")

	require.NoError(t, err)
	assert.Len(t, code, 6)
	assert.NotEqual(t, code, storedHash, "plaintext must not be stored")
	assert.Equal(t, hashCode(code), storedHash)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), storedExpiry, time.Minute)
}

func TestRecoveryService_VerifyRecoveryCode_ConsumesOnMatch(t *testing.T) {
	code := "ABC123"
	consumed := false
	store := &MockRecoveryStore{
		ConsumeFunc: func(ctx context.Context, accountID, purpose, codeHash string) (bool, error) {
			if codeHash == hashCode(code) && !consumed {
				consumed = true
				return true, nil
			}
			return false, nil
		},
	}
	svc := newTestRecoveryService(&MockAccountRepository{}, store, nil)

	ok, err := svc.VerifyRecoveryCode(context.Background(), "acct-1", code)
	require.NoError(t, err)
	assert.True(t, ok)

	// The same code fails the second time.
	ok, err = svc.VerifyRecoveryCode(context.Background(), "acct-1", code)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRecoveryService_InitPasswordReset_UnknownEmailSucceeds(t *testing.T) {
	sent := false
	email := &MockEmailSender{
		SendRecoveryCodeFunc: func(ctx context.Context, addr, code string, expiresAt time.Time) error {
			sent = true
			return nil
		},
	}
	svc := newTestRecoveryService(&MockAccountRepository{}, &MockRecoveryStore{}, email)

	err := svc.InitPasswordReset(context.Background(), "nobody@example.com")

	assert.NoError(t, err, "unknown email must not be distinguishable")
	assert.False(t, sent)
}

func TestRecoveryService_InitPasswordReset_SendsCode(t *testing.T) {
	var sentCode string
	accounts := &MockAccountRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Account, error) {
			return NewTestAccount("acct-1", email, "someone"), nil
		},
	}
	email := &MockEmailSender{
		SendRecoveryCodeFunc: func(ctx context.Context, addr, code string, expiresAt time.Time) error {
			sentCode = code
			return nil
		},
	}
	svc := newTestRecoveryService(accounts, &MockRecoveryStore{}, email)

	err := svc.InitPasswordReset(context.Background(), "User@Example.com")

	require.NoError(t, err)
	assert.Len(t, sentCode, 6)
}

func TestRecoveryService_CompletePasswordReset(t *testing.T) {
	var newHash string
	lockoutReset := false
	accounts := &MockAccountRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Account, error) {
			return NewTestAccount("acct-1", email, "someone"), nil
		},
		UpdateCredentialFunc: func(ctx context.Context, id, credentialHash string) error {
			newHash = credentialHash
			return nil
		},
		ResetLockoutFunc: func(ctx context.Context, id string) error {
			lockoutReset = true
			return nil
		},
	}
	store := &MockRecoveryStore{
		ConsumeFunc: func(ctx context.Context, accountID, purpose, codeHash string) (bool, error) {
			return true, nil
		},
	}
	svc := newTestRecoveryService(accounts, store, nil)

	err := svc.CompletePasswordReset(context.Background(), "user@example.com", "ABC123", "Fresh1Password")

	require.NoError(t, err)
	assert.NotEmpty(t, newHash)
	assert.True(t, lockoutReset, "completed reset clears lockout state")
}

func TestRecoveryService_CompletePasswordReset_WeakPasswordDoesNotBurnCode(t *testing.T) {
	accounts := &MockAccountRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Account, error) {
			return NewTestAccount("acct-1", email, "someone"), nil
		},
	}
	store := &MockRecoveryStore{
		ConsumeFunc: func(ctx context.Context, accountID, purpose, codeHash string) (bool, error) {
			t.Fatal("weak replacement must be rejected before the code is consumed")
			return false, nil
		},
	}
	svc := newTestRecoveryService(accounts, store, nil)

	err := svc.CompletePasswordReset(context.Background(), "user@example.com", "ABC123", "weak")
	assert.ErrorIs(t, err, models.ErrWeakPassword)
}

func TestRecoveryService_CompletePasswordReset_InvalidCode(t *testing.T) {
	accounts := &MockAccountRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Account, error) {
			return NewTestAccount("acct-1", email, "someone"), nil
		},
	}
	svc := newTestRecoveryService(accounts, &MockRecoveryStore{}, nil)

	err := svc.CompletePasswordReset(context.Background(), "user@example.com", "WRONG1", "Fresh1Password")
	assert.ErrorIs(t, err, models.ErrRecoveryCodeInvalid)
}

func TestRecoveryService_GenerateBackupCodes(t *testing.T) {
	var storedHashes []string
	store := &MockRecoveryStore{
		ReplaceBackupCodesFunc: func(ctx context.Context, accountID string, codeHashes []string) error {
			storedHashes = codeHashes
			return nil
		},
	}
	svc := newTestRecoveryService(&MockAccountRepository{}, store, nil)

	codes, err := svc.GenerateBackupCodes(context.Background(), "acct-1")

	require.NoError(t, err)
	require.Len(t, codes, 5)
	require.Len(t, storedHashes, 5)

	seen := map[string]bool{}
	for i, code := range codes {
		assert.Len(t, code, 10)
		assert.Equal(t, hashCode(code), storedHashes[i])
		assert.False(t, seen[code], "codes should be distinct")
		seen[code] = true
	}
}

func TestRecoveryService_ValidateBackupCode_SingleUse(t *testing.T) {
	code := "ABCDE12345"
	used := false
	store := &MockRecoveryStore{
		ConsumeBackupCodeFunc: func(ctx context.Context, accountID, codeHash string) (bool, error) {
			if codeHash == hashCode(code) && !used {
				used = true
				return true, nil
			}
			return false, nil
		},
	}
	svc := newTestRecoveryService(&MockAccountRepository{}, store, nil)

	ok, err := svc.ValidateBackupCode(context.Background(), "acct-1", code)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.ValidateBackupCode(context.Background(), "acct-1", code)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRecoveryService_ConfirmEmail(t *testing.T) {
	verified := false
	accounts := &MockAccountRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Account, error) {
			return NewTestAccount("acct-1", email, "someone"), nil
		},
		SetVerifiedFunc: func(ctx context.Context, id string) error {
			verified = true
			return nil
		},
	}
	store := &MockRecoveryStore{
		ConsumeFunc: func(ctx context.Context, accountID, purpose, codeHash string) (bool, error) {
			assert.Equal(t, models.RecoveryPurposeEmailVerify, purpose)
			return true, nil
		},
	}
	svc := newTestRecoveryService(accounts, store, nil)

	err := svc.ConfirmEmail(context.Background(), "user@example.com", "ABC123")

	require.NoError(t, err)
	assert.True(t, verified)
}

func TestRandomCode_CharsetAndLength(t *testing.T) {
	seen := make(map[byte]bool)
	for i := 0; i < 500; i++ {
		code, err := randomCode(6)
		require.NoError(t, err)
		require.Len(t, code, 6)
		for j := 0; j < len(code); j++ {
			assert.Contains(t, codeCharset, string(code[j]))
			seen[code[j]] = true
		}
	}

	// 3000 uniform draws over 36 symbols cover the whole alphabet.
	assert.Len(t, seen, len(codeCharset))
}
