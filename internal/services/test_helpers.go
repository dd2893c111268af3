package services

import (
	"context"
	"time"

	"github.com/courierchat/courier/internal/models"
)

// MockAccountRepository implements AccountRepository for testing
type MockAccountRepository struct {
	CreateFunc                   func(ctx context.Context, email, credentialHash, handle string) (*models.Account, error)
	GetByIDFunc                  func(ctx context.Context, id string) (*models.Account, error)
	GetByEmailFunc               func(ctx context.Context, email string) (*models.Account, error)
	GetByHandleFunc              func(ctx context.Context, handle string) (*models.Account, error)
	GetByEmailWithCredentialFunc func(ctx context.Context, email string) (*models.Account, error)
	GetByIDWithCredentialFunc    func(ctx context.Context, id string) (*models.Account, error)
	UpdateHandleFunc             func(ctx context.Context, id, handle string) (*models.Account, error)
	UpdateCredentialFunc         func(ctx context.Context, id, credentialHash string) error
	SetVerifiedFunc              func(ctx context.Context, id string) error
	IncrementFailedLoginsFunc    func(ctx context.Context, id string) (int, error)
	LockFunc                     func(ctx context.Context, id string, until time.Time) error
	RestartFailureCountFunc      func(ctx context.Context, id string) error
	ResetLockoutFunc             func(ctx context.Context, id string) error
	MarkLoginSuccessFunc         func(ctx context.Context, id string) error
	SetTOTPSecretFunc            func(ctx context.Context, id string, secret, nonce []byte) error
	SetMFAEnabledFunc            func(ctx context.Context, id string, enabled bool) error
}

func (m *MockAccountRepository) Create(ctx context.Context, email, credentialHash, handle string) (*models.Account, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, email, credentialHash, handle)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) GetByHandle(ctx context.Context, handle string) (*models.Account, error) {
	if m.GetByHandleFunc != nil {
		return m.GetByHandleFunc(ctx, handle)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) GetByEmailWithCredential(ctx context.Context, email string) (*models.Account, error) {
	if m.GetByEmailWithCredentialFunc != nil {
		return m.GetByEmailWithCredentialFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) GetByIDWithCredential(ctx context.Context, id string) (*models.Account, error) {
	if m.GetByIDWithCredentialFunc != nil {
		return m.GetByIDWithCredentialFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) UpdateHandle(ctx context.Context, id, handle string) (*models.Account, error) {
	if m.UpdateHandleFunc != nil {
		return m.UpdateHandleFunc(ctx, id, handle)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAccountRepository) UpdateCredential(ctx context.Context, id, credentialHash string) error {
	if m.UpdateCredentialFunc != nil {
		return m.UpdateCredentialFunc(ctx, id, credentialHash)
	}
	return nil
}

func (m *MockAccountRepository) SetVerified(ctx context.Context, id string) error {
	if m.SetVerifiedFunc != nil {
		return m.SetVerifiedFunc(ctx, id)
	}
	return nil
}

func (m *MockAccountRepository) IncrementFailedLogins(ctx context.Context, id string) (int, error) {
	if m.IncrementFailedLoginsFunc != nil {
		return m.IncrementFailedLoginsFunc(ctx, id)
	}
	return 1, nil
}

func (m *MockAccountRepository) Lock(ctx context.Context, id string, until time.Time) error {
	if m.LockFunc != nil {
		return m.LockFunc(ctx, id, until)
	}
	return nil
}

func (m *MockAccountRepository) RestartFailureCount(ctx context.Context, id string) error {
	if m.RestartFailureCountFunc != nil {
		return m.RestartFailureCountFunc(ctx, id)
	}
	return nil
}

func (m *MockAccountRepository) ResetLockout(ctx context.Context, id string) error {
	if m.ResetLockoutFunc != nil {
		return m.ResetLockoutFunc(ctx, id)
	}
	return nil
}

func (m *MockAccountRepository) MarkLoginSuccess(ctx context.Context, id string) error {
	if m.MarkLoginSuccessFunc != nil {
		return m.MarkLoginSuccessFunc(ctx, id)
	}
	return nil
}

func (m *MockAccountRepository) SetTOTPSecret(ctx context.Context, id string, secret, nonce []byte) error {
	if m.SetTOTPSecretFunc != nil {
		return m.SetTOTPSecretFunc(ctx, id, secret, nonce)
	}
	return nil
}

func (m *MockAccountRepository) SetMFAEnabled(ctx context.Context, id string, enabled bool) error {
	if m.SetMFAEnabledFunc != nil {
		return m.SetMFAEnabledFunc(ctx, id, enabled)
	}
	return nil
}

// MockRecoveryStore implements RecoveryStore for testing
type MockRecoveryStore struct {
	SupersedeFunc          func(ctx context.Context, accountID, purpose, codeHash string, expiresAt time.Time) error
	ConsumeFunc            func(ctx context.Context, accountID, purpose, codeHash string) (bool, error)
	DeleteExpiredFunc      func(ctx context.Context) (int64, error)
	ReplaceBackupCodesFunc func(ctx context.Context, accountID string, codeHashes []string) error
	ConsumeBackupCodeFunc  func(ctx context.Context, accountID, codeHash string) (bool, error)
	CountBackupCodesFunc   func(ctx context.Context, accountID string) (int, error)
}

func (m *MockRecoveryStore) Supersede(ctx context.Context, accountID, purpose, codeHash string, expiresAt time.Time) error {
	if m.SupersedeFunc != nil {
		return m.SupersedeFunc(ctx, accountID, purpose, codeHash, expiresAt)
	}
	return nil
}

func (m *MockRecoveryStore) Consume(ctx context.Context, accountID, purpose, codeHash string) (bool, error) {
	if m.ConsumeFunc != nil {
		return m.ConsumeFunc(ctx, accountID, purpose, codeHash)
	}
	return false, nil
}

func (m *MockRecoveryStore) DeleteExpired(ctx context.Context) (int64, error) {
	if m.DeleteExpiredFunc != nil {
		return m.DeleteExpiredFunc(ctx)
	}
	return 0, nil
}

func (m *MockRecoveryStore) ReplaceBackupCodes(ctx context.Context, accountID string, codeHashes []string) error {
	if m.ReplaceBackupCodesFunc != nil {
		return m.ReplaceBackupCodesFunc(ctx, accountID, codeHashes)
	}
	return nil
}

func (m *MockRecoveryStore) ConsumeBackupCode(ctx context.Context, accountID, codeHash string) (bool, error) {
	if m.ConsumeBackupCodeFunc != nil {
		return m.ConsumeBackupCodeFunc(ctx, accountID, codeHash)
	}
	return false, nil
}

func (m *MockRecoveryStore) CountBackupCodes(ctx context.Context, accountID string) (int, error) {
	if m.CountBackupCodesFunc != nil {
		return m.CountBackupCodesFunc(ctx, accountID)
	}
	return 0, nil
}

// MockEmailSender implements EmailSender for testing
type MockEmailSender struct {
	SendRecoveryCodeFunc     func(ctx context.Context, email, code string, expiresAt time.Time) error
	SendVerificationCodeFunc func(ctx context.Context, email, code string, expiresAt time.Time) error
}

func (m *MockEmailSender) SendRecoveryCode(ctx context.Context, email, code string, expiresAt time.Time) error {
	if m.SendRecoveryCodeFunc != nil {
		return m.SendRecoveryCodeFunc(ctx, email, code, expiresAt)
	}
	return nil
}

func (m *MockEmailSender) SendVerificationCode(ctx context.Context, email, code string, expiresAt time.Time) error {
	if m.SendVerificationCodeFunc != nil {
		return m.SendVerificationCodeFunc(ctx, email, code, expiresAt)
	}
	return nil
}

// NewTestAccount builds an account with sensible defaults for tests
func NewTestAccount(id, email, handle string) *models.Account {
	now := time.Now()
	return &models.Account{
		ID:        id,
		Email:     email,
		Handle:    handle,
		Role:      models.RoleUser,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
