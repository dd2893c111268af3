package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/courierchat/courier/internal/auth"
	"github.com/courierchat/courier/internal/models"
	"github.com/courierchat/courier/internal/services"
	pkghttp "github.com/courierchat/courier/pkg/http"
)

// NewTestRequest creates an HTTP request with a JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithSessionContext injects session claims for authenticated endpoints
func WithSessionContext(req *http.Request, accountID, email string) *http.Request {
	claims := &models.SessionClaims{
		AccountID: accountID,
		Email:     email,
	}
	ctx := context.WithValue(req.Context(), auth.SessionContextKey, claims)
	return req.WithContext(ctx)
}

// DecodeEnvelope decodes the standard response envelope
func DecodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) pkghttp.Envelope {
	t.Helper()
	var env pkghttp.Envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("failed to decode response envelope: %v", err)
	}
	assert.NotEmpty(t, env.Timestamp)
	return env
}

// SessionCookie returns the named cookie from the response, or nil
func SessionCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	RegisterFunc      func(ctx context.Context, email, password, handle string) (*services.AuthResult, error)
	LoginFunc         func(ctx context.Context, email, password, totpCode, ip, userAgent string) (*services.AuthResult, error)
	CheckAuthFunc     func(ctx context.Context, token string) (*services.AccountResponse, bool)
	UpdateProfileFunc func(ctx context.Context, accountID, newHandle string) (*services.AccountResponse, error)
}

func (m *MockAuthService) Register(ctx context.Context, email, password, handle string) (*services.AuthResult, error) {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, email, password, handle)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAuthService) Login(ctx context.Context, email, password, totpCode, ip, userAgent string) (*services.AuthResult, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, email, password, totpCode, ip, userAgent)
	}
	return nil, models.ErrInvalidCredentials
}

func (m *MockAuthService) CheckAuth(ctx context.Context, token string) (*services.AccountResponse, bool) {
	if m.CheckAuthFunc != nil {
		return m.CheckAuthFunc(ctx, token)
	}
	return nil, false
}

func (m *MockAuthService) UpdateProfile(ctx context.Context, accountID, newHandle string) (*services.AccountResponse, error) {
	if m.UpdateProfileFunc != nil {
		return m.UpdateProfileFunc(ctx, accountID, newHandle)
	}
	return nil, models.ErrInternalServer
}

// MockRecoveryService implements RecoveryServiceInterface for testing
type MockRecoveryService struct {
	InitPasswordResetFunc     func(ctx context.Context, email string) error
	CompletePasswordResetFunc func(ctx context.Context, email, code, newPassword string) error
	GenerateBackupCodesFunc   func(ctx context.Context, accountID string) ([]string, error)
	ValidateBackupCodeFunc    func(ctx context.Context, accountID, code string) (bool, error)
	RemainingBackupCodesFunc  func(ctx context.Context, accountID string) (int, error)
	SendEmailVerificationFunc func(ctx context.Context, accountID, email string) error
	ConfirmEmailFunc          func(ctx context.Context, email, code string) error
}

func (m *MockRecoveryService) InitPasswordReset(ctx context.Context, email string) error {
	if m.InitPasswordResetFunc != nil {
		return m.InitPasswordResetFunc(ctx, email)
	}
	return nil
}

func (m *MockRecoveryService) CompletePasswordReset(ctx context.Context, email, code, newPassword string) error {
	if m.CompletePasswordResetFunc != nil {
		return m.CompletePasswordResetFunc(ctx, email, code, newPassword)
	}
	return models.ErrRecoveryCodeInvalid
}

func (m *MockRecoveryService) GenerateBackupCodes(ctx context.Context, accountID string) ([]string, error) {
	if m.GenerateBackupCodesFunc != nil {
		return m.GenerateBackupCodesFunc(ctx, accountID)
	}
	return nil, models.ErrInternalServer
}

func (m *MockRecoveryService) ValidateBackupCode(ctx context.Context, accountID, code string) (bool, error) {
	if m.ValidateBackupCodeFunc != nil {
		return m.ValidateBackupCodeFunc(ctx, accountID, code)
	}
	return false, nil
}

func (m *MockRecoveryService) RemainingBackupCodes(ctx context.Context, accountID string) (int, error) {
	if m.RemainingBackupCodesFunc != nil {
		return m.RemainingBackupCodesFunc(ctx, accountID)
	}
	return 0, nil
}

func (m *MockRecoveryService) SendEmailVerification(ctx context.Context, accountID, email string) error {
	if m.SendEmailVerificationFunc != nil {
		return m.SendEmailVerificationFunc(ctx, accountID, email)
	}
	return nil
}

func (m *MockRecoveryService) ConfirmEmail(ctx context.Context, email, code string) error {
	if m.ConfirmEmailFunc != nil {
		return m.ConfirmEmailFunc(ctx, email, code)
	}
	return models.ErrRecoveryCodeInvalid
}

// MockMFAService implements MFAServiceInterface for testing
type MockMFAService struct {
	SetupFunc    func(ctx context.Context, accountID string) (*services.MFASetupResult, error)
	ActivateFunc func(ctx context.Context, accountID, code string) error
	DisableFunc  func(ctx context.Context, accountID, code string) error
}

func (m *MockMFAService) Setup(ctx context.Context, accountID string) (*services.MFASetupResult, error) {
	if m.SetupFunc != nil {
		return m.SetupFunc(ctx, accountID)
	}
	return nil, models.ErrInternalServer
}

func (m *MockMFAService) Activate(ctx context.Context, accountID, code string) error {
	if m.ActivateFunc != nil {
		return m.ActivateFunc(ctx, accountID, code)
	}
	return models.ErrInvalidCredentials
}

func (m *MockMFAService) Disable(ctx context.Context, accountID, code string) error {
	if m.DisableFunc != nil {
		return m.DisableFunc(ctx, accountID, code)
	}
	return models.ErrInvalidCredentials
}

// MockAdminService implements AdminServiceInterface for testing
type MockAdminService struct {
	UnlockAccountFunc func(ctx context.Context, email string) error
}

func (m *MockAdminService) UnlockAccount(ctx context.Context, email string) error {
	if m.UnlockAccountFunc != nil {
		return m.UnlockAccountFunc(ctx, email)
	}
	return models.ErrInternalServer
}
