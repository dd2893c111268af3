package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/courierchat/courier/internal/auth"
	"github.com/courierchat/courier/internal/models"
	pkgauth "github.com/courierchat/courier/pkg/auth"
	pkglogger "github.com/courierchat/courier/pkg/logger"
)

// AccountRepository defines the store operations the services need.
type AccountRepository interface {
	Create(ctx context.Context, email, credentialHash, handle string) (*models.Account, error)
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	GetByHandle(ctx context.Context, handle string) (*models.Account, error)
	GetByEmailWithCredential(ctx context.Context, email string) (*models.Account, error)
	GetByIDWithCredential(ctx context.Context, id string) (*models.Account, error)
	UpdateHandle(ctx context.Context, id, handle string) (*models.Account, error)
	UpdateCredential(ctx context.Context, id, credentialHash string) error
	SetVerified(ctx context.Context, id string) error
	IncrementFailedLogins(ctx context.Context, id string) (int, error)
	Lock(ctx context.Context, id string, until time.Time) error
	RestartFailureCount(ctx context.Context, id string) error
	ResetLockout(ctx context.Context, id string) error
	MarkLoginSuccess(ctx context.Context, id string) error
	SetTOTPSecret(ctx context.Context, id string, secret, nonce []byte) error
	SetMFAEnabled(ctx context.Context, id string, enabled bool) error
}

// AuthService composes the hasher, validators, store, lockout policy and
// token service into the registration/login/session use cases. It is the
// only component other subsystems call.
type AuthService struct {
	repo        AccountRepository
	hasher      *pkgauth.Hasher
	policy      pkgauth.PasswordPolicy
	tm          *auth.TokenManager
	lockout     *LockoutPolicy
	totp        *auth.TOTPManager
	timing      *auth.TimingDelay
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewAuthService creates an AuthService.
func NewAuthService(
	repo AccountRepository,
	hasher *pkgauth.Hasher,
	policy pkgauth.PasswordPolicy,
	tm *auth.TokenManager,
	lockout *LockoutPolicy,
	totp *auth.TOTPManager,
	timing *auth.TimingDelay,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *AuthService {
	return &AuthService{
		repo:        repo,
		hasher:      hasher,
		policy:      policy,
		tm:          tm,
		lockout:     lockout,
		totp:        totp,
		timing:      timing,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// AccountResponse is the sanitized account representation. Credential
// hashes, backup codes, failure counters and lock fields never appear.
type AccountResponse struct {
	ID          string  `json:"id"`
	Email       string  `json:"email"`
	Handle      string  `json:"handle"`
	IsVerified  bool    `json:"is_verified"`
	Role        string  `json:"role"`
	MFAEnabled  bool    `json:"mfa_enabled"`
	CreatedAt   string  `json:"created_at"`
	LastLoginAt *string `json:"last_login_at,omitempty"`
}

// AuthResult is the outcome of a successful registration or login.
type AuthResult struct {
	Token   string           `json:"token"`
	Account *AccountResponse `json:"account"`
}

// Register creates a new account and issues a session token.
func (s *AuthService) Register(ctx context.Context, email, password, handle string) (*AuthResult, error) {
	email = pkgauth.NormalizeEmail(email)
	handle = pkgauth.NormalizeHandle(handle)

	// Defense-in-depth re-checks; the transport layer validates too.
	if !pkgauth.ValidEmail(email) || !pkgauth.ValidHandle(handle) {
		return nil, models.ErrBadRequest
	}

	// Uniqueness is rejected before password strength. These lookups are
	// advisory; the store's unique indexes still decide races at insert.
	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		s.logger.Info("registration failed: duplicate identity")
		return nil, models.ErrDuplicateEmail
	} else if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to check email uniqueness", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if _, err := s.repo.GetByHandle(ctx, handle); err == nil {
		s.logger.Info("registration failed: duplicate identity")
		return nil, models.ErrDuplicateHandle
	} else if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to check handle uniqueness", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := s.policy.Validate(password); err != nil {
		s.logger.Info("registration rejected: weak password")
		return nil, models.ErrWeakPassword
	}

	credentialHash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	// The store's unique indexes decide uniqueness races; two concurrent
	// registrations with the same email have exactly one winner.
	account, err := s.repo.Create(ctx, email, credentialHash, handle)
	if err != nil {
		if errors.Is(err, models.ErrDuplicateEmail) || errors.Is(err, models.ErrDuplicateHandle) {
			s.logger.Info("registration failed: duplicate identity")
			return nil, err
		}
		s.logger.Error("failed to create account", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	token, err := s.tm.Issue(account.ID, account.Email, account.Handle)
	if err != nil {
		s.logger.Error("failed to issue session token", slog.String("account_id", account.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("account registered", slog.String("account_id", account.ID))
	s.auditLogger.LogAccountAction("account_created", account.ID, "", nil)

	return &AuthResult{
		Token:   token,
		Account: accountToResponse(account),
	}, nil
}

// Login authenticates an account and issues a session token. A locked
// account is rejected before any hash comparison; "no such account" and
// "wrong password" both surface as ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password, totpCode, ip, userAgent string) (*AuthResult, error) {
	email = pkgauth.NormalizeEmail(email)
	if email == "" {
		s.timing.Wait(false)
		return nil, models.ErrInvalidCredentials
	}

	account, err := s.repo.GetByEmailWithCredential(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
				EventType:     "login_failed",
				Email:         email,
				IPAddress:     ip,
				UserAgent:     userAgent,
				FailureReason: "invalid_credentials",
				Success:       false,
			})
			s.timing.Wait(false)
			return nil, models.ErrInvalidCredentials
		}
		s.logger.Error("failed to look up account by email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	now := time.Now()
	if s.lockout.IsLocked(account, now) {
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			AccountID:     account.ID,
			IPAddress:     ip,
			UserAgent:     userAgent,
			FailureReason: "account_locked",
			Success:       false,
		})
		return nil, models.ErrAccountLocked
	}

	if !s.hasher.Compare(account.CredentialHash, password) {
		if err := s.lockout.RecordFailure(ctx, account, ip); err != nil {
			s.logger.Error("failed to record login failure", slog.String("account_id", account.ID), slog.Any("error", err))
		}
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			AccountID:     account.ID,
			IPAddress:     ip,
			UserAgent:     userAgent,
			FailureReason: "invalid_credentials",
			Success:       false,
		})
		s.timing.Wait(false)
		return nil, models.ErrInvalidCredentials
	}

	if account.MFAEnabled {
		if totpCode == "" {
			return nil, models.ErrMFACodeRequired
		}
		valid, err := s.totp.Validate(account.TOTPSecret, account.TOTPNonce, totpCode)
		if err != nil {
			s.logger.Error("failed to validate authenticator code", slog.String("account_id", account.ID), slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		if !valid {
			if err := s.lockout.RecordFailure(ctx, account, ip); err != nil {
				s.logger.Error("failed to record login failure", slog.String("account_id", account.ID), slog.Any("error", err))
			}
			s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
				EventType:     "login_failed",
				AccountID:     account.ID,
				IPAddress:     ip,
				UserAgent:     userAgent,
				FailureReason: "invalid_totp_code",
				Success:       false,
			})
			s.timing.Wait(false)
			return nil, models.ErrInvalidCredentials
		}
	}

	if err := s.lockout.RecordSuccess(ctx, account); err != nil {
		s.logger.Error("failed to record login success", slog.String("account_id", account.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	token, err := s.tm.Issue(account.ID, account.Email, account.Handle)
	if err != nil {
		s.logger.Error("failed to issue session token", slog.String("account_id", account.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login_success",
		AccountID: account.ID,
		IPAddress: ip,
		UserAgent: userAgent,
		Success:   true,
	})

	loginAt := now
	account.LastLoginAt = &loginAt
	return &AuthResult{
		Token:   token,
		Account: accountToResponse(account),
	}, nil
}

// CheckAuth verifies a session token and resolves its account. Every
// failure (missing token, expired, invalid, account vanished) collapses
// to not-authenticated; it never errors outward.
func (s *AuthService) CheckAuth(ctx context.Context, tokenString string) (*AccountResponse, bool) {
	if tokenString == "" {
		return nil, false
	}

	claims, err := s.tm.Verify(tokenString)
	if err != nil {
		if errors.Is(err, models.ErrTokenExpired) {
			s.logger.Info("session check failed: token expired")
		} else {
			s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
				EventType:     "token_verification_failed",
				FailureReason: "invalid_token",
				Success:       false,
			})
		}
		return nil, false
	}

	account, err := s.repo.GetByID(ctx, claims.AccountID)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			s.logger.Error("failed to resolve account for session", slog.Any("error", err))
		}
		return nil, false
	}

	return accountToResponse(account), true
}

// UpdateProfile changes the account's handle after re-validating format
// and uniqueness.
func (s *AuthService) UpdateProfile(ctx context.Context, accountID, newHandle string) (*AccountResponse, error) {
	newHandle = pkgauth.NormalizeHandle(newHandle)
	if !pkgauth.ValidHandle(newHandle) {
		return nil, models.ErrBadRequest
	}

	// Uniqueness excluding self: changing to the current handle is a no-op.
	existing, err := s.repo.GetByHandle(ctx, newHandle)
	if err == nil && existing.ID != accountID {
		return nil, models.ErrDuplicateHandle
	}
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to check handle uniqueness", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	account, err := s.repo.UpdateHandle(ctx, accountID, newHandle)
	if err != nil {
		if errors.Is(err, models.ErrDuplicateHandle) {
			return nil, err
		}
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to update handle", slog.String("account_id", accountID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.auditLogger.LogAccountAction("profile_updated", accountID, "", map[string]string{"field": "handle"})
	return accountToResponse(account), nil
}

// UnlockAccount clears an account's failure counter and lock ahead of the
// lock's natural expiry. Reachable only through the admin surface.
func (s *AuthService) UnlockAccount(ctx context.Context, email string) error {
	email = pkgauth.NormalizeEmail(email)

	account, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to look up account for unlock", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.repo.ResetLockout(ctx, account.ID); err != nil {
		s.logger.Error("failed to reset lockout", slog.String("account_id", account.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.auditLogger.LogAccountAction("account_unlocked", account.ID, "", nil)
	return nil
}

// accountToResponse converts an account to its sanitized representation.
func accountToResponse(account *models.Account) *AccountResponse {
	resp := &AccountResponse{
		ID:         account.ID,
		Email:      account.Email,
		Handle:     account.Handle,
		IsVerified: account.IsVerified,
		Role:       account.Role,
		MFAEnabled: account.MFAEnabled,
		CreatedAt:  account.CreatedAt.Format(time.RFC3339),
	}
	if account.LastLoginAt != nil {
		lastLogin := account.LastLoginAt.Format(time.RFC3339)
		resp.LastLoginAt = &lastLogin
	}
	return resp
}
