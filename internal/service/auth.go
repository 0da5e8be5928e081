package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rescuelog/backend/internal/db"
	"github.com/rescuelog/backend/internal/metrics"
	"github.com/rescuelog/backend/internal/model"
)

const (
	minPasswordLength = 6
	// bcrypt refuses input past 72 bytes.
	maxPasswordBytes = 72
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrDuplicatePhone     = errors.New("phone already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrTokenMissing       = errors.New("refresh token missing")
	ErrTokenMismatch      = errors.New("refresh token does not match latest login")
	ErrTokenInvalid       = errors.New("refresh token invalid or expired")
	ErrAccountNotFound    = errors.New("account not found")
	ErrMisconfigured      = errors.New("auth config invalid")
)

// LockedError is returned while an account sits inside a lockout window.
type LockedError struct {
	Until time.Time
}

func (e *LockedError) Error() string {
	return "account locked until " + e.Until.Format(time.RFC3339)
}

// AccountRepository is the Credential Store. *db.Postgres implements it.
type AccountRepository interface {
	CreateAccount(ctx context.Context, acct *model.Account) (*model.Account, error)
	GetAccountByPhone(ctx context.Context, phone string) (*model.Account, error)
	GetAccountByID(ctx context.Context, id uuid.UUID) (*model.Account, error)
	IncrementFailedLogins(ctx context.Context, id uuid.UUID) (int, error)
	SetLockUntil(ctx context.Context, id uuid.UUID, until time.Time) error
	ResetLoginAttempts(ctx context.Context, id uuid.UUID) error
	SetRefreshTokenHash(ctx context.Context, id uuid.UUID, tokenHash string) error
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, passwordHash string) error
	DeleteAccountByPhone(ctx context.Context, phone string) error
}

// LockoutNotifier hears about every newly engaged lock. It is called off the
// request path, so a slow or failing notifier never delays the login response.
type LockoutNotifier interface {
	NotifyLockout(ctx context.Context, event model.LockoutEvent) error
}

const notifyTimeout = 10 * time.Second

type AuthOptions struct {
	RotateRefreshOnUse bool
	Notifier           LockoutNotifier
}

type AuthService struct {
	repo    AccountRepository
	hasher  *PasswordHasher
	tokens  *TokenIssuer
	lockout LockoutPolicy
	clock   Clock
	logger  *slog.Logger
	opts    AuthOptions
}

// Session is the result of a successful signup or login.
type Session struct {
	AccessToken  string
	RefreshToken string
	Account      *model.Account
}

// RefreshResult carries a new access token and, when rotation is on, a new refresh token.
type RefreshResult struct {
	AccessToken  string
	RefreshToken string
}

func NewAuthService(repo AccountRepository, hasher *PasswordHasher, tokens *TokenIssuer, lockout LockoutPolicy, clock Clock, logger *slog.Logger, opts AuthOptions) *AuthService {
	if clock == nil {
		clock = systemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		repo:    repo,
		hasher:  hasher,
		tokens:  tokens,
		lockout: lockout,
		clock:   clock,
		logger:  logger,
		opts:    opts,
	}
}

func (s *AuthService) Lockout() LockoutPolicy {
	return s.lockout
}

func (s *AuthService) ParseAccessToken(tokenStr string) (*model.AuthUser, error) {
	return s.tokens.ParseAccessToken(tokenStr)
}

func (s *AuthService) Signup(ctx context.Context, req model.SignupRequest) (*Session, error) {
	req.FullName = strings.TrimSpace(req.FullName)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Email = strings.TrimSpace(req.Email)

	if req.FullName == "" || req.Phone == "" || req.Password == "" {
		return nil, fmt.Errorf("%w: full name, phone and password are required", ErrInvalidInput)
	}
	if err := checkPasswordLength(req.Password); err != nil {
		return nil, err
	}

	if _, err := s.repo.GetAccountByPhone(ctx, req.Phone); err == nil {
		return nil, ErrDuplicatePhone
	} else if !db.IsNoRows(err) {
		return nil, fmt.Errorf("lookup phone: %w", err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	acct, err := s.repo.CreateAccount(ctx, &model.Account{
		ID:           uuid.New(),
		FullName:     req.FullName,
		Phone:        req.Phone,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         model.RoleUser,
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrDuplicatePhone
		}
		return nil, fmt.Errorf("create account: %w", err)
	}

	return s.issueSession(ctx, acct)
}

func (s *AuthService) Login(ctx context.Context, req model.LoginRequest) (*Session, error) {
	phone := strings.TrimSpace(req.Phone)
	if phone == "" || req.Password == "" {
		metrics.LoginAttempts.WithLabelValues("invalid").Inc()
		return nil, ErrInvalidCredentials
	}

	acct, err := s.repo.GetAccountByPhone(ctx, phone)
	if err != nil {
		if db.IsNoRows(err) {
			metrics.LoginAttempts.WithLabelValues("invalid").Inc()
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	now := s.clock.Now()
	if s.lockout.IsLocked(acct, now) {
		metrics.LoginAttempts.WithLabelValues("locked").Inc()
		return nil, &LockedError{Until: *acct.LockUntil}
	}

	ok, err := s.hasher.Verify(acct.PasswordHash, req.Password)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		metrics.LoginAttempts.WithLabelValues("invalid").Inc()
		return nil, s.recordFailure(ctx, acct, now)
	}

	if acct.FailedLoginAttempts != 0 || acct.LockUntil != nil {
		if err := s.repo.ResetLoginAttempts(ctx, acct.ID); err != nil {
			return nil, fmt.Errorf("reset login attempts: %w", err)
		}
		acct.FailedLoginAttempts = 0
		acct.LockUntil = nil
	}

	metrics.LoginAttempts.WithLabelValues("success").Inc()
	return s.issueSession(ctx, acct)
}

// recordFailure counts a failed password and engages the lock on threshold multiples.
// The failure that triggers the lock is itself answered with LockedError.
func (s *AuthService) recordFailure(ctx context.Context, acct *model.Account, now time.Time) error {
	failures, err := s.repo.IncrementFailedLogins(ctx, acct.ID)
	if err != nil {
		return fmt.Errorf("increment failed logins: %w", err)
	}

	until, lock := s.lockout.LockFor(failures, now)
	if !lock {
		return ErrInvalidCredentials
	}

	if err := s.repo.SetLockUntil(ctx, acct.ID, until); err != nil {
		return fmt.Errorf("set lock: %w", err)
	}
	metrics.AccountLockouts.Inc()
	s.logger.WarnContext(ctx, "account locked",
		slog.String("account_id", acct.ID.String()),
		slog.Int("failures", failures),
		slog.Time("until", until),
	)
	s.notifyLockout(ctx, model.LockoutEvent{
		AccountID: acct.ID,
		Phone:     acct.Phone,
		Failures:  failures,
		Until:     until,
	})
	return &LockedError{Until: until}
}

func (s *AuthService) notifyLockout(ctx context.Context, event model.LockoutEvent) {
	if s.opts.Notifier == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
		defer cancel()
		if err := s.opts.Notifier.NotifyLockout(ctx, event); err != nil {
			s.logger.WarnContext(ctx, "lockout notification failed",
				slog.String("account_id", event.AccountID.String()),
				slog.Any("error", err),
			)
		}
	}()
}

func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	if strings.TrimSpace(refreshToken) == "" {
		metrics.TokenRefreshes.WithLabelValues("missing").Inc()
		return nil, ErrTokenMissing
	}

	id, err := s.tokens.ParseRefreshToken(refreshToken)
	if err != nil {
		metrics.TokenRefreshes.WithLabelValues("invalid").Inc()
		return nil, ErrTokenInvalid
	}

	acct, err := s.repo.GetAccountByID(ctx, id)
	if err != nil {
		if db.IsNoRows(err) {
			metrics.TokenRefreshes.WithLabelValues("not_found").Inc()
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	if !refreshTokenMatches(acct.RefreshTokenHash, refreshToken) {
		metrics.TokenRefreshes.WithLabelValues("mismatch").Inc()
		s.logger.WarnContext(ctx, "stale refresh token presented", slog.String("account_id", acct.ID.String()))
		return nil, ErrTokenMismatch
	}

	access, err := s.tokens.IssueAccessToken(acct)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	result := &RefreshResult{AccessToken: access}
	if s.opts.RotateRefreshOnUse {
		next, err := s.storeNewRefreshToken(ctx, acct)
		if err != nil {
			return nil, err
		}
		result.RefreshToken = next
	}

	metrics.TokenRefreshes.WithLabelValues("success").Inc()
	return result, nil
}

// Logout empties the refresh slot so no refresh token for the account is accepted.
func (s *AuthService) Logout(ctx context.Context, accountID uuid.UUID) error {
	if err := s.repo.SetRefreshTokenHash(ctx, accountID, ""); err != nil {
		if db.IsNoRows(err) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("clear refresh token: %w", err)
	}
	return nil
}

func (s *AuthService) Me(ctx context.Context, accountID uuid.UUID) (*model.Account, error) {
	acct, err := s.repo.GetAccountByID(ctx, accountID)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("lookup account: %w", err)
	}
	return acct, nil
}

// ChangePassword rehashes only when the new password differs from the current one.
// A real change also ends every session.
func (s *AuthService) ChangePassword(ctx context.Context, accountID uuid.UUID, current, next string) error {
	if err := checkPasswordLength(next); err != nil {
		return err
	}

	acct, err := s.Me(ctx, accountID)
	if err != nil {
		return err
	}

	ok, err := s.hasher.Verify(acct.PasswordHash, current)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return ErrInvalidCredentials
	}
	if current == next {
		return nil
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.repo.UpdatePasswordHash(ctx, acct.ID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// DeleteTestAccount removes an account by phone. Missing accounts are not an error.
func (s *AuthService) DeleteTestAccount(ctx context.Context, phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return fmt.Errorf("%w: phone is required", ErrInvalidInput)
	}
	if err := s.repo.DeleteAccountByPhone(ctx, phone); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return nil
}

func checkPasswordLength(password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}
	if len(password) > maxPasswordBytes {
		return fmt.Errorf("%w: password must be at most %d bytes", ErrInvalidInput, maxPasswordBytes)
	}
	return nil
}

func (s *AuthService) issueSession(ctx context.Context, acct *model.Account) (*Session, error) {
	access, err := s.tokens.IssueAccessToken(acct)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refresh, err := s.storeNewRefreshToken(ctx, acct)
	if err != nil {
		return nil, err
	}

	return &Session{
		AccessToken:  access,
		RefreshToken: refresh,
		Account:      acct,
	}, nil
}

func (s *AuthService) storeNewRefreshToken(ctx context.Context, acct *model.Account) (string, error) {
	refresh, err := s.tokens.IssueRefreshToken(acct)
	if err != nil {
		return "", fmt.Errorf("sign refresh token: %w", err)
	}

	hash := hashRefreshToken(refresh)
	if err := s.repo.SetRefreshTokenHash(ctx, acct.ID, hash); err != nil {
		return "", fmt.Errorf("store refresh token: %w", err)
	}
	acct.RefreshTokenHash = hash
	return refresh, nil
}
